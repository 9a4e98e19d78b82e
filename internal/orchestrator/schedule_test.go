package orchestrator

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Phnom_Penh")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	got, err := ParseSchedule("2026-06-01T09:30", loc)
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	want := time.Date(2026, 6, 1, 2, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}

	got, _ = ParseSchedule("2026-06-01T09:30:00Z", loc)
	if !got.Equal(time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("explicit offset ignored: %v", got)
	}

	if got, err := ParseSchedule("  ", loc); got != nil || err != nil {
		t.Errorf("empty: %v %v", got, err)
	}
	if _, err := ParseSchedule("tomorrow", loc); err == nil {
		t.Error("expected parse error")
	}
}
