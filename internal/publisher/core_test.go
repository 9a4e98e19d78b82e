package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"crosspost/internal/config"
	"crosspost/internal/credentials"
	"crosspost/internal/media"
	"crosspost/internal/models"
)

// =====================================================================
// Caption
// =====================================================================

func TestCaptionOrdering(t *testing.T) {
	c := Caption{
		TitlePrimary:   "Launch",
		BodyPrimary:    "We shipped.",
		TitleSecondary: "ចេញផ្សាយ",
		BodySecondary:  "យើងបានចេញផ្សាយ។",
	}
	want := "ចេញផ្សាយ\n\nយើងបានចេញផ្សាយ។\n\nLaunch\n\nWe shipped."
	if got := c.Combined(); got != want {
		t.Errorf("Combined:\ngot  %q\nwant %q", got, want)
	}
	if got := c.Title(); got != "ចេញផ្សាយ | Launch" {
		t.Errorf("Title: %q", got)
	}
	if got := c.Description(); got != "យើងបានចេញផ្សាយ។\n\nWe shipped." {
		t.Errorf("Description: %q", got)
	}
}

func TestCaptionSkipsEmptyParts(t *testing.T) {
	c := Caption{TitlePrimary: "Launch", BodyPrimary: "We shipped.", BodySecondary: "  "}
	if got := c.Combined(); got != "Launch\n\nWe shipped." {
		t.Errorf("Combined: %q", got)
	}
	if (Caption{}).Combined() != "" {
		t.Error("empty caption should combine to empty text")
	}
}

func TestYouTubeTitleFallbacks(t *testing.T) {
	long := strings.Repeat("d", 80)
	tests := []struct {
		c    Caption
		want string
	}{
		{Caption{TitlePrimary: "Launch"}, "Launch"},
		{Caption{BodyPrimary: long}, strings.Repeat("d", 50)},
		{Caption{}, "Video"},
		{Caption{TitlePrimary: strings.Repeat("t", 120)}, strings.Repeat("t", 99) + "…"},
	}
	for _, tt := range tests {
		if got := youtubeTitle(tt.c); got != tt.want {
			t.Errorf("youtubeTitle(%+v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

// =====================================================================
// Error classification
// =====================================================================

func TestOutcomeFromError(t *testing.T) {
	dest := models.DestinationLinkedIn
	tests := []struct {
		name       string
		err        error
		wantStatus models.OutcomeStatus
		wantKind   models.ErrorKind
		wantReauth bool
	}{
		{"skip", skip("needs media"), models.OutcomeSkipped, models.KindValidation, false},
		{"auth reauth", &credentials.AuthError{Destination: dest, Reason: "expired", ReauthRequired: true}, models.OutcomeFailed, models.KindAuth, true},
		{"auth wrapped", fmt.Errorf("x: %w", &credentials.AuthError{Destination: dest, Reason: "refresh failed"}), models.OutcomeFailed, models.KindAuth, false},
		{"transport", &TransportError{Op: "post", Status: 500, Body: "boom"}, models.OutcomeFailed, models.KindTransport, false},
		{"processing", &ProcessingError{Status: "ERROR"}, models.OutcomeFailed, models.KindProcessing, false},
		{"media", &media.MediaError{Op: "encode", Err: errors.New("x")}, models.OutcomeFailed, models.KindMedia, false},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), models.OutcomeFailed, models.KindTransport, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := outcomeFromError(dest, tt.err)
			if o.Status != tt.wantStatus || o.Kind != tt.wantKind || o.ReauthRequired != tt.wantReauth {
				t.Errorf("got %+v", o)
			}
			if o.Reason == "" {
				t.Error("reason should be set")
			}
		})
	}
}

func TestTransportErrorTruncatesBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 5000))
	if got := truncateBody(body); len(got) != maxErrorBody+3 {
		t.Errorf("truncated length: %d", len(got))
	}
}

// =====================================================================
// Upload state machine
// =====================================================================

func TestUploadStateHappyPath(t *testing.T) {
	u := newUpload(models.DestinationYouTube)
	for _, next := range []UploadState{StateUploading, StateProcessing, StateReady, StatePublished} {
		if err := u.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if !u.state.Terminal() {
		t.Error("published should be terminal")
	}
}

func TestUploadStateErrorPath(t *testing.T) {
	u := newUpload(models.DestinationInstagram)
	u.advance(StateUploading)
	u.advance(StateProcessing)

	err := u.fail("ERROR", "bad codec")
	var pe *ProcessingError
	if !errors.As(err, &pe) || pe.Status != "ERROR" {
		t.Fatalf("fail: got %v", err)
	}
	if u.state != StateError || !u.state.Terminal() {
		t.Errorf("state: %s", u.state)
	}
	if err := u.advance(StateReady); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("leaving a terminal state: got %v", err)
	}
}

func TestUploadStateRejectsSkips(t *testing.T) {
	u := newUpload(models.DestinationTikTok)
	if err := u.advance(StatePublished); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("created -> published: got %v", err)
	}
	u.advance(StateUploading)
	if err := u.fail("x", ""); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("uploading -> error: got %v", err)
	}
}

// =====================================================================
// Poller
// =====================================================================

func TestPollerUntilDone(t *testing.T) {
	calls := 0
	err := fastPoll().Until(context.Background(), "thing", func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: %d", calls)
	}
}

func TestPollerExhaustion(t *testing.T) {
	calls := 0
	err := Poller{Interval: time.Millisecond, MaxAttempts: 4}.Until(context.Background(), "thing",
		func(context.Context) (bool, error) {
			calls++
			return false, nil
		})
	var pe *ProcessingError
	if !errors.As(err, &pe) || pe.Status != "timeout" {
		t.Fatalf("got %v, want timeout ProcessingError", err)
	}
	if calls != 4 {
		t.Errorf("calls: got %d, want 4", calls)
	}
}

func TestPollerStopsOnError(t *testing.T) {
	calls := 0
	boom := &TransportError{Op: "status", Status: 500}
	err := fastPoll().Until(context.Background(), "thing", func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

// =====================================================================
// Registry
// =====================================================================

func testConfig() *config.Config {
	return &config.Config{
		HTTPTimeout:     time.Second,
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 3,
		GraphBaseURL:    "http://graph.invalid",
		GraphVersion:    "v19.0",
	}
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(Deps{Config: testConfig(), Tokens: tokensFor()})
	got := r.Available()
	if len(got) != len(models.AllDestinations) {
		t.Fatalf("Available: %v", got)
	}
	for _, d := range models.AllDestinations {
		want := d == models.DestinationYouTube || d == models.DestinationTikTok
		if r.VideoOnly(d) != want {
			t.Errorf("VideoOnly(%s) = %v", d, !want)
		}
	}
}

type panicky struct{}

func (panicky) Name() models.Destination { return models.DestinationTwitter }
func (panicky) VideoOnly() bool          { return false }
func (panicky) Publish(context.Context, Caption, []string) models.Outcome {
	panic("nil map")
}

func TestRegistryRecoversPanics(t *testing.T) {
	r := &Registry{adapters: make(map[models.Destination]Adapter)}
	r.Register(panicky{})

	o := r.Publish(context.Background(), models.DestinationTwitter, launchCaption(), nil)
	if o.Status != models.OutcomeFailed || !strings.Contains(o.Reason, "nil map") {
		t.Errorf("outcome: %+v", o)
	}

	o = r.Publish(context.Background(), models.DestinationYouTube, launchCaption(), nil)
	if o.Status != models.OutcomeFailed || o.Kind != models.KindValidation {
		t.Errorf("unregistered destination: %+v", o)
	}
}

func TestNoHostFailsMediaUpload(t *testing.T) {
	tokens := tokensFor(&models.Credential{Destination: models.DestinationInstagram, AccessToken: "t", InstagramID: "ig"})
	r := NewRegistry(Deps{Config: testConfig(), Tokens: tokens})
	o := r.Publish(context.Background(), models.DestinationInstagram, launchCaption(), mediaFiles(t, "a.jpg"))
	if o.Status != models.OutcomeFailed || !strings.Contains(o.Reason, "no public media host") {
		t.Errorf("outcome: %+v", o)
	}
}
