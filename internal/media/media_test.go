package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// writeTestPNG creates a solid w×h PNG and returns its path.
func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

// fakeRunner records the ffmpeg call, snapshots the concat list, and
// creates the output file unless told to fail.
type fakeRunner struct {
	calls int
	name  string
	args  []string
	list  string
	err   error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls++
	r.name = name
	r.args = args
	if i := slices.Index(args, "-i"); i >= 0 {
		data, _ := os.ReadFile(args[i+1])
		r.list = string(data)
	}
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

// =====================================================================
// Classification
// =====================================================================

func TestSplit(t *testing.T) {
	images, video := Split([]string{"a.JPG", "notes.txt", "b.webp", "clip.mp4", "c.png", "second.mov"})
	if !slices.Equal(images, []string{"a.JPG", "b.webp", "c.png"}) {
		t.Errorf("images: %v", images)
	}
	if video != "clip.mp4" {
		t.Errorf("video: %q", video)
	}
	if !IsImage("x.jpeg") || IsImage("x.mp4") || !IsVideo("x.MKV") {
		t.Error("extension classification wrong")
	}
}

// =====================================================================
// Frames
// =====================================================================

func TestRenderFramesNormalisesSize(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	wide := writeTestPNG(t, src, "wide.png", 200, 100) // → 1440x720
	tall := writeTestPNG(t, src, "tall.png", 50, 100)  // → 360x720

	frames, err := renderFrames([]string{wide, tall}, out, FrameHeight)
	if err != nil {
		t.Fatalf("renderFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames: got %d", len(frames))
	}

	for _, f := range frames {
		img, err := decodeImage(f)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		b := img.Bounds()
		if b.Dx() != 1440 || b.Dy() != FrameHeight {
			t.Errorf("%s: got %dx%d, want 1440x720", filepath.Base(f), b.Dx(), b.Dy())
		}
	}

	// The tall image is centred: the left edge is black padding.
	img, _ := decodeImage(frames[1])
	r, g, b, _ := img.At(10, 360).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("padding not black: %d %d %d", r, g, b)
	}
	r, _, _, _ = img.At(720, 360).RGBA()
	if r == 0 {
		t.Error("centre of padded frame should hold the image")
	}
}

func TestEvenWidth(t *testing.T) {
	for in, want := range map[int]int{720: 720, 721: 722, 1: 2} {
		if got := evenWidth(in); got != want {
			t.Errorf("evenWidth(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRenderFramesCorruptInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	os.WriteFile(bad, []byte("not an image"), 0o644)

	_, err := renderFrames([]string{bad}, t.TempDir(), FrameHeight)
	var me *MediaError
	if !errors.As(err, &me) || me.Op != "decode" || me.Path != bad {
		t.Fatalf("got %v, want decode MediaError", err)
	}
}

// =====================================================================
// BuildSlideshow
// =====================================================================

func TestBuildSlideshowWithAudio(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	images := []string{
		writeTestPNG(t, src, "1.png", 40, 30),
		writeTestPNG(t, src, "2.png", 30, 40),
		writeTestPNG(t, src, "3.png", 40, 40),
	}
	audio := filepath.Join(src, "bg.mp3")
	os.WriteFile(audio, []byte("id3"), 0o644)

	runner := &fakeRunner{}
	a := NewAssembler("/usr/bin/ffmpeg", out, runner)
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	path, err := a.BuildSlideshow(context.Background(), images, 2*time.Second, audio)
	if err != nil {
		t.Fatalf("BuildSlideshow: %v", err)
	}

	if runner.calls != 1 || runner.name != "/usr/bin/ffmpeg" {
		t.Fatalf("runner: calls=%d name=%q", runner.calls, runner.name)
	}
	if filepath.Dir(path) != out || !strings.HasPrefix(filepath.Base(path), "slideshow_20260304050607_") {
		t.Errorf("output path: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("output missing: %v", err)
	}

	checks := map[string]string{
		"-stream_loop": "-1",
		"-r":           "24",
		"-c:v":         "libx264",
		"-pix_fmt":     "yuv420p",
		"-filter:a":    "volume=0.2",
		"-c:a":         "aac",
		"-t":           "6",
	}
	for flag, want := range checks {
		if got := argAfter(runner.args, flag); got != want {
			t.Errorf("%s: got %q, want %q", flag, got, want)
		}
	}
	if slices.Contains(runner.args, "-an") {
		t.Error("-an must not be set when audio is supplied")
	}

	if strings.Count(runner.list, "duration 2\n") != 3 {
		t.Errorf("concat list durations:\n%s", runner.list)
	}
	if strings.Count(runner.list, "frame_002.png") != 2 {
		t.Errorf("last frame should be repeated:\n%s", runner.list)
	}
	if strings.Index(runner.list, "frame_000") > strings.Index(runner.list, "frame_001") {
		t.Error("frames out of input order")
	}
}

func TestBuildSlideshowSilent(t *testing.T) {
	src := t.TempDir()
	runner := &fakeRunner{}
	a := NewAssembler("", t.TempDir(), runner)

	_, err := a.BuildSlideshow(context.Background(),
		[]string{writeTestPNG(t, src, "1.png", 10, 10)}, 1500*time.Millisecond, "")
	if err != nil {
		t.Fatalf("BuildSlideshow: %v", err)
	}
	if runner.name != "ffmpeg" {
		t.Errorf("default binary: got %q", runner.name)
	}
	if !slices.Contains(runner.args, "-an") || slices.Contains(runner.args, "-stream_loop") {
		t.Errorf("silent args: %v", runner.args)
	}
	if got := argAfter(runner.args, "-t"); got != "1.5" {
		t.Errorf("-t: got %q", got)
	}
}

func TestBuildSlideshowErrors(t *testing.T) {
	src := t.TempDir()
	img := writeTestPNG(t, src, "1.png", 10, 10)

	tests := []struct {
		name     string
		images   []string
		perImage time.Duration
		audio    string
		runErr   error
		wantOp   string
	}{
		{"no images", nil, time.Second, "", nil, "build"},
		{"zero duration", []string{img}, 0, "", nil, "build"},
		{"missing image", []string{filepath.Join(src, "gone.png")}, time.Second, "", nil, "open"},
		{"missing audio", []string{img}, time.Second, filepath.Join(src, "gone.mp3"), nil, "open audio"},
		{"encoder failure", []string{img}, time.Second, "", errors.New("exit status 1"), "encode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			a := NewAssembler("ffmpeg", out, &fakeRunner{err: tt.runErr})
			path, err := a.BuildSlideshow(context.Background(), tt.images, tt.perImage, tt.audio)

			var me *MediaError
			if !errors.As(err, &me) {
				t.Fatalf("got %v, want *MediaError", err)
			}
			if me.Op != tt.wantOp {
				t.Errorf("Op: got %q, want %q", me.Op, tt.wantOp)
			}
			if path != "" {
				t.Errorf("path should be empty on failure, got %q", path)
			}
			entries, _ := os.ReadDir(out)
			if len(entries) != 0 {
				t.Errorf("partial output left behind: %v", entries)
			}
		})
	}
}
