// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package media assembles slideshow videos from still images for
// destinations that only accept video. Frames are normalised in Go and
// encoded by an external ffmpeg binary.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// FrameHeight is the output height every frame is normalised to.
	FrameHeight = 720
	// FrameRate is the output frame rate.
	FrameRate = 24
	// AudioVolume is the fraction of the original soundtrack volume kept.
	AudioVolume = 0.2
)

// Runner executes an external command. ExecRunner is the production
// implementation; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and folds the tail of its output into the error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		tail := out.String()
		if len(tail) > 1024 {
			tail = tail[len(tail)-1024:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(tail))
	}
	return nil
}

// Assembler builds slideshow videos.
type Assembler struct {
	ffmpeg    string
	outputDir string
	runner    Runner
	now       func() time.Time
}

// NewAssembler returns an Assembler writing videos into outputDir. A nil
// runner selects ExecRunner.
func NewAssembler(ffmpegPath, outputDir string, runner Runner) *Assembler {
	if runner == nil {
		runner = ExecRunner{}
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Assembler{ffmpeg: ffmpegPath, outputDir: outputDir, runner: runner, now: time.Now}
}

// BuildSlideshow turns images into one video in which every image is shown
// for perImage, in input order. When audio is non-empty it is attenuated,
// looped to cover the whole video, and muxed in; otherwise the video is
// silent. Every failure is a *MediaError and no partial output is left.
func (a *Assembler) BuildSlideshow(ctx context.Context, images []string, perImage time.Duration, audio string) (string, error) {
	if len(images) == 0 {
		return "", &MediaError{Op: "build", Err: errors.New("no images")}
	}
	if perImage <= 0 {
		return "", &MediaError{Op: "build", Err: fmt.Errorf("per-image duration must be positive, got %s", perImage)}
	}
	if audio != "" {
		if _, err := os.Stat(audio); err != nil {
			return "", &MediaError{Op: "open audio", Path: audio, Err: err}
		}
	}

	work, err := os.MkdirTemp("", "slideshow-*")
	if err != nil {
		return "", &MediaError{Op: "workdir", Err: err}
	}
	defer os.RemoveAll(work)

	frames, err := renderFrames(images, work, FrameHeight)
	if err != nil {
		return "", err
	}

	list := filepath.Join(work, "frames.txt")
	if err := os.WriteFile(list, concatList(frames, perImage), 0o644); err != nil {
		return "", &MediaError{Op: "write list", Path: list, Err: err}
	}

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return "", &MediaError{Op: "output dir", Path: a.outputDir, Err: err}
	}
	out := filepath.Join(a.outputDir, fmt.Sprintf("slideshow_%s_%s.mp4",
		a.now().Format("20060102150405"), uuid.NewString()[:8]))

	total := time.Duration(len(frames)) * perImage
	args := ffmpegArgs(list, audio, out, total)

	start := time.Now()
	if err := a.runner.Run(ctx, a.ffmpeg, args...); err != nil {
		os.Remove(out)
		return "", &MediaError{Op: "encode", Err: err}
	}
	if _, err := os.Stat(out); err != nil {
		return "", &MediaError{Op: "encode", Path: out, Err: err}
	}

	slog.Info("slideshow built",
		"images", len(frames),
		"duration", total,
		"audio", audio != "",
		"output", out,
		"took", time.Since(start),
	)
	return out, nil
}

// concatList renders an ffconcat script. The last frame is listed twice:
// the concat demuxer ignores the duration of the final entry otherwise.
func concatList(frames []string, perImage time.Duration) []byte {
	d := seconds(perImage)
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", escapeQuote(f), d)
	}
	fmt.Fprintf(&b, "file '%s'\n", escapeQuote(frames[len(frames)-1]))
	return []byte(b.String())
}

func ffmpegArgs(list, audio, out string, total time.Duration) []string {
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", list}
	if audio != "" {
		args = append(args, "-stream_loop", "-1", "-i", audio)
	}
	args = append(args,
		"-r", strconv.Itoa(FrameRate),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
	)
	if audio != "" {
		args = append(args,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-filter:a", "volume="+strconv.FormatFloat(AudioVolume, 'f', -1, 64),
			"-c:a", "aac",
		)
	} else {
		args = append(args, "-an")
	}
	return append(args, "-t", seconds(total), out)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// escapeQuote escapes a path for a single-quoted ffconcat string.
func escapeQuote(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
