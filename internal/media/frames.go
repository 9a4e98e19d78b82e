// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package media

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decodeImage reads and decodes one still image.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MediaError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &MediaError{Op: "decode", Path: path, Err: err}
	}
	return img, nil
}

// scaleToHeight resizes img to the given height, preserving aspect ratio.
func scaleToHeight(img image.Image, height int) *image.RGBA {
	b := img.Bounds()
	width := int(math.Round(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// evenWidth rounds w up to the next even number; libx264 with yuv420p
// rejects odd dimensions.
func evenWidth(w int) int {
	return w + w%2
}

// renderFrames normalises every image to the same canvas: height is fixed,
// width is the widest scaled image, and narrower images are centred on
// black. Frames are written as PNG files into dir, in input order.
func renderFrames(images []string, dir string, height int) ([]string, error) {
	scaled := make([]*image.RGBA, 0, len(images))
	maxWidth := 0
	for _, path := range images {
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		s := scaleToHeight(img, height)
		if w := s.Bounds().Dx(); w > maxWidth {
			maxWidth = w
		}
		scaled = append(scaled, s)
	}

	canvasRect := image.Rect(0, 0, evenWidth(maxWidth), height)
	frames := make([]string, 0, len(scaled))
	for i, s := range scaled {
		canvas := image.NewRGBA(canvasRect)
		draw.Draw(canvas, canvasRect, image.NewUniform(color.Black), image.Point{}, draw.Src)
		offset := (canvasRect.Dx() - s.Bounds().Dx()) / 2
		draw.Draw(canvas, s.Bounds().Add(image.Pt(offset, 0)), s, image.Point{}, draw.Src)

		name := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if err := writePNG(name, canvas); err != nil {
			return nil, err
		}
		frames = append(frames, name)
	}
	return frames, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return &MediaError{Op: "write frame", Path: path, Err: err}
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return &MediaError{Op: "encode frame", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &MediaError{Op: "write frame", Path: path, Err: err}
	}
	return nil
}
