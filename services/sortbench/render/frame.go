// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render turns buffer snapshots and benchmark reports into things a
// person can look at: images, terminal half-block art and formatted stats.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/results"
)

// ErrFrameSize indicates a frame whose pixel bytes do not match its dimensions.
var ErrFrameSize = errors.New("frame size mismatch")

// Presenter receives frames and stats from the polling loop.
type Presenter interface {
	PresentFrame(Frame) error
	PresentStats(results.Report) error
}

// Frame is a point-in-time copy of the working buffer. The copy may mix
// pixels from before and after concurrent writes, never within one pixel.
type Frame struct {
	Pixels []byte
	Width  int
	Height int
	Format buffer.PixelFormat

	// Tick is the render tick that produced the frame.
	Tick uint64
}

// Capture snapshots view into dst (reused when large enough).
func Capture(view buffer.View, dst []byte, tick uint64) Frame {
	return Frame{
		Pixels: view.Snapshot(dst),
		Width:  view.Width(),
		Height: view.Height(),
		Format: buffer.PixelFormatBGRA32,
		Tick:   tick,
	}
}

// Len returns the pixel count.
func (f Frame) Len() int {
	return f.Width * f.Height
}

// Validate checks the byte length against the dimensions.
func (f Frame) Validate() error {
	if want := buffer.Stride(f.Width) * f.Height; len(f.Pixels) != want {
		return fmt.Errorf("%dx%d frame has %d bytes, want %d: %w", f.Width, f.Height, len(f.Pixels), want, ErrFrameSize)
	}
	return nil
}

// Level returns the gray level of pixel i.
func (f Frame) Level(i int) uint8 {
	return f.Pixels[i*buffer.BytesPerPixel]
}

// Image converts a BGRA frame to an NRGBA image.
func Image(f Frame) (*image.NRGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i := 0; i+3 < len(f.Pixels); i += buffer.BytesPerPixel {
		img.Pix[i+0] = f.Pixels[i+2]
		img.Pix[i+1] = f.Pixels[i+1]
		img.Pix[i+2] = f.Pixels[i+0]
		img.Pix[i+3] = f.Pixels[i+3]
	}
	return img, nil
}

// WritePNG encodes the frame as PNG.
func WritePNG(w io.Writer, f Frame) error {
	img, err := Image(f)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// Sortedness returns the fraction of adjacent pixel pairs in non-decreasing
// gray order. Frames with fewer than two pixels are fully sorted.
func Sortedness(f Frame) float64 {
	n := min(f.Len(), len(f.Pixels)/buffer.BytesPerPixel)
	if n < 2 {
		return 1
	}
	ordered := 0
	for i := 1; i < n; i++ {
		if f.Level(i-1) <= f.Level(i) {
			ordered++
		}
	}
	return float64(ordered) / float64(n-1)
}
