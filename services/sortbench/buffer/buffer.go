// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package buffer implements the working buffer shared between a running sort
// and the render loop.
//
// # Description
//
// A Working buffer is a width × height field of 32-bit grayscale pixels. Its
// byte view is BGRA32: four bytes per pixel, B, G, R, Alpha, with R=G=B.
//
// # Thread Safety
//
// A Working buffer has exactly one writer at a time (the sort backend during a
// run, the dataset generator while idle) and any number of readers. Every cell
// is an atomic word, so readers never observe a half-written pixel, but a
// Snapshot taken while a sort is running mixes cells from different moments.
// That tearing across cells is what animates the visualization and is
// accepted. Nothing else in the program may rely on a consistent snapshot
// while a run is in progress.
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
)

// BytesPerPixel is the size of one pixel tuple in the byte view.
const BytesPerPixel = 4

// PixelFormat identifies the byte layout of a frame.
type PixelFormat int

const (
	// PixelFormatBGRA32 is 8 bits each of blue, green, red and alpha.
	PixelFormatBGRA32 PixelFormat = iota
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA32:
		return "bgra32"
	default:
		return "unknown"
	}
}

// BitsPerPixel returns the pixel size in bits.
func (f PixelFormat) BitsPerPixel() int {
	return 32
}

var (
	// ErrInvalidDimensions indicates a negative width or height.
	ErrInvalidDimensions = errors.New("invalid buffer dimensions")

	// ErrSizeMismatch indicates a byte slice whose length does not match the buffer.
	ErrSizeMismatch = errors.New("buffer size mismatch")
)

// Stride returns the number of bytes in one row of a BGRA32 field.
func Stride(width int) int {
	return (width*PixelFormatBGRA32.BitsPerPixel() + 7) / 8
}

// Gray packs a gray level into an opaque pixel.
func Gray(level uint8) uint32 {
	v := uint32(level)
	return 0xFF<<24 | v<<16 | v<<8 | v
}

// Level returns the gray level of a pixel (its blue channel).
func Level(px uint32) uint8 {
	return uint8(px)
}

// Alpha returns the alpha channel of a pixel.
func Alpha(px uint32) uint8 {
	return uint8(px >> 24)
}

// Cells is the view a sort backend gets of the buffer.
//
// Load and Store address pixels by index in [0, Len()).
type Cells interface {
	Len() int
	Load(i int) uint32
	Store(i int, v uint32)
}

// View is the read-only side of the buffer handed to presenters.
type View interface {
	Width() int
	Height() int
	Snapshot(dst []byte) []byte
}

// Working is the shared pixel field.
type Working struct {
	width  int
	height int
	cells  []atomic.Uint32
}

// New allocates a zeroed width × height buffer.
//
// # Outputs
//
//   - *Working: The buffer. Never nil on success.
//   - error: ErrInvalidDimensions if width or height is negative.
func New(width, height int) (*Working, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidDimensions)
	}
	return &Working{
		width:  width,
		height: height,
		cells:  make([]atomic.Uint32, width*height),
	}, nil
}

// Width returns the field width in pixels.
func (w *Working) Width() int { return w.width }

// Height returns the field height in pixels.
func (w *Working) Height() int { return w.height }

// Len returns the number of pixels.
func (w *Working) Len() int { return len(w.cells) }

// ByteLen returns the length of the byte view, Stride(width) × height.
func (w *Working) ByteLen() int { return Stride(w.width) * w.height }

// Load returns pixel i.
func (w *Working) Load(i int) uint32 { return w.cells[i].Load() }

// Store sets pixel i.
func (w *Working) Store(i int, v uint32) { w.cells[i].Store(v) }

// Swap exchanges pixels i and j. Not atomic as a pair.
func (w *Working) Swap(i, j int) {
	a := w.cells[i].Load()
	w.cells[i].Store(w.cells[j].Load())
	w.cells[j].Store(a)
}

// Fill sets every pixel to v.
func (w *Working) Fill(v uint32) {
	for i := range w.cells {
		w.cells[i].Store(v)
	}
}

// Snapshot copies the byte view into dst, growing it if needed, and returns
// the filled slice.
func (w *Working) Snapshot(dst []byte) []byte {
	n := w.ByteLen()
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i := range w.cells {
		binary.LittleEndian.PutUint32(dst[i*BytesPerPixel:], w.cells[i].Load())
	}
	return dst
}

// Bytes returns a fresh copy of the byte view.
func (w *Working) Bytes() []byte {
	return w.Snapshot(nil)
}

// CopyFrom overwrites the buffer with a byte view of the same size.
func (w *Working) CopyFrom(src []byte) error {
	if len(src) != w.ByteLen() {
		return fmt.Errorf("copy %d bytes into %d: %w", len(src), w.ByteLen(), ErrSizeMismatch)
	}
	for i := range w.cells {
		w.cells[i].Store(binary.LittleEndian.Uint32(src[i*BytesPerPixel:]))
	}
	return nil
}

// CopyCells copies n pixels from src starting at 0 into w starting at offset.
func (w *Working) CopyCells(offset int, src Cells, n int) {
	for i := 0; i < n; i++ {
		w.cells[offset+i].Store(src.Load(i))
	}
}

// Pixels returns a copy of the pixel words.
func (w *Working) Pixels() []uint32 {
	out := make([]uint32, len(w.cells))
	for i := range w.cells {
		out[i] = w.cells[i].Load()
	}
	return out
}

// Ensure Working satisfies both views.
var (
	_ Cells = (*Working)(nil)
	_ View  = (*Working)(nil)
)
