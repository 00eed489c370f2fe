// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// GIFDecoder is a FrameDecoder for GIF images.
//
// Frames are composited onto a canvas the size of the GIF's logical screen
// according to each frame's disposal method. The decoder keeps the canvas
// state after the most recently decoded frame, so frames requested in
// ascending order are composited incrementally while a request for an
// earlier frame replays the animation from the start.
type GIFDecoder struct {
	data []byte

	mu  sync.Mutex
	gif *gif.GIF
	err error

	// canvas holds the composite of frames [0, next)
	// with the disposal of frame next-1 applied.
	canvas     *image.RGBA
	next       int
	background image.Image
}

// NewGIFDecoder returns a GIFDecoder for the GIF encoded in data. The data
// must not be modified while the decoder is in use.
func NewGIFDecoder(data []byte) *GIFDecoder {
	return &GIFDecoder{data: data}
}

// Probe implements the FrameDecoder interface. Durations are taken from
// the GIF delay table and clamped with ClampDurations. The GIF loop count
// is converted from a restart count to a total play count.
func (d *GIFDecoder) Probe() (Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, err := d.parse()
	if err != nil {
		return Info{}, err
	}
	durations := make([]time.Duration, len(g.Image))
	for i := range durations {
		if g.Delay == nil {
			durations[i] = UnspecifiedDuration
			continue
		}
		durations[i] = 10 * time.Duration(g.Delay[i]) * time.Millisecond
	}
	b := d.canvas.Bounds()
	return Info{
		FrameCount: len(g.Image),
		Width:      b.Dx(),
		Height:     b.Dy(),
		LoopCount:  gifLoops(g.LoopCount),
		Durations:  ClampDurations(durations),
	}, nil
}

// gifLoops converts an image/gif loop count to the total number of times
// the animation is played.
func gifLoops(n int) int {
	switch {
	case n == 0:
		return 0
	case n < 0:
		return 1
	default:
		return n + 1
	}
}

// DecodeFrame implements the FrameDecoder interface. If the GIF has not yet
// been fully parsed, index 0 is decoded from the first image only.
func (d *GIFDecoder) DecodeFrame(index int) (image.Image, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: invalid frame index: %d", ImageFrameError, index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if index == 0 && d.gif == nil && d.err == nil {
		// Do not hold the lock while decoding the first
		// frame so that a concurrent Probe can proceed.
		d.mu.Unlock()
		img, err := d.first()
		d.mu.Lock()
		return img, err
	}
	g, err := d.parse()
	if err != nil {
		return nil, err
	}
	if index >= len(g.Image) {
		return nil, fmt.Errorf("%w: frame index out of range: %d >= %d", ImageFrameError, index, len(g.Image))
	}
	if index < d.next {
		clear(d.canvas.Pix)
		d.next = 0
	}
	for d.next < index {
		d.apply(g, d.next, false)
	}
	return d.apply(g, index, true), nil
}

// first returns the first frame of the GIF rendered onto a transparent
// canvas without decoding the remaining frames.
func (d *GIFDecoder) first() (image.Image, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ImageFrameError, err)
	}
	img, err := gif.Decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ImageFrameError, err)
	}
	b := image.Rect(0, 0, cfg.Width, cfg.Height)
	if b.Empty() {
		b = img.Bounds()
	}
	canvas := image.NewRGBA(b)
	draw.Copy(canvas, img.Bounds().Min, img, img.Bounds(), draw.Over, nil)
	return canvas, nil
}

// parse decodes and validates the complete GIF. It must be called with
// d.mu held. Parse failures are retained.
func (d *GIFDecoder) parse() (*gif.GIF, error) {
	if d.gif != nil || d.err != nil {
		return d.gif, d.err
	}
	g, err := gif.DecodeAll(bytes.NewReader(d.data))
	if err == nil {
		err = validGIF(g)
	}
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ImageFrameError, err)
		return nil, d.err
	}
	b := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if b.Empty() {
		b = g.Image[0].Bounds()
	}
	d.canvas = image.NewRGBA(b)
	d.background = image.Transparent
	// A GIF without a global colour table has an empty palette.
	if pal, ok := g.Config.ColorModel.(color.Palette); ok && int(g.BackgroundIndex) < len(pal) {
		d.background = &image.Uniform{pal[g.BackgroundIndex]}
	}
	d.gif = g
	return g, nil
}

// validGIF checks GIF delay, disposal and global background index values
// for validity. The background index is only checked when the GIF has a
// global colour table.
func validGIF(g *gif.GIF) error {
	if len(g.Image) == 0 {
		return errors.New("no frames")
	}
	if len(g.Image) != len(g.Delay) && g.Delay != nil {
		return fmt.Errorf("mismatched image count and delay count: %d != %d", len(g.Image), len(g.Delay))
	}
	if len(g.Image) != len(g.Disposal) && g.Disposal != nil {
		return fmt.Errorf("mismatched image count and disposal count: %d != %d", len(g.Image), len(g.Disposal))
	}
	pal, _ := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); len(pal) != 0 && idx >= len(pal) {
		return fmt.Errorf("global background colour index not in palette: %d", idx)
	}
	return nil
}

// apply composites frame f onto the canvas and then applies the frame's
// disposal. If snapshot is true, a copy of the canvas before disposal is
// returned. It must be called with d.mu held.
func (d *GIFDecoder) apply(g *gif.GIF, f int, snapshot bool) *image.RGBA {
	frame := g.Image[f]
	var disposal byte
	if g.Disposal != nil {
		disposal = g.Disposal[f]
	}
	var restore *image.RGBA
	if disposal == gif.DisposalPrevious {
		restore = cloneRGBA(d.canvas)
	}
	draw.Copy(d.canvas, frame.Bounds().Min, frame, frame.Bounds(), draw.Over, nil)
	var snap *image.RGBA
	if snapshot {
		snap = cloneRGBA(d.canvas)
	}
	switch disposal {
	case gif.DisposalBackground:
		draw.Copy(d.canvas, frame.Bounds().Min, d.background, frame.Bounds(), draw.Src, nil)
	case gif.DisposalPrevious:
		d.canvas = restore
	}
	d.next = f + 1
	return snap
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
