// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	_ "github.com/deepteams/webp" // Register the VP8/VP8L frame codec.
	"github.com/deepteams/webp/animation"
)

// WebPDecoder is a FrameDecoder for animated and still WebP images.
//
// Frame bitstreams are only decoded when they are needed for compositing.
// Like GIFDecoder, WebPDecoder keeps its compositing position so that
// ascending requests do not replay the animation.
type WebPDecoder struct {
	data []byte

	mu   sync.Mutex
	anim *animation.Animation
	err  error
	dec  *animation.AnimDecoder
	pos  int // index of the next frame dec will composite
}

// NewWebPDecoder returns a WebPDecoder for the WebP encoded in data. The
// data must not be modified while the decoder is in use.
func NewWebPDecoder(data []byte) *WebPDecoder {
	return &WebPDecoder{data: data}
}

// Probe implements the FrameDecoder interface. WebP frames with a zero
// duration are treated as unspecified. A WebP loop count is already the
// total play count. Still images are played once.
func (d *WebPDecoder) Probe() (Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, err := d.parse()
	if err != nil {
		return Info{}, err
	}
	durations := make([]time.Duration, len(a.Frames))
	for i, f := range a.Frames {
		if f.Duration == 0 {
			durations[i] = UnspecifiedDuration
			continue
		}
		durations[i] = f.Duration
	}
	loops := a.LoopCount
	if len(a.Frames) == 1 {
		loops = 1
	}
	return Info{
		FrameCount: len(a.Frames),
		Width:      a.CanvasWidth,
		Height:     a.CanvasHeight,
		LoopCount:  loops,
		Durations:  ClampDurations(durations),
	}, nil
}

// DecodeFrame implements the FrameDecoder interface.
func (d *WebPDecoder) DecodeFrame(index int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, err := d.parse()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(a.Frames) {
		return nil, fmt.Errorf("%w: frame index out of range: %d not in [0,%d)", ImageFrameError, index, len(a.Frames))
	}
	if index < d.pos {
		d.rewind()
	}
	for {
		pos := d.pos
		img, err := d.step()
		if err != nil {
			// Leave the decoder rewound so that
			// the next request starts cleanly.
			d.rewind()
			return nil, fmt.Errorf("%w: frame %d: %w", ImageFrameError, pos, err)
		}
		if pos == index {
			return img, nil
		}
	}
}

// step decodes the bitstream of the next frame and composites it. The
// decoded frame pixels are released once composited since only the canvas
// is retained between frames. It must be called with d.mu held.
func (d *WebPDecoder) step() (*image.NRGBA, error) {
	f := &d.anim.Frames[d.pos]
	var err error
	f.Image, err = animation.FrameDecoderFunc(f.BitstreamData, f.AlphaData)
	if err != nil {
		f.Image = nil
		return nil, err
	}
	img, _, err := d.dec.NextFrame()
	f.Image = nil
	if err != nil {
		return nil, err
	}
	d.pos++
	return img, nil
}

func (d *WebPDecoder) rewind() {
	d.dec.Reset()
	d.pos = 0
}

// parse demuxes the WebP container. It must be called with d.mu held.
// Parse failures are retained.
func (d *WebPDecoder) parse() (*animation.Animation, error) {
	if d.anim != nil || d.err != nil {
		return d.anim, d.err
	}
	if animation.FrameDecoderFunc == nil {
		d.err = fmt.Errorf("%w: %w", ImageFrameError, animation.ErrNoDecoder)
		return nil, d.err
	}
	a, err := animation.DecodeBytes(d.data)
	if err == nil && len(a.Frames) == 0 {
		err = errors.New("no frames")
	}
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ImageFrameError, err)
		return nil, d.err
	}
	dec, err := animation.NewAnimDecoder(a)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ImageFrameError, err)
		return nil, d.err
	}
	d.anim = a
	d.dec = dec
	return a, nil
}
