// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"fmt"
	"image"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// StillDecoder is a FrameDecoder for single frame images in any format
// registered with the image package. The image is shown once with an
// unspecified duration. StillDecoder is safe for concurrent use.
type StillDecoder struct {
	data []byte

	mu     sync.Mutex
	img    image.Image
	format string
	err    error
}

// NewStillDecoder returns a StillDecoder for the encoded image in data.
func NewStillDecoder(data []byte) *StillDecoder {
	return &StillDecoder{data: data}
}

// StillImage returns a StillDecoder that presents img.
func StillImage(img image.Image) *StillDecoder {
	return &StillDecoder{img: img, format: "image"}
}

// Format returns the registered name of the image's format. It is
// empty until the image has been probed or decoded.
func (d *StillDecoder) Format() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

// Probe implements the FrameDecoder interface.
func (d *StillDecoder) Probe() (Info, error) {
	d.mu.Lock()
	img := d.img
	d.mu.Unlock()
	var w, h int
	if img != nil {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	} else {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(d.data))
		if err != nil {
			return Info{}, fmt.Errorf("%w: %w", ImageFrameError, err)
		}
		d.mu.Lock()
		d.format = format
		d.mu.Unlock()
		w, h = cfg.Width, cfg.Height
	}
	return Info{
		FrameCount: 1,
		Width:      w,
		Height:     h,
		LoopCount:  1,
		Durations:  ClampDurations([]time.Duration{UnspecifiedDuration}),
	}, nil
}

// DecodeFrame implements the FrameDecoder interface.
func (d *StillDecoder) DecodeFrame(index int) (image.Image, error) {
	if index != 0 {
		return nil, fmt.Errorf("%w: frame index out of range: %d not in [0,1)", ImageFrameError, index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.img == nil && d.err == nil {
		d.img, d.format, d.err = image.Decode(bytes.NewReader(d.data))
		if d.err != nil {
			d.err = fmt.Errorf("%w: %w", ImageFrameError, d.err)
		}
	}
	return d.img, d.err
}
