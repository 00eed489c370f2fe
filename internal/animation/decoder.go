// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"time"
)

const (
	// DefaultDuration is the display duration used for frames that do
	// not declare one.
	DefaultDuration = 100 * time.Millisecond

	// MinimumDuration is the shortest frame display duration. Declared
	// durations below this are clamped up to it.
	MinimumDuration = 20 * time.Millisecond

	// UnspecifiedDuration is reported by a FrameDecoder for frames
	// whose container does not declare a duration.
	UnspecifiedDuration time.Duration = -1
)

// FrameDecoder is a container format decoder. Implementations are
// constructed over the encoded bytes they decode and must be safe for
// concurrent use; the cover frame is decoded concurrently with Probe.
type FrameDecoder interface {
	// Probe returns the container's metadata.
	Probe() (Info, error)

	// DecodeFrame returns the full canvas image for the frame at
	// index. Implementations should be able to decode index 0
	// without first performing a complete Probe.
	DecodeFrame(index int) (image.Image, error)
}

// Info is the metadata for an animated image.
type Info struct {
	// FrameCount is the number of frames.
	FrameCount int
	// Width and Height are the canvas dimensions.
	Width, Height int
	// LoopCount is the total number of times the animation is
	// played. Zero means forever.
	LoopCount int
	// Durations holds the display duration of each frame.
	Durations []time.Duration
}

// ClampDurations replaces UnspecifiedDuration values in d with DefaultDuration
// and raises durations below MinimumDuration to MinimumDuration. The result
// is written into d and returned.
func ClampDurations(d []time.Duration) []time.Duration {
	for i, v := range d {
		switch {
		case v == UnspecifiedDuration:
			d[i] = DefaultDuration
		case v < MinimumDuration:
			d[i] = MinimumDuration
		}
	}
	return d
}

// NewDecoder returns a FrameDecoder for the container format of data,
// identified by its magic bytes. Data in other formats registered with
// the image package is decoded as a single still frame.
func NewDecoder(data []byte) (FrameDecoder, error) {
	switch {
	case hasMagic("GIF8?a", data):
		return NewGIFDecoder(data), nil
	case hasMagic("RIFF????WEBP", data):
		return NewWebPDecoder(data), nil
	}
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown container format", ImageFrameError)
	}
	return NewStillDecoder(data), nil
}

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return peekMagic("GIF8?a", r)
}

// IsWebP returns whether the data held by r is a WebP image.
func IsWebP(r ReadPeeker) bool {
	return peekMagic("RIFF????WEBP", r)
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// peekMagic returns whether r starts with the provided magic bytes.
func peekMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil {
		return false
	}
	return hasMagic(magic, b)
}

// hasMagic returns whether b starts with the provided magic bytes. A '?'
// in magic matches any byte.
func hasMagic(magic string, b []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i, c := range b[:len(magic)] {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}
