// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/kortschak/reel/internal/text"
)

// MarqueeDelay is the default display duration of each marquee frame.
const MarqueeDelay = 150 * time.Millisecond

// TextOptions specifies the rendering of a TextDecoder.
type TextOptions struct {
	// Bounds is the canvas rectangle.
	Bounds image.Rectangle
	// Foreground and Background are the text and canvas colors.
	// If nil, white and black are used.
	Foreground, Background color.Color
	// Delay is the display duration of each marquee frame.
	// If zero, MarqueeDelay is used.
	Delay time.Duration
}

// TextDecoder is a FrameDecoder that renders text using
// [basicfont.Face7x13]. Text that fits within the bounds is rendered
// as a single centered and word-wrapped frame. Longer text is rendered
// as a scrolling marquee that loops forever, one frame per character.
//
// Frames are rendered on demand and TextDecoder is safe for concurrent
// use.
type TextDecoder struct {
	text   []rune
	frames int
	bounds image.Rectangle
	fg, bg color.Color
	delay  time.Duration
}

// NewTextDecoder returns a TextDecoder for s.
func NewTextDecoder(s string, opts TextOptions) (*TextDecoder, error) {
	if opts.Bounds.Empty() {
		return nil, fmt.Errorf("%w: empty text bounds", ImageFrameError)
	}
	d := &TextDecoder{
		bounds: opts.Bounds,
		fg:     opts.Foreground,
		bg:     opts.Background,
		delay:  opts.Delay,
	}
	if d.fg == nil {
		d.fg = color.White
	}
	if d.bg == nil {
		d.bg = color.Black
	}
	if d.delay == 0 {
		d.delay = MarqueeDelay
	}

	rows, cols := text.Size(opts.Bounds, basicfont.Face7x13)
	if fits(s, rows, cols) {
		d.text = []rune(s)
		d.frames = 1
		return d, nil
	}
	if rows*cols < 4 {
		return nil, fmt.Errorf("%w: %w", ImageFrameError, errors.New("bound too small"))
	}
	d.text = []rune(strings.Repeat(" ", rows*cols-4) + s)
	d.frames = len(d.text)
	return d, nil
}

// fits returns whether s can be presented in a single word-wrapped
// frame of the given size.
func fits(s string, rows, cols int) bool {
	if utf8.RuneCountInString(s) > rows*cols {
		return false
	}
	wrapper := wrap.NewWrapper()
	wrapper.StripTrailingNewline = true
	wrapper.CutLongWords = true
	lines := strings.Split(wrapper.Wrap(s, cols), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return len(lines) < rows || (len(lines) == rows && len(lines[len(lines)-1]) <= cols)
}

// Probe implements the FrameDecoder interface. A single frame is
// shown once with an unspecified duration.
func (d *TextDecoder) Probe() (Info, error) {
	durations := make([]time.Duration, d.frames)
	loops := 0
	if d.frames == 1 {
		durations[0] = UnspecifiedDuration
		loops = 1
	} else {
		for i := range durations {
			durations[i] = d.delay
		}
	}
	return Info{
		FrameCount: d.frames,
		Width:      d.bounds.Dx(),
		Height:     d.bounds.Dy(),
		LoopCount:  loops,
		Durations:  ClampDurations(durations),
	}, nil
}

// DecodeFrame implements the FrameDecoder interface.
func (d *TextDecoder) DecodeFrame(index int) (image.Image, error) {
	if index < 0 || index >= d.frames {
		return nil, fmt.Errorf("%w: frame index out of range: %d not in [0,%d)", ImageFrameError, index, d.frames)
	}
	dst := image.NewRGBA(d.bounds)
	draw.Draw(dst, dst.Bounds(), &image.Uniform{d.bg}, image.Point{}, draw.Src)
	single := d.frames == 1 // Center and word break the text in this case.
	var delta float64
	if single {
		delta = 0.5
	}
	text.Draw(dst, string(d.text[index:]), d.fg, basicfont.Face7x13, delta, delta, single)
	return dst, nil
}
