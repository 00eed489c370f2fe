// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	clear_ = color.RGBA{}
	red    = color.RGBA{R: 0xff, A: 0xff}
	green  = color.RGBA{G: 0xff, A: 0xff}
	blue   = color.RGBA{B: 0xff, A: 0xff}

	testPalette = color.Palette{clear_, red, green, blue}
)

// testGIF returns a 4×4 three frame GIF. The first frame fills the canvas
// with red, the second draws a green square in the top left and is disposed
// to the background, and the third draws a blue square in the bottom right
// and is disposed to the previous frame.
func testGIF(delay []int, loop int) *gif.GIF {
	if delay == nil {
		delay = []int{10, 10, 10}
	}
	return &gif.GIF{
		Image: []*image.Paletted{
			fill(image.Rect(0, 0, 4, 4), 1),
			fill(image.Rect(0, 0, 2, 2), 2),
			fill(image.Rect(2, 2, 4, 4), 3),
		},
		Delay:     delay,
		Disposal:  []byte{gif.DisposalNone, gif.DisposalBackground, gif.DisposalPrevious},
		LoopCount: loop,
		Config: image.Config{
			ColorModel: testPalette,
			Width:      4,
			Height:     4,
		},
		BackgroundIndex: 0,
	}
}

// localPalette returns g without a global colour table so that
// each frame is encoded with its own palette.
func localPalette(g *gif.GIF) *gif.GIF {
	g.Config = image.Config{}
	return g
}

func fill(r image.Rectangle, idx uint8) *image.Paletted {
	img := image.NewPaletted(r, testPalette)
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	return img
}

func encodeGIF(t *testing.T, g *gif.GIF) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, g)
	if err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	return buf.Bytes()
}

// pixels returns the colors of img in row-major order.
func pixels(img image.Image) []color.RGBA {
	b := img.Bounds()
	p := make([]color.RGBA, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p = append(p, color.RGBAModel.Convert(img.At(x, y)).(color.RGBA))
		}
	}
	return p
}

var wantGIFFrames = [][]color.RGBA{
	{
		red, red, red, red,
		red, red, red, red,
		red, red, red, red,
		red, red, red, red,
	},
	{
		green, green, red, red,
		green, green, red, red,
		red, red, red, red,
		red, red, red, red,
	},
	{
		clear_, clear_, red, red,
		clear_, clear_, red, red,
		red, red, blue, blue,
		red, red, blue, blue,
	},
}

func TestGIFProbe(t *testing.T) {
	for _, test := range []struct {
		name  string
		delay []int
		loop  int
		local bool
		want  Info
	}{
		{
			name:  "forever",
			delay: []int{0, 10, 1},
			loop:  0,
			want: Info{
				FrameCount: 3, Width: 4, Height: 4, LoopCount: 0,
				Durations: []time.Duration{MinimumDuration, 100 * time.Millisecond, MinimumDuration},
			},
		},
		{
			name:  "once",
			delay: []int{5, 5, 5},
			loop:  -1,
			want: Info{
				FrameCount: 3, Width: 4, Height: 4, LoopCount: 1,
				Durations: []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond},
			},
		},
		{
			name:  "three_times",
			delay: []int{2, 3, 200},
			loop:  2,
			want: Info{
				FrameCount: 3, Width: 4, Height: 4, LoopCount: 3,
				Durations: []time.Duration{20 * time.Millisecond, 30 * time.Millisecond, 2 * time.Second},
			},
		},
		{
			name:  "local_palette",
			delay: []int{5, 5, 5},
			loop:  -1,
			local: true,
			want: Info{
				FrameCount: 3, Width: 4, Height: 4, LoopCount: 1,
				Durations: []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			g := testGIF(test.delay, test.loop)
			if test.local {
				g = localPalette(g)
			}
			dec := NewGIFDecoder(encodeGIF(t, g))
			got, err := dec.Probe()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cmp.Equal(got, test.want) {
				t.Errorf("unexpected info:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestGIFDecodeFrame(t *testing.T) {
	palettes := []struct {
		name string
		data []byte
	}{
		{name: "global", data: encodeGIF(t, testGIF(nil, 0))},
		{name: "local", data: encodeGIF(t, localPalette(testGIF(nil, 0)))},
	}
	orders := []struct {
		name  string
		order []int
	}{
		{name: "ascending", order: []int{0, 1, 2}},
		{name: "descending", order: []int{2, 1, 0}},
		{name: "repeated", order: []int{1, 1, 2, 2, 0, 2}},
		{name: "cover_only", order: []int{0}},
	}
	for _, pal := range palettes {
		for _, test := range orders {
			t.Run(pal.name+"/"+test.name, func(t *testing.T) {
				decodeOrder(t, pal.data, test.order)
			})
		}
	}
}

// decodeOrder decodes the frames of data in the given order and checks
// them against wantGIFFrames.
func decodeOrder(t *testing.T, data []byte, order []int) {
	t.Helper()
	dec := NewGIFDecoder(data)
	for _, i := range order {
		img, err := dec.DecodeFrame(i)
		if err != nil {
			t.Fatalf("unexpected error decoding frame %d: %v", i, err)
		}
		if img.Bounds() != image.Rect(0, 0, 4, 4) {
			t.Errorf("unexpected bounds for frame %d: %v", i, img.Bounds())
		}
		got := pixels(img)
		if !cmp.Equal(got, wantGIFFrames[i]) {
			t.Errorf("unexpected pixels for frame %d:\n--- want:\n+++ got:\n%s", i, cmp.Diff(wantGIFFrames[i], got))
		}
	}
}

func TestGIFDecodeFrameIsolated(t *testing.T) {
	// Returned frames must not be modified by later decodes.
	dec := NewGIFDecoder(encodeGIF(t, testGIF(nil, 0)))
	first, err := dec.DecodeFrame(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := pixels(first)
	for _, i := range []int{2, 0, 2} {
		_, err = dec.DecodeFrame(i)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if after := pixels(first); !cmp.Equal(before, after) {
		t.Errorf("frame modified by later decode:\n--- before:\n+++ after:\n%s", cmp.Diff(before, after))
	}
}

func TestGIFErrors(t *testing.T) {
	data := encodeGIF(t, testGIF(nil, 0))
	for _, test := range []struct {
		name  string
		data  []byte
		index int
	}{
		{name: "truncated_probe", data: data[:len(data)/2], index: -1},
		{name: "truncated_frame", data: data[:len(data)/2], index: 2},
		{name: "header_only", data: []byte("GIF89a"), index: 0},
		{name: "out_of_range", data: data, index: 3},
		{name: "negative", data: data, index: -2},
	} {
		t.Run(test.name, func(t *testing.T) {
			dec := NewGIFDecoder(test.data)
			var err error
			if test.index == -1 {
				_, err = dec.Probe()
			} else {
				_, err = dec.DecodeFrame(test.index)
			}
			if !errors.Is(err, ImageFrameError) {
				t.Errorf("unexpected error: got:%v want:%v", err, ImageFrameError)
			}
		})
	}
}

func TestGIFLoops(t *testing.T) {
	for _, test := range []struct{ in, want int }{
		{in: 0, want: 0},
		{in: -1, want: 1},
		{in: 1, want: 2},
		{in: 65535, want: 65536},
	} {
		if got := gifLoops(test.in); got != test.want {
			t.Errorf("unexpected loop count for %d: got:%d want:%d", test.in, got, test.want)
		}
	}
}
