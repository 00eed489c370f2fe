// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package text

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

func TestSize(t *testing.T) {
	for _, test := range []struct {
		bound      image.Rectangle
		rows, cols int
	}{
		{bound: image.Rect(0, 0, 72, 72), rows: 5, cols: 10},
		{bound: image.Rect(0, 0, 144, 26), rows: 2, cols: 20},
		{bound: image.Rect(10, 10, 20, 20), rows: 0, cols: 1},
	} {
		rows, cols := Size(test.bound, basicfont.Face7x13)
		if rows != test.rows || cols != test.cols {
			t.Errorf("unexpected size for %v: got:%d×%d want:%d×%d", test.bound, rows, cols, test.rows, test.cols)
		}
	}
}

var drawTests = []struct {
	name   string
	text   string
	rect   image.Rectangle
	dx, dy float64

	// check is called with the bounding box of drawn
	// pixels and the destination bounds.
	check func(ink, bound image.Rectangle) bool
}{
	{
		name: "topleft",
		text: "text",
		rect: image.Rect(0, 0, 72, 72),
		check: func(ink, _ image.Rectangle) bool {
			return ink.Min.X < 7 && ink.Min.Y < 13
		},
	},
	{
		name: "topright",
		text: "text",
		rect: image.Rect(0, 0, 72, 72),
		dx:   1,
		check: func(ink, bound image.Rectangle) bool {
			return ink.Max.X > bound.Max.X-7 && ink.Min.Y < 13
		},
	},
	{
		name: "centered",
		text: "text",
		rect: image.Rect(0, 0, 72, 72),
		dx:   0.5, dy: 0.5,
		check: func(ink, bound image.Rectangle) bool {
			c := ink.Min.Add(ink.Max).Div(2)
			want := bound.Min.Add(bound.Max).Div(2)
			d := c.Sub(want)
			return abs(d.X) <= 4 && abs(d.Y) <= 4
		},
	},
	{
		name: "sentence",
		text: "Lorem ipsum dolor sit amet, consectetur adipisci elit, sed eiusmod tempor incidunt ut labore et dolore magna aliqua.",
		rect: image.Rect(0, 0, 72, 72),
		check: func(ink, bound image.Rectangle) bool {
			// Overflowing text fills the available rows.
			return ink.Max.Y > bound.Max.Y-13
		},
	},
	{
		name: "too_small",
		text: "text",
		rect: image.Rect(0, 0, 10, 10),
		check: func(ink, _ image.Rectangle) bool {
			return ink.Empty()
		},
	},
}

func TestDraw(t *testing.T) {
	for _, test := range drawTests {
		t.Run(test.name, func(t *testing.T) {
			dst := image.NewRGBA(test.rect)
			draw.Draw(dst, dst.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)
			Draw(dst, test.text, color.White, basicfont.Face7x13, test.dx, test.dy, true)
			ink := inkBounds(dst, color.RGBA{A: 0xff})
			if !ink.In(dst.Bounds()) {
				t.Errorf("ink outside destination: %v not in %v", ink, dst.Bounds())
			}
			if !test.check(ink, dst.Bounds()) {
				t.Errorf("unexpected ink bounds: %v in %v", ink, dst.Bounds())
			}
		})
	}
}

func inkBounds(img *image.RGBA, bg color.RGBA) image.Rectangle {
	var ink image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != bg {
				ink = ink.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return ink
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
