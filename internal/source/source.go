// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source resolves command arguments into animation inputs.
//
// An argument is either a path to an image file or a data URI in one of
// the forms
//
//	data:text/plain[;fg=<color>][;bg=<color>][;delay=<duration>],<message>
//	data:text/filename,<path>
//	data:image/*;base64,<data>
//	data:image/color;name,<ansi color name>
//	data:image/color;web,#<rrggbb>
//
// where a color is an ANSI color name or a web color.
package source

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kortschak/reel/internal/animation"
)

// Input is a resolved animation input. Exactly one field is set.
type Input struct {
	// Path is the path to an encoded image file.
	Path string
	// Data is encoded image data.
	Data []byte
	// Decoder is a decoder for synthesized frames.
	Decoder animation.FrameDecoder
}

// Resolve returns the input described by arg. Relative file paths are
// resolved against dir. Synthesized frames are rendered to rect.
func Resolve(arg, dir string, rect image.Rectangle) (Input, error) {
	if !strings.HasPrefix(arg, "data:") {
		return Input{Path: path(arg, dir)}, nil
	}
	typ, mtyp, par, val, enc, err := parseDataURI(arg)
	if err != nil {
		return Input{}, err
	}
	param, err := getParams(par)
	if err != nil {
		return Input{}, err
	}
	switch typ {
	case "text":
		switch mtyp {
		case "text/plain":
			dec, err := Text(val, rect, param)
			if err != nil {
				return Input{}, err
			}
			return Input{Decoder: dec}, nil
		case "text/filename":
			return Input{Path: path(val, dir)}, nil
		default:
			return Input{}, fmt.Errorf("unknown text mime type: %s", arg)
		}
	case "image":
		switch enc {
		case "name":
			col, ok := ansiColor[val]
			if !ok {
				return Input{}, fmt.Errorf("invalid color name: %s", val)
			}
			return Input{Decoder: animation.StillImage(swatch(rect, col))}, nil
		case "web":
			col, err := webColor(val)
			if err != nil {
				return Input{}, err
			}
			return Input{Decoder: animation.StillImage(swatch(rect, col))}, nil
		case "base64":
			b, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return Input{}, fmt.Errorf("base64: %w", err)
			}
			return Input{Data: b}, nil
		}
	}
	panic("unreachable")
}

// Text returns a text decoder for msg rendered to rect. Recognised params
// are fg and bg for the text and background colors, and delay for the
// marquee frame duration.
func Text(msg string, rect image.Rectangle, param map[string]string) (*animation.TextDecoder, error) {
	fg, bg, err := fgbg(color.White, color.Black, param)
	if err != nil {
		return nil, err
	}
	var delay time.Duration
	if v, ok := param["delay"]; ok {
		delay, err = time.ParseDuration(v)
		if err != nil {
			return nil, err
		}
		if delay <= 0 {
			return nil, fmt.Errorf("invalid delay: %s", v)
		}
	}
	return animation.NewTextDecoder(msg, animation.TextOptions{
		Bounds:     rect,
		Foreground: fg,
		Background: bg,
		Delay:      delay,
	})
}

// path returns p with a leading ~/ expanded to the user's home directory
// and relative paths joined to dir.
func path(p, dir string) string {
	p, ok := strings.CutPrefix(p, "~/")
	if ok {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p)
		}
		p = "~/" + p
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	return p
}

func swatch(rect image.Rectangle, col color.Color) image.Image {
	img := image.NewRGBA(rect)
	r, g, b, a := col.RGBA()
	c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func getParams(par string) (map[string]string, error) {
	if par == "" {
		return nil, nil
	}
	param := make(map[string]string)
	var err error
	for _, kv := range strings.Split(par, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return nil, fmt.Errorf("invalid params: %s", par)
		}
		param[strings.TrimSpace(k)], err = url.PathUnescape(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
	}
	return param, nil
}

// parseDataURI splits a data URI into its components.
func parseDataURI(uri string) (typ, mtyp, par, val, enc string, err error) {
	u, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid scheme: %s", uri)
	}
	mtyp, val, ok = strings.Cut(u, ",")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid data uri: %s", uri)
	}
	typ, _, ok = strings.Cut(mtyp, "/")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid data uri: %s", uri)
	}
	switch typ {
	case "text":
		mtyp, par, _ := strings.Cut(mtyp, ";")
		return typ, mtyp, par, val, "", nil
	case "image":
		mtyp, enc, ok = cutLast(mtyp, ";")
		if !ok {
			return "", "", "", "", "", fmt.Errorf("invalid image data uri: %s", uri)
		}
		switch enc {
		case "base64", "name", "web":
			mtyp, par, _ := strings.Cut(mtyp, ";")
			return typ, mtyp, par, val, enc, nil
		default:
			return "", "", "", "", "", fmt.Errorf("invalid encoding in image uri: %s", uri)
		}
	default:
		return "", "", "", "", "", fmt.Errorf("unknown mime type: %s", uri)
	}
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func fgbg(fg, bg color.Color, param map[string]string) (_fg, _bg color.Color, err error) {
	_fg, _bg = fg, bg
	if v, ok := param["fg"]; ok {
		_fg, err = paramColor(v)
		if err != nil {
			return fg, bg, err
		}
	}
	if v, ok := param["bg"]; ok {
		_bg, err = paramColor(v)
		if err != nil {
			return fg, bg, err
		}
	}
	return _fg, _bg, nil
}

func paramColor(val string) (color.Color, error) {
	if strings.HasPrefix(val, "#") {
		return webColor(val)
	}
	col, ok := ansiColor[val]
	if !ok {
		return nil, fmt.Errorf("invalid color name: %s", val)
	}
	return col, nil
}

var ansiColor = map[string]color.RGBA{
	"black":     {R: 0x00, G: 0x00, B: 0x00, A: 0xff},
	"red":       {R: 0x80, G: 0x00, B: 0x00, A: 0xff},
	"green":     {R: 0x00, G: 0x80, B: 0x00, A: 0xff},
	"yellow":    {R: 0x80, G: 0x80, B: 0x00, A: 0xff},
	"blue":      {R: 0x00, G: 0x00, B: 0x80, A: 0xff},
	"magenta":   {R: 0x80, G: 0x00, B: 0x80, A: 0xff},
	"cyan":      {R: 0x00, G: 0x80, B: 0x80, A: 0xff},
	"white":     {R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	"hiblack":   {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"hired":     {R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	"higreen":   {R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	"hiyellow":  {R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	"hiblue":    {R: 0x00, G: 0x00, B: 0xff, A: 0xff},
	"himagenta": {R: 0xff, G: 0x00, B: 0xff, A: 0xff},
	"hicyan":    {R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	"hiwhite":   {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

func webColor(val string) (color.Color, error) {
	val, ok := strings.CutPrefix(val, "#")
	if !ok || len(val) != 6 {
		return nil, fmt.Errorf("invalid web color: %s", val)
	}
	c, err := strconv.ParseUint(val, 16, 24)
	if err != nil {
		return nil, err
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(c))
	return color.NRGBA{R: b[1], G: b[2], B: b[3], A: 0xff}, nil
}
