// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/reel/internal/animation"
)

var rect = image.Rect(0, 0, 72, 72)

func gifData(t *testing.T) []byte {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	g := &gif.GIF{
		Image: []*image.Paletted{
			image.NewPaletted(image.Rect(0, 0, 2, 2), pal),
			image.NewPaletted(image.Rect(0, 0, 2, 2), pal),
		},
		Delay: []int{10, 10},
	}
	g.Image[1].Pix[0] = 1
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, g)
	if err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	return buf.Bytes()
}

func TestParseDataURI(t *testing.T) {
	type parts struct {
		Typ, Mtyp, Par, Val, Enc string
	}
	for _, test := range []struct {
		uri     string
		want    parts
		wantErr bool
	}{
		{
			uri:  "data:text/plain,message",
			want: parts{Typ: "text", Mtyp: "text/plain", Val: "message"},
		},
		{
			uri:  "data:text/plain;fg=black;bg=hiyellow,a, b",
			want: parts{Typ: "text", Mtyp: "text/plain", Par: "fg=black;bg=hiyellow", Val: "a, b"},
		},
		{
			uri:  "data:text/filename,anim.gif",
			want: parts{Typ: "text", Mtyp: "text/filename", Val: "anim.gif"},
		},
		{
			uri:  "data:image/*;base64,R0lG",
			want: parts{Typ: "image", Mtyp: "image/*", Val: "R0lG", Enc: "base64"},
		},
		{
			uri:  "data:image/color;name,hired",
			want: parts{Typ: "image", Mtyp: "image/color", Val: "hired", Enc: "name"},
		},
		{
			uri:  "data:image/color;title=x;web,#ff0000",
			want: parts{Typ: "image", Mtyp: "image/color", Par: "title=x", Val: "#ff0000", Enc: "web"},
		},
		{uri: "file:anim.gif", wantErr: true},
		{uri: "data:text/plain", wantErr: true},
		{uri: "data:text,message", wantErr: true},
		{uri: "data:image/png,abc", wantErr: true},
		{uri: "data:image/png;hex,abc", wantErr: true},
		{uri: "data:audio/wav;base64,abc", wantErr: true},
	} {
		var got parts
		var err error
		got.Typ, got.Mtyp, got.Par, got.Val, got.Enc, err = parseDataURI(test.uri)
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for %q: %v", test.uri, err)
			continue
		}
		if err != nil {
			continue
		}
		if !cmp.Equal(got, test.want) {
			t.Errorf("unexpected result for %q:\n--- want:\n+++ got:\n%s", test.uri, cmp.Diff(test.want, got))
		}
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	data := gifData(t)
	b64 := base64.StdEncoding.EncodeToString(data)

	for _, test := range []struct {
		name string
		arg  string

		wantPath   string
		wantData   []byte
		wantFrames int
		wantColor  color.Color
		wantErr    bool
	}{
		{name: "path", arg: "anim.gif", wantPath: filepath.Join(dir, "anim.gif")},
		{name: "abs_path", arg: "/tmp/anim.gif", wantPath: "/tmp/anim.gif"},
		{name: "filename", arg: "data:text/filename,anim.gif", wantPath: filepath.Join(dir, "anim.gif")},
		{name: "base64", arg: "data:image/*;base64," + b64, wantData: data},
		{name: "message", arg: "data:text/plain,message", wantFrames: 1, wantColor: color.RGBA{A: 0xff}},
		{
			name:       "message_colors",
			arg:        "data:text/plain;fg=black;bg=%23ffff00,message",
			wantFrames: 1,
			wantColor:  color.RGBA{R: 0xff, G: 0xff, A: 0xff},
		},
		{name: "name", arg: "data:image/color;name,hiblue", wantFrames: 1, wantColor: color.RGBA{B: 0xff, A: 0xff}},
		{name: "web", arg: "data:image/color;web,#102030", wantFrames: 1, wantColor: color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}},

		{name: "bad_name", arg: "data:image/color;name,mauve", wantErr: true},
		{name: "bad_web", arg: "data:image/color;web,#1020", wantErr: true},
		{name: "bad_base64", arg: "data:image/*;base64,!!!", wantErr: true},
		{name: "bad_param", arg: "data:text/plain;fg,message", wantErr: true},
		{name: "bad_fg", arg: "data:text/plain;fg=mauve,message", wantErr: true},
		{name: "bad_delay", arg: "data:text/plain;delay=-1s,message", wantErr: true},
		{name: "bad_text_type", arg: "data:text/html,<p>", wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := Resolve(test.arg, dir, rect)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if err != nil {
				return
			}
			if got.Path != test.wantPath {
				t.Errorf("unexpected path: got:%q want:%q", got.Path, test.wantPath)
			}
			if !bytes.Equal(got.Data, test.wantData) {
				t.Errorf("unexpected data: got:%d bytes want:%d bytes", len(got.Data), len(test.wantData))
			}
			if test.wantFrames == 0 {
				if got.Decoder != nil {
					t.Errorf("unexpected decoder: %T", got.Decoder)
				}
				return
			}
			if got.Decoder == nil {
				t.Fatal("expected decoder")
			}
			info, err := got.Decoder.Probe()
			if err != nil {
				t.Fatalf("unexpected probe error: %v", err)
			}
			if info.FrameCount != test.wantFrames {
				t.Errorf("unexpected frame count: got:%d want:%d", info.FrameCount, test.wantFrames)
			}
			img, err := got.Decoder.DecodeFrame(0)
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if img.Bounds() != rect {
				t.Errorf("unexpected bounds: got:%v want:%v", img.Bounds(), rect)
			}
			// The corner is never inked.
			c := color.RGBAModel.Convert(img.At(0, 0))
			if c != test.wantColor {
				t.Errorf("unexpected background: got:%v want:%v", c, test.wantColor)
			}
		})
	}
}

func TestText(t *testing.T) {
	dec, err := Text("a long message that spans more than a single screen of text", rect, map[string]string{"delay": "250ms"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := dec.Probe()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.LoopCount != 0 {
		t.Errorf("unexpected loop count for marquee: %d", info.LoopCount)
	}
	for i, d := range info.Durations {
		if d != 250*time.Millisecond {
			t.Fatalf("unexpected duration for frame %d: %v", i, d)
		}
	}

	a := animation.NewAsset(nil, animation.Options{Decoder: dec})
	<-a.Done()
	if a.Status() != animation.Processed {
		t.Errorf("unexpected status: %v", a.Status())
	}
}
