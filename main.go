// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The reel command decodes animated GIF and WebP images, still images and
// marquee text, reporting their properties and playing them out to PNG
// frames.
//
// Usage:
//
//	reel [options] <file|data URI|text>
//
// Data URIs may describe text, image files, base64 encoded image data or
// solid colors. See the source package for the accepted forms.
//
// With -probe, the decoded properties are printed as JSON. With -at, the
// frame position at the given play head is printed. With -play, the asset
// is played at the configured refresh rate for the given duration, or to
// completion if the duration is zero. Frames that would be displayed are
// written to the -out directory if it is set. Without -play, -out writes
// every frame of the asset.
//
// The configuration file is read from $XDG_CONFIG_HOME/reel/config.toml
// unless -config is given. During playback, changes to the logging
// configuration are applied as the file is edited.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/kortschak/reel/internal/animation"
	"github.com/kortschak/reel/internal/config"
	"github.com/kortschak/reel/internal/playback"
	"github.com/kortschak/reel/internal/slogext"
	"github.com/kortschak/reel/internal/source"
	"github.com/kortschak/reel/internal/version"
	"github.com/kortschak/reel/internal/xdg"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

// textSize is the edge length of rendered text frames.
const textSize = 72

func main() { os.Exit(Main()) }

func Main() int {
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	cfgPath := flag.String("config", "", "configuration file (default $XDG_CONFIG_HOME/reel/config.toml)")
	id := flag.String("id", "", "asset UUID (default random)")
	text := flag.Bool("text", false, "render the argument as marquee text")
	probe := flag.Bool("probe", false, "print asset properties as JSON")
	at := flag.Duration("at", -1, "print the frame position at the play head")
	play := flag.Duration("play", -1, "play for the duration, or to completion if zero")
	out := flag.String("out", "", "directory to write frames to as PNG")
	fps := flag.Float64("fps", 0, "display refresh rate in Hz (default from config or 60)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] <file|data URI|text>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if *v {
		s, err := version.String()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		fmt.Println(s)
		return success
	}
	if flag.NArg() != 1 || *fps < 0 {
		flag.Usage()
		return invocationError
	}
	var assetID uuid.UUID
	if *id != "" {
		var err error
		assetID, err = uuid.Parse(*id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid id: %v\n", err)
			return invocationError
		}
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	addSource := slogext.NewAtomicBool(*lines)
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// log is the root logger.
	log := slog.New(slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
		GoID:      true,
	}))
	// mlog is the logger for main.
	mlog := log.With(slog.String("component", "reel.main"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	path := *cfgPath
	if path == "" {
		path, err = xdg.Config(filepath.Join("reel", "config.toml"), false)
		if err != nil {
			var ok bool
			path, ok = xdg.ConfigPath(filepath.Join("reel", "config.toml"))
			if !ok {
				path = ""
			}
		}
	}
	cfg := &config.Config{}
	if path != "" {
		c, _, err := config.Load(path)
		switch {
		case c != nil:
			cfg = c
			if err != nil {
				mlog.LogAttrs(ctx, slog.LevelWarn, "invalid config", slog.String("path", path), slog.Any("error", err))
			}
		case errors.Is(err, os.ErrNotExist):
			mlog.LogAttrs(ctx, slog.LevelDebug, "no config", slog.String("path", path))
		default:
			fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
			return invocationError
		}
	}
	applyLogging(cfg, &level, addSource, set)
	mlog.LogAttrs(ctx, slog.LevelDebug, "config", slog.String("path", path), slog.Any("config", cfg))

	opts := animation.Options{
		ID:        assetID,
		CacheSize: cfg.CacheSize(),
		Preload:   cfg.Preload(),
		Log:       log,
		CoverImage: func(a *animation.Asset, img image.Image) {
			mlog.LogAttrs(ctx, slog.LevelDebug, "cover", slog.String("id", a.ID().String()), slog.Any("bounds", img.Bounds()))
		},
		Ready: func(a *animation.Asset) {
			mlog.LogAttrs(ctx, slog.LevelDebug, "ready", slog.String("id", a.ID().String()), slog.Int("frames", a.FrameCount()))
		},
	}
	rect := image.Rect(0, 0, textSize, textSize)
	var in source.Input
	if *text {
		dec, err := source.Text(flag.Arg(0), rect, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to render text: %v\n", err)
			return invocationError
		}
		in.Decoder = dec
	} else {
		in, err = source.Resolve(flag.Arg(0), ".", rect)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
			return invocationError
		}
	}
	var asset *animation.Asset
	if in.Path != "" {
		f, err := os.Open(in.Path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return invocationError
		}
		asset = animation.ReadAsset(f, opts)
		f.Close()
	} else {
		opts.Decoder = in.Decoder
		asset = animation.NewAsset(in.Data, opts)
	}
	defer asset.Close()

	select {
	case <-asset.Done():
	case <-ctx.Done():
		asset.Cancel()
		<-asset.Done()
	}
	if s := asset.Status(); s != animation.Processed {
		fmt.Fprintf(os.Stderr, "failed to decode %s: %s: %v\n", flag.Arg(0), s, asset.Cause())
		return internalError
	}

	if *probe {
		err = printProbe(asset)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
	}
	if *at >= 0 {
		pos := playback.FrameIndexAt(*at, asset.Durations(), asset.LoopCount())
		fmt.Printf("frame=%d loops=%d finished=%t\n", pos.Frame, pos.Loops, pos.Finished)
	}

	var frames *frameWriter
	if *out != "" {
		frames, err = newFrameWriter(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		defer frames.close()
	}

	if *play < 0 {
		if frames == nil {
			return success
		}
		for i := 0; i < asset.FrameCount(); i++ {
			img, err := asset.ImageAt(i)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to decode frame %d: %v\n", i, err)
				return internalError
			}
			frames.write(img)
		}
		err = frames.err()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	interval := cfg.RefreshInterval()
	if *fps > 0 {
		interval = playback.TickerFor(*fps).Interval
	}
	if path != "" {
		go watchConfig(ctx, path, &level, addSource, set, log)
	}

	var shown atomic.Int64
	p := playback.NewPlayer(asset, playback.Ticker{Interval: interval}, func(f playback.Frame) {
		shown.Add(1)
		mlog.LogAttrs(ctx, slog.LevelDebug, "show", slog.Int("frame", f.Position.Frame), slog.Int("loops", f.Position.Loops), slog.Duration("play_head", f.PlayHead))
		if frames != nil {
			frames.write(f.Image)
		}
	}, &playback.PlayerOptions{Log: log})
	p.SetVisible(true)
	p.Ready()

	var timeout <-chan time.Time
	if *play > 0 {
		timer := time.NewTimer(*play)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-p.Done():
	case <-timeout:
		p.Stop()
	case <-ctx.Done():
		p.Stop()
	}
	fmt.Printf("shown=%d loops=%d\n", shown.Load(), p.PlayedLoops())
	if frames != nil {
		err = frames.err()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
	}
	return success
}

// applyLogging sets the logging level and source line options from cfg
// unless they were set on the command line.
func applyLogging(cfg *config.Config, level *slog.LevelVar, addSource *atomic.Bool, set map[string]bool) {
	if cfg == nil {
		return
	}
	if cfg.LogLevel != nil && !set["log"] {
		level.Set(*cfg.LogLevel)
	}
	if cfg.AddSource != nil && !set["lines"] {
		addSource.Store(*cfg.AddSource)
	}
}

// watchConfig applies logging configuration changes until ctx is cancelled.
func watchConfig(ctx context.Context, path string, level *slog.LevelVar, addSource *atomic.Bool, set map[string]bool, log *slog.Logger) {
	changes := make(chan config.Change)
	go func() {
		err := config.Watch(ctx, path, changes, -1, log)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "config watch", slog.Any("error", err))
		}
		close(changes)
	}()
	for c := range changes {
		if c.Err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "config stream error", slog.Any("error", c.Err))
		}
		log.LogAttrs(ctx, slog.LevelDebug, "config stream element", slog.Any("change", c))
		applyLogging(c.Config, level, addSource, set)
	}
}

func printProbe(a *animation.Asset) error {
	durations := a.Durations()
	ms := make([]int64, len(durations))
	for i, d := range durations {
		ms[i] = d.Milliseconds()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "\t")
	return enc.Encode(struct {
		ID        uuid.UUID `json:"id"`
		Frames    int       `json:"frames"`
		Width     int       `json:"width"`
		Height    int       `json:"height"`
		LoopCount int       `json:"loop_count"`
		Durations []int64   `json:"durations_ms"`
		Total     int64     `json:"total_ms"`
	}{
		ID:        a.ID(),
		Frames:    a.FrameCount(),
		Width:     a.Width(),
		Height:    a.Height(),
		LoopCount: a.LoopCount(),
		Durations: ms,
		Total:     a.TotalDuration().Milliseconds(),
	})
}

// frameWriter writes numbered PNG frames to a locked directory.
type frameWriter struct {
	dir  string
	lock *flock.Flock

	mu    sync.Mutex
	n     int
	first error
}

func newFrameWriter(dir string) (*frameWriter, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("output directory %s is in use", dir)
	}
	return &frameWriter{dir: dir, lock: lock}, nil
}

func (w *frameWriter) write(img image.Image) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.first != nil {
		return
	}
	name := filepath.Join(w.dir, fmt.Sprintf("%04d.png", w.n))
	w.n++
	f, err := os.Create(name)
	if err != nil {
		w.first = err
		return
	}
	err = png.Encode(f, img)
	if err != nil {
		f.Close()
		w.first = err
		return
	}
	w.first = f.Close()
}

func (w *frameWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.first
}

func (w *frameWriter) close() {
	w.lock.Unlock()
	os.Remove(w.lock.Path())
}
