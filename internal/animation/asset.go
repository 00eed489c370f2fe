// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kortschak/reel/internal/locked"
	"github.com/kortschak/reel/internal/slogext"
)

// Options configures an Asset.
type Options struct {
	// ID is the identity of the asset. If it is the
	// nil UUID, a random identity is assigned.
	ID uuid.UUID

	// Decoder is the frame decoder for the asset. If nil,
	// a decoder is selected by the format of the data.
	Decoder FrameDecoder

	// CoverImage is called with the first frame once it has
	// been decoded. It is called at most once.
	CoverImage func(*Asset, image.Image)

	// Ready is called once the asset's metadata has been
	// published. It is called at most once and never before
	// CoverImage.
	Ready func(*Asset)

	// CacheSize is the maximum number of frames other than the
	// cover frame to hold in memory. Zero means all frames.
	CacheSize int

	// Preload specifies that frames should be decoded into the
	// cache before the asset becomes ready.
	Preload bool

	// Log is the logger for pipeline events. If nil,
	// no logging is performed.
	Log *slog.Logger
}

// Asset is an animated image that is decoded in the background.
//
// The Status of an Asset advances through Unprocessed, Processing,
// CoverImageCompleted and Processed, or ends in Canceled or Error. Decoded
// properties are only defined once the status is Processed and their
// values before then are zero.
//
// Callbacks are called with the asset's lock held. They may call methods
// on the asset, but must not wait on other goroutines that do.
type Asset struct {
	id   uuid.UUID
	data []byte
	log  *slog.Logger

	status atomic.Int32
	done   chan struct{}

	// mu guards the fields below. It is never held by
	// the asset across a call to the decoder.
	mu      locked.RecursiveMutex
	errKind ErrorKind
	cause   error
	dec     FrameDecoder
	coverFn func(*Asset, image.Image)
	readyFn func(*Asset)

	cacheSize int
	preload   bool

	info  Info
	total time.Duration
	cache frameCache
}

// NewAsset returns a new Asset holding a copy of data and starts decoding
// it.
func NewAsset(data []byte, opts Options) *Asset {
	a := newAsset(opts)
	a.data = bytes.Clone(data)
	go a.run()
	return a
}

// ReadAsset returns a new Asset holding the data read from r and starts
// decoding it. If r cannot be read, the asset's status is Error with a
// FileHandleError, and if r holds no data the error is FileCreationError.
// In both cases decoding is not started.
func ReadAsset(r io.Reader, opts Options) *Asset {
	a := newAsset(opts)
	data, err := io.ReadAll(r)
	if err == nil && len(data) == 0 {
		a.fail(FileCreationError, errors.New("no data"))
		close(a.done)
		return a
	}
	if err != nil {
		a.fail(FileHandleError, err)
		close(a.done)
		return a
	}
	a.data = data
	go a.run()
	return a
}

func newAsset(opts Options) *Asset {
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	log := opts.Log
	if log == nil {
		log = slogext.Discard()
	}
	return &Asset{
		id:        id,
		log:       log.With(slog.String("component", "asset"), slog.String("id", id.String())),
		done:      make(chan struct{}),
		dec:       opts.Decoder,
		coverFn:   opts.CoverImage,
		readyFn:   opts.Ready,
		cacheSize: opts.CacheSize,
		preload:   opts.Preload,
	}
}

// ID returns the asset's identity.
func (a *Asset) ID() uuid.UUID { return a.id }

// Status returns the current status of the asset.
func (a *Asset) Status() Status {
	return Status(a.status.Load())
}

// Done returns a channel that is closed when the asset's decode pipeline
// has stopped.
func (a *Asset) Done() <-chan struct{} { return a.done }

// Err returns the kind of failure that moved the asset to the Error status,
// or NoError.
func (a *Asset) Err() ErrorKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errKind
}

// FrameCount returns the number of frames in the animation.
func (a *Asset) FrameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info.FrameCount
}

// Width returns the width of the animation canvas.
func (a *Asset) Width() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info.Width
}

// Height returns the height of the animation canvas.
func (a *Asset) Height() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info.Height
}

// LoopCount returns the total number of times the animation should be
// played. Zero means forever.
func (a *Asset) LoopCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info.LoopCount
}

// Durations returns a copy of the display durations of the frames. Each
// duration is at least MinimumDuration.
func (a *Asset) Durations() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.info.Durations)
}

// TotalDuration returns the sum of the frame durations.
func (a *Asset) TotalDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Cancel stops decoding of the asset. No callbacks are called after Cancel
// returns. Cancel returns whether the asset was canceled. An asset that has
// already been processed or has failed is not canceled.
func (a *Asset) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		s := a.Status()
		if s.done() {
			return false
		}
		if a.status.CompareAndSwap(int32(s), int32(Canceled)) {
			a.log.LogAttrs(context.Background(), slog.LevelDebug, "canceled", slog.Any("from", slogext.Stringer{Stringer: s}))
			return true
		}
	}
}

// Close detaches the asset's callbacks and cancels decoding.
func (a *Asset) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.coverFn = nil
	a.readyFn = nil
	a.Cancel()
}

// ImageAt returns the frame at index i. Frame 0 is available once the cover
// has been decoded, and remains available if the asset is later canceled or
// fails, so ImageAt(0) may succeed while FrameCount is still zero. Other
// frames are available once the asset is Processed.
// Frames that are not cached are decoded on the calling goroutine. Errors
// returned by ImageAt satisfy errors.Is(err, ImageFrameError). A frame that
// fails to decode does not change the asset's status and is decoded again
// by a later call.
func (a *Asset) ImageAt(i int) (image.Image, error) {
	a.mu.Lock()
	s := a.Status()
	var ok bool
	switch {
	case i < 0:
	case i == 0:
		ok = a.cache.cover != nil
	default:
		ok = s == Processed && i < a.info.FrameCount
	}
	n := a.info.FrameCount
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: frame %d not available: status=%s frames=%d", ImageFrameError, i, s, n)
	}
	return a.frame(i)
}

// frame returns frame i from the cache, or decodes it. Concurrent
// requests for the same frame share a single decode.
func (a *Asset) frame(i int) (image.Image, error) {
	a.mu.Lock()
	if img, ok := a.cache.get(i); ok {
		a.mu.Unlock()
		return img, nil
	}
	p, owner := a.cache.join(i)
	dec := a.dec
	a.mu.Unlock()
	if !owner {
		<-p.done
		return p.img, p.err
	}

	start := time.Now()
	p.img, p.err = dec.DecodeFrame(i)
	if p.err == nil && p.img == nil {
		p.err = errors.New("no image")
	}
	if p.err != nil && !errors.Is(p.err, ImageFrameError) {
		p.err = fmt.Errorf("%w: frame %d: %w", ImageFrameError, i, p.err)
	}
	// Release waiters before taking the lock so that a waiter
	// holding the lock in a callback cannot block the owner.
	close(p.done)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.settle(i, p)
	if p.err != nil {
		a.log.LogAttrs(context.Background(), slog.LevelWarn, "frame decode", slog.Int("frame", i), slog.Any("error", p.err))
	} else {
		a.log.LogAttrs(context.Background(), slog.LevelDebug, "frame decode", slog.Int("frame", i), slog.Duration("elapsed", time.Since(start)))
	}
	return p.img, p.err
}

// run is the decode pipeline.
func (a *Asset) run() {
	defer close(a.done)
	ctx := context.Background()

	if !a.status.CompareAndSwap(int32(Unprocessed), int32(Processing)) {
		return
	}
	a.log.LogAttrs(ctx, slog.LevelDebug, "processing", slog.Int("bytes", len(a.data)))

	a.mu.Lock()
	dec := a.dec
	if dec == nil {
		var err error
		dec, err = NewDecoder(a.data)
		if err != nil {
			a.failLocked(ImageFrameError, err)
			a.mu.Unlock()
			return
		}
		a.dec = dec
	}
	a.mu.Unlock()

	// The cover is decoded and committed independently of the
	// probe so that it can be shown as soon as possible.
	coverDone := make(chan struct{})
	go func() {
		defer close(coverDone)
		if a.Status() != Processing {
			return
		}
		img, err := dec.DecodeFrame(0)
		if err == nil && img == nil {
			err = errors.New("no image")
		}
		if err != nil {
			a.fail(ImageFrameError, fmt.Errorf("cover: %w", err))
			return
		}
		a.commitCover(img)
	}()

	info, err := dec.Probe()
	<-coverDone
	if err != nil {
		a.fail(ImageFrameError, fmt.Errorf("probe: %w", err))
		return
	}
	if a.Status() != CoverImageCompleted {
		return
	}
	err = validInfo(info)
	if err != nil {
		a.fail(ImageFrameError, err)
		return
	}
	info.Durations = ClampDurations(slices.Clone(info.Durations))
	var total time.Duration
	for _, d := range info.Durations {
		total += d
	}

	size := a.cacheSize
	if size <= 0 {
		size = info.FrameCount - 1
	}
	a.mu.Lock()
	err = a.cache.init(size)
	a.mu.Unlock()
	if err != nil {
		a.fail(ImageFrameError, err)
		return
	}

	if a.preload {
		for i := 1; i < min(info.FrameCount, size+1); i++ {
			if a.Status() != CoverImageCompleted {
				a.log.LogAttrs(ctx, slog.LevelDebug, "preload stopped", slog.Int("frame", i))
				return
			}
			_, err = a.frame(i)
			if err != nil {
				a.fail(ImageFrameError, fmt.Errorf("preload: %w", err))
				return
			}
		}
	}

	a.publish(info, total)
}

// validInfo checks decoder metadata for consistency.
func validInfo(info Info) error {
	switch {
	case info.FrameCount <= 0:
		return fmt.Errorf("invalid frame count: %d", info.FrameCount)
	case len(info.Durations) != info.FrameCount:
		return fmt.Errorf("mismatched frame count and duration count: %d != %d", info.FrameCount, len(info.Durations))
	case info.Width < 0 || info.Height < 0:
		return fmt.Errorf("invalid dimensions: %dx%d", info.Width, info.Height)
	case info.LoopCount < 0:
		return fmt.Errorf("invalid loop count: %d", info.LoopCount)
	}
	return nil
}

// commitCover pins the cover frame and notifies the host.
func (a *Asset) commitCover(img image.Image) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Status() != Processing {
		return
	}
	a.cache.pin(img)
	if !a.status.CompareAndSwap(int32(Processing), int32(CoverImageCompleted)) {
		return
	}
	a.log.LogAttrs(context.Background(), slog.LevelDebug, "cover image completed", slog.Any("bounds", img.Bounds()))
	if fn := a.coverFn; fn != nil {
		a.coverFn = nil
		fn(a, img)
	}
}

// publish makes the asset's metadata available and notifies the host.
func (a *Asset) publish(info Info, total time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Status() != CoverImageCompleted {
		return
	}
	a.info = info
	a.total = total
	a.status.Store(int32(Processed))
	a.log.LogAttrs(context.Background(), slog.LevelDebug, "processed",
		slog.Int("frames", info.FrameCount),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Int("loops", info.LoopCount),
		slog.Any("durations", slogext.Durations(info.Durations)),
		slog.Int("cached", a.cache.len()),
	)
	if fn := a.readyFn; fn != nil {
		a.readyFn = nil
		fn(a)
	}
}

// fail moves the asset to the Error status unless it has already stopped.
func (a *Asset) fail(kind ErrorKind, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failLocked(kind, err)
}

func (a *Asset) failLocked(kind ErrorKind, err error) {
	for {
		s := a.Status()
		if s.done() {
			return
		}
		a.errKind = kind
		a.cause = err
		if a.status.CompareAndSwap(int32(s), int32(Error)) {
			a.log.LogAttrs(context.Background(), slog.LevelError, "decode failed", slog.Any("kind", kind), slog.Any("error", err))
			return
		}
	}
}

// Cause returns the underlying error that moved the asset to the Error
// status, or nil.
func (a *Asset) Cause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cause
}
