// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package playback

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/kortschak/reel/internal/animation"
	"github.com/kortschak/reel/internal/slogext"
)

// Source is an animation that can be played. *animation.Asset is a Source.
type Source interface {
	Status() animation.Status
	Durations() []time.Duration
	LoopCount() int
	ImageAt(i int) (image.Image, error)
}

// Frame is a frame presented by a Player.
type Frame struct {
	Image    image.Image
	Position Position
	PlayHead time.Duration
}

// PlayerOptions holds optional Player configuration.
type PlayerOptions struct {
	// Lock is the lock guarding the player's subscription
	// to its scheduler. It is never acquired reentrantly.
	// If nil, a sync.Mutex is used.
	Lock sync.Locker

	// Log is the player's logger. If nil, no logging
	// is performed.
	Log *slog.Logger
}

// Player drives display of a Source from a Scheduler. Playback runs while
// the player is both visible and ready, and ends when the source has played
// all its loops or the player is stopped.
type Player struct {
	src   Source
	sched Scheduler
	show  func(Frame)
	log   *slog.Logger

	// life guards the subscription lifecycle.
	life     sync.Locker
	visible  bool
	ready    bool
	stopped  bool
	timeline *Timeline
	sub      Subscription
	gen      uint64
	done     chan struct{}

	// mu guards the play state which is only
	// advanced by ticks.
	mu          sync.Mutex
	playHead    time.Duration
	playedLoops int
	lastTick    time.Time
	shown       int
}

// NewPlayer returns a new Player that presents frames of src to show on
// ticks from sched. show is called from the scheduler's goroutine and only
// when the displayed frame changes.
func NewPlayer(src Source, sched Scheduler, show func(Frame), opts *PlayerOptions) *Player {
	p := &Player{
		src:   src,
		sched: sched,
		show:  show,
		done:  make(chan struct{}),
		shown: -1,
	}
	if opts != nil {
		p.life = opts.Lock
		p.log = opts.Log
	}
	if p.life == nil {
		p.life = &sync.Mutex{}
	}
	if p.log == nil {
		p.log = slogext.Discard()
	}
	p.log = p.log.With(slog.String("component", "player"))
	return p
}

// SetVisible sets whether the player's output is visible. Playback is
// paused while the player is not visible and time spent paused does not
// advance the play head.
func (p *Player) SetVisible(visible bool) {
	p.life.Lock()
	defer p.life.Unlock()
	p.visible = visible
	p.update()
}

// Ready notifies the player that its source has been fully decoded. It is
// typically called from the source's ready callback, but may also be called
// directly, and more than once.
func (p *Player) Ready() {
	// The source is read before taking p.life since the source's
	// ready callback is called with the source's lock held.
	if s := p.src.Status(); s != animation.Processed {
		p.log.LogAttrs(context.Background(), slog.LevelWarn, "source not ready", slog.Any("status", slogext.Stringer{Stringer: s}))
		return
	}
	tl := NewTimeline(p.src.Durations(), p.src.LoopCount())

	p.life.Lock()
	defer p.life.Unlock()
	if p.ready {
		return
	}
	p.ready = true
	p.timeline = tl
	p.update()
}

// Stop ends playback. A stopped player cannot be restarted.
func (p *Player) Stop() {
	p.life.Lock()
	defer p.life.Unlock()
	p.finish("stopped")
}

// Done returns a channel that is closed when playback has finished or the
// player has been stopped.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// PlayHead returns the elapsed play time.
func (p *Player) PlayHead() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playHead
}

// PlayedLoops returns the number of complete loops that have been played.
func (p *Player) PlayedLoops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playedLoops
}

// update starts or stops the scheduler subscription to reflect the
// player's state. It must be called with p.life held.
func (p *Player) update() {
	run := p.visible && p.ready && !p.stopped
	switch {
	case run && p.sub == nil:
		p.gen++
		gen := p.gen
		p.mu.Lock()
		p.lastTick = time.Time{}
		p.mu.Unlock()
		p.sub = p.sched.Subscribe(func(now time.Time) {
			p.tick(gen, now)
		})
		p.log.LogAttrs(context.Background(), slog.LevelDebug, "start", slog.Uint64("generation", gen))
	case !run && p.sub != nil:
		p.sub.Stop()
		p.sub = nil
		p.log.LogAttrs(context.Background(), slog.LevelDebug, "pause", slog.Uint64("generation", p.gen))
	}
}

// finish permanently stops the player. It must be called with p.life held.
func (p *Player) finish(reason string) {
	if p.stopped {
		return
	}
	p.stopped = true
	p.update()
	close(p.done)
	p.log.LogAttrs(context.Background(), slog.LevelDebug, reason)
}

// tick advances the play head and presents the frame at the new position.
func (p *Player) tick(gen uint64, now time.Time) {
	p.life.Lock()
	if gen != p.gen || p.sub == nil {
		// Stale tick from a stopped subscription.
		p.life.Unlock()
		return
	}
	tl := p.timeline
	p.life.Unlock()

	p.mu.Lock()
	if !p.lastTick.IsZero() {
		p.playHead += max(now.Sub(p.lastTick), 0)
	}
	p.lastTick = now
	pos := tl.At(p.playHead)
	p.playedLoops = pos.Loops
	head := p.playHead
	changed := pos.Frame != p.shown
	p.mu.Unlock()

	if changed {
		img, err := p.src.ImageAt(pos.Frame)
		if err != nil {
			p.log.LogAttrs(context.Background(), slog.LevelWarn, "frame unavailable", slog.Int("frame", pos.Frame), slog.Any("error", err))
		} else {
			p.mu.Lock()
			p.shown = pos.Frame
			p.mu.Unlock()
			p.show(Frame{Image: img, Position: pos, PlayHead: head})
		}
	}

	if pos.Finished {
		p.life.Lock()
		if gen == p.gen {
			p.finish("finished")
		}
		p.life.Unlock()
	}
}
