// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package playback maps elapsed time onto the frames of an animation and
// drives frame display from a periodic tick source.
package playback

import (
	"sort"
	"time"
)

// Position is a location in a looping animation.
type Position struct {
	// Frame is the index of the frame to display.
	Frame int
	// Loops is the number of complete loops played. Once
	// playback has finished, Loops is the loop count and does
	// not grow with further play time.
	Loops int
	// Finished is true when all requested loops have been
	// played. Frame is then the last frame.
	Finished bool
}

// Timeline is an immutable frame schedule for an animation.
type Timeline struct {
	// ends[i] is the time at which frame i stops being shown
	// within a single loop.
	ends  []time.Duration
	loops int
}

// NewTimeline returns a Timeline for frames shown for the given durations,
// played loopCount times. A loopCount of zero or less plays forever.
func NewTimeline(durations []time.Duration, loopCount int) *Timeline {
	ends := make([]time.Duration, len(durations))
	var total time.Duration
	for i, d := range durations {
		total += d
		ends[i] = total
	}
	return &Timeline{ends: ends, loops: max(loopCount, 0)}
}

// Len returns the number of frames in the timeline.
func (t *Timeline) Len() int {
	return len(t.ends)
}

// Total returns the duration of a single loop.
func (t *Timeline) Total() time.Duration {
	if len(t.ends) == 0 {
		return 0
	}
	return t.ends[len(t.ends)-1]
}

// LoopCount returns the number of loops to play. Zero is forever.
func (t *Timeline) LoopCount() int {
	return t.loops
}

// At returns the position at the given play head. A frame boundary belongs
// to the frame that starts there. Negative play heads are treated as zero.
func (t *Timeline) At(playHead time.Duration) Position {
	total := t.Total()
	if total <= 0 {
		return Position{}
	}
	playHead = max(playHead, 0)
	cycles := int(playHead / total)
	if t.loops != 0 && cycles >= t.loops {
		return Position{Frame: len(t.ends) - 1, Loops: t.loops, Finished: true}
	}
	offset := playHead - time.Duration(cycles)*total
	frame := sort.Search(len(t.ends), func(i int) bool {
		return t.ends[i] > offset
	})
	return Position{Frame: frame, Loops: cycles}
}

// FrameIndexAt returns the position at playHead in an animation with the
// given frame durations played loopCount times, where a loopCount of zero
// plays forever. Callers evaluating many play heads for the same animation
// should use a Timeline.
func FrameIndexAt(playHead time.Duration, durations []time.Duration, loopCount int) Position {
	return NewTimeline(durations, loopCount).At(playHead)
}
