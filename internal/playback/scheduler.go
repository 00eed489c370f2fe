// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package playback

import (
	"sync"
	"time"
)

// Scheduler is a source of display refresh ticks.
type Scheduler interface {
	// Subscribe arranges for tick to be called on each refresh
	// until the returned Subscription is stopped. Calls to tick
	// for a single subscription are serialized.
	Subscribe(tick func(now time.Time)) Subscription
}

// Subscription is an active Scheduler registration.
type Subscription interface {
	// Stop ends the subscription. A tick that is in progress
	// when Stop is called may still complete.
	Stop()
}

// Ticker is a Scheduler that ticks at a fixed interval.
type Ticker struct {
	Interval time.Duration
}

// TickerFor returns a Ticker for the given refresh rate in Hz.
func TickerFor(rate float64) Ticker {
	return Ticker{Interval: time.Duration(float64(time.Second) / rate)}
}

// Subscribe implements the Scheduler interface.
func (t Ticker) Subscribe(tick func(now time.Time)) Subscription {
	s := &tickerSubscription{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				tick(now)
			}
		}
	}()
	return s
}

type tickerSubscription struct {
	once sync.Once
	stop chan struct{}
}

func (s *tickerSubscription) Stop() {
	s.once.Do(func() { close(s.stop) })
}
