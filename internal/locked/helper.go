// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locked provides concurrency-safe helpers.
package locked

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kortschak/goroutine"
)

// BytesBuffer is a locked bytes.Buffer.
type BytesBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *BytesBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *BytesBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Len returns the number of bytes written to the buffer.
func (b *BytesBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Mutex is a deadlock debugging lock. It will panic in a deadlock of longer
// than a defined grace period.
type Mutex struct {
	lock  chan struct{}
	grace time.Duration
	file  string
	line  int
	ok    bool
}

// NewMutex returns a usable sync.Locker with the specified grace period.
func NewMutex(grace time.Duration) sync.Locker {
	return &Mutex{lock: make(chan struct{}, 1), grace: grace}
}

// Lock locks the lock or panics after the grace period indicating the position
// of the last successful lock call.
func (m *Mutex) Lock() {
	timer := time.NewTimer(m.grace)
	select {
	case <-timer.C:
		panic(fmt.Sprintf("last successful lock at %s:%d valid=%t", m.file, m.line, m.ok))
	case m.lock <- struct{}{}:
		timer.Stop()
		_, m.file, m.line, m.ok = runtime.Caller(1)
	}
}

// Unlock unlocks the lock.
func (m *Mutex) Unlock() {
	select {
	default:
		panic("unlock of unlocked mutex")
	case <-m.lock:
	}
}

// RecursiveMutex is a mutual exclusion lock that may be acquired repeatedly
// by the goroutine that holds it. Each Lock must be paired with an Unlock
// by the same goroutine, and the lock is released when the outermost Unlock
// returns. Acquisition by any other goroutine blocks until then.
//
// The zero value is an unlocked mutex.
type RecursiveMutex struct {
	mu    sync.Mutex
	owner atomic.Int64 // goid of the holder; zero when unheld.
	depth int
}

// Lock locks m, returning immediately if the calling goroutine already
// holds it.
func (m *RecursiveMutex) Lock() {
	id := goroutine.ID()
	if m.owner.Load() == id {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

// Unlock undoes one Lock by the calling goroutine. It panics if the calling
// goroutine does not hold m.
func (m *RecursiveMutex) Unlock() {
	if m.owner.Load() != goroutine.ID() {
		panic("unlock of recursive mutex not held by caller")
	}
	m.depth--
	if m.depth != 0 {
		return
	}
	m.owner.Store(0)
	m.mu.Unlock()
}

// Held returns whether the calling goroutine holds m.
func (m *RecursiveMutex) Held() bool {
	return m.owner.Load() == goroutine.ID()
}
