// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package locked

import (
	"sync"
	"testing"
	"time"
)

func TestRecursiveMutexReentry(t *testing.T) {
	var m RecursiveMutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Lock()
		m.Lock()
		if !m.Held() {
			t.Error("expected lock to be held after nested lock")
		}
		m.Unlock()
		if !m.Held() {
			t.Error("expected lock to be held after inner unlock")
		}
		m.Unlock()
		if m.Held() {
			t.Error("unexpected lock held after outer unlock")
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested lock deadlocked")
	}
}

func TestRecursiveMutexExclusion(t *testing.T) {
	var (
		m       RecursiveMutex
		wg      sync.WaitGroup
		counter int
	)
	const (
		workers = 8
		n       = 1000
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range n {
				m.Lock()
				m.Lock()
				counter++
				m.Unlock()
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	if counter != workers*n {
		t.Errorf("unexpected count: got:%d want:%d", counter, workers*n)
	}
}

func TestRecursiveMutexBlocksOthers(t *testing.T) {
	var m RecursiveMutex
	m.Lock()
	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("lock acquired by second goroutine while held")
	case <-time.After(50 * time.Millisecond):
	}
	m.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not acquired after release")
	}
}

func TestRecursiveMutexUnlockByOther(t *testing.T) {
	var m RecursiveMutex
	m.Lock()
	defer m.Unlock()
	panicked := make(chan bool)
	go func() {
		defer func() {
			panicked <- recover() != nil
		}()
		m.Unlock()
	}()
	if !<-panicked {
		t.Error("expected panic on unlock by non-holder")
	}
}

func TestMutexPanicsOnDeadlock(t *testing.T) {
	m := NewMutex(10 * time.Millisecond)
	m.Lock()
	defer m.Unlock()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on lock timeout")
		}
	}()
	m.Lock()
}
