// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
)

// frameCache holds decoded frames. The cover frame is pinned and other
// frames are held in a bounded LRU cache. All methods must be called with
// the owning asset's lock held.
type frameCache struct {
	cover  image.Image
	frames *lru.Cache[int, image.Image]

	// inflight holds decodes in progress, keyed by frame index.
	inflight map[int]*pending
}

// pending is a frame decode shared between concurrent requests. img and
// err are valid once done is closed.
type pending struct {
	done chan struct{}
	img  image.Image
	err  error
}

// pin sets the cover frame.
func (c *frameCache) pin(img image.Image) {
	c.cover = img
}

// init prepares the cache to hold up to size non-cover frames.
func (c *frameCache) init(size int) error {
	if size < 1 {
		size = 1
	}
	frames, err := lru.New[int, image.Image](size)
	if err != nil {
		return err
	}
	c.frames = frames
	return nil
}

// get returns the cached frame at index i.
func (c *frameCache) get(i int) (image.Image, bool) {
	if i == 0 {
		return c.cover, c.cover != nil
	}
	if c.frames == nil {
		return nil, false
	}
	return c.frames.Get(i)
}

// add inserts the frame at index i, returning whether an older
// frame was evicted to make room.
func (c *frameCache) add(i int, img image.Image) (evicted bool) {
	if i == 0 {
		c.cover = img
		return false
	}
	if c.frames == nil {
		return false
	}
	return c.frames.Add(i, img)
}

// len returns the number of cached frames including the cover.
func (c *frameCache) len() int {
	n := 0
	if c.cover != nil {
		n++
	}
	if c.frames != nil {
		n += c.frames.Len()
	}
	return n
}

// join returns the in-flight decode for frame i, and whether the caller
// is responsible for performing it.
func (c *frameCache) join(i int) (p *pending, owner bool) {
	if p, ok := c.inflight[i]; ok {
		return p, false
	}
	if c.inflight == nil {
		c.inflight = make(map[int]*pending)
	}
	p = &pending{done: make(chan struct{})}
	c.inflight[i] = p
	return p, true
}

// settle removes the in-flight decode for frame i and caches its result
// if it succeeded.
func (c *frameCache) settle(i int, p *pending) {
	if c.inflight[i] == p {
		delete(c.inflight, i)
	}
	if p.err == nil {
		c.add(i, p.img)
	}
}
