// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides reel configuration types and schemas.
package config

import (
	"log/slog"
	"time"
)

// Config is a complete configuration.
type Config struct {
	LogLevel  *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	AddSource *bool       `json:"log_add_source,omitempty" toml:"log_add_source"`

	Decode   *Decode   `json:"decode,omitempty" toml:"decode"`
	Playback *Playback `json:"playback,omitempty" toml:"playback"`
}

// Decode is the asset decoding configuration.
type Decode struct {
	// CacheSize is the number of decoded frames held
	// by each asset in addition to its cover image. If
	// CacheSize is nil or not positive, all frames are
	// retained.
	CacheSize *int `json:"cache_size,omitempty" toml:"cache_size"`
	// Preload indicates that frames are decoded into
	// the cache before the asset is marked processed.
	Preload *bool `json:"preload,omitempty" toml:"preload"`
}

// Playback is the player configuration.
type Playback struct {
	// RefreshRate is the display refresh rate in Hz.
	RefreshRate *float64 `json:"refresh_rate,omitempty" toml:"refresh_rate"`
}

// DefaultRefreshRate is the refresh rate used when none is configured.
const DefaultRefreshRate = 60

// CacheSize returns the configured cache size or zero if it is not set.
func (c *Config) CacheSize() int {
	if c == nil || c.Decode == nil || c.Decode.CacheSize == nil {
		return 0
	}
	return *c.Decode.CacheSize
}

// Preload returns whether preloading is configured.
func (c *Config) Preload() bool {
	if c == nil || c.Decode == nil || c.Decode.Preload == nil {
		return false
	}
	return *c.Decode.Preload
}

// RefreshInterval returns the interval between display refreshes.
func (c *Config) RefreshInterval() time.Duration {
	rate := float64(DefaultRefreshRate)
	if c != nil && c.Playback != nil && c.Playback.RefreshRate != nil && *c.Playback.RefreshRate > 0 {
		rate = *c.Playback.RefreshRate
	}
	return time.Duration(float64(time.Second) / rate)
}

// Schema is the schema for a valid configuration.
const Schema = `
{
	log_level?:      _#log_level
	log_add_source?: bool
	decode?:         _#decode
	playback?:       _#playback
}

_#decode: {
	cache_size?: int & >=0
	preload?:    bool
}

_#playback: {
	refresh_rate?: number & >0 & <=1000
}

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
`
