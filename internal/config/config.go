// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides configuration loading, validation and live
// reloading functions.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"hash"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kortschak/reel/config"
)

// Config is the public configuration type.
type Config = config.Config

// Sum is a semantic SHA-1 sum of a configuration.
type Sum [sha1.Size]byte

func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// Load reads the TOML configuration at path. Invalid fields are removed
// from the returned configuration and reported in the returned error.
func Load(path string) (*Config, Sum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Sum{}, err
	}
	return unmarshal(sha1.New(), b)
}

// unmarshal returns a, potentially partial, configuration and its
// semantic hash from the provided raw data.
func unmarshal(h hash.Hash, b []byte) (cfg *Config, sum Sum, _ error) {
	c := &Config{}
	_, err := toml.Decode(string(b), c)
	if err != nil {
		return nil, sum, err
	}

	paths, deferredErr := Validate(config.Schema, c)
	if deferredErr != nil {
		c = remove(c, paths)
	}

	h.Reset()
	err = json.NewEncoder(h).Encode(c)
	if err != nil {
		return nil, sum, err
	}
	sum = Sum(h.Sum(nil))
	h.Reset()
	return c, sum, deferredErr
}

// remove clears the fields of cfg that correspond to invalid field paths
// identified by Validate, returning the result.
func remove(cfg *Config, paths [][]string) *Config {
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		switch p[0] {
		case "log_level":
			cfg.LogLevel = nil
		case "log_add_source":
			cfg.AddSource = nil
		case "decode":
			if len(p) < 2 || cfg.Decode == nil {
				cfg.Decode = nil
				continue
			}
			switch p[1] {
			case "cache_size":
				cfg.Decode.CacheSize = nil
			case "preload":
				cfg.Decode.Preload = nil
			default:
				cfg.Decode = nil
			}
		case "playback":
			cfg.Playback = nil
		}
	}
	return cfg
}
