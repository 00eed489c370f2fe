// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg provides functions for locating per-user configuration files.
package xdg

import (
	"os"
	"path/filepath"
	"syscall"
)

// Config returns the path to the named file found first in the list of
// config directories obtained from ConfigHome, and ConfigDirs if local is
// false. If no file is found Config returns ENOENT.
func Config(name string, local bool) (string, error) {
	base, ok := ConfigHome()
	if ok {
		path := filepath.Join(base, name)
		if exists(path) {
			return path, nil
		}
	}
	if local {
		return "", syscall.ENOENT
	}
	list, ok := ConfigDirs()
	if !ok {
		return "", syscall.ENOENT
	}
	for _, base := range filepath.SplitList(list) {
		path := filepath.Join(base, name)
		if exists(path) {
			return path, nil
		}
	}
	return "", syscall.ENOENT
}

// ConfigHome returns the path corresponding to XDG_CONFIG_HOME.
func ConfigHome() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
}

// ConfigDirs returns the path list corresponding to XDG_CONFIG_DIRS.
func ConfigDirs() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_DIRS, def_XDG_CONFIG_DIRS, "")
}

// ConfigPath returns the path to the named file in the user's config
// home whether or not it exists.
func ConfigPath(name string) (string, bool) {
	base, ok := ConfigHome()
	if !ok {
		return "", false
	}
	return filepath.Join(base, name), true
}

func exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// envOrDefault return the path or path list corresponding to the provided
// key and default. If home is not empty, the default is treated as an absolute
// path or path list and returned unaltered, otherwise the default is returned
// relative to home.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		val, ok := os.LookupEnv(key)
		if ok {
			return val, true
		}
	}
	if def == "" {
		return "", false
	}
	if home == "" || filepath.IsAbs(def) {
		return def, true
	}
	base, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(base, def), true
}
