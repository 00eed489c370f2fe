// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version reports the build version.
package version

import (
	"errors"
	"runtime/debug"
	"strings"
)

// String returns the module version, VCS revision and modification
// state of the running binary.
func String() (string, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", errors.New("no build info")
	}
	var revision, modified string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs.revision":
			revision = bs.Value
		case "vcs.modified":
			modified = bs.Value
		}
	}
	parts := []string{bi.Main.Version}
	if revision != "" {
		parts = append(parts, revision)
		if modified == "true" {
			parts = append(parts, "(modified)")
		}
	}
	return strings.Join(parts, " "), nil
}
