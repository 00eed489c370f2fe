// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
)

// LogValue implements the slog.LogValuer interface.
func (c Change) LogValue() slog.Value {
	events := make([]eventValue, len(c.Event))
	for i, e := range c.Event {
		events[i] = eventValue{
			Name: e.Name,
			Op:   e.Op.String(),
			Code: int(e.Op),
		}
	}
	return slog.AnyValue(struct {
		Event  []eventValue `json:"event"`
		Config *Config      `json:"config"`
		Err    error        `json:"err"`
	}{
		Event:  events,
		Config: c.Config,
		Err:    c.Err,
	})
}

type eventValue struct {
	Name string `json:"name"`
	Op   string `json:"op"`
	Code int    `json:"op_code"`
}

// LogValue implements the slog.LogValuer interface.
func (s Sum) LogValue() slog.Value {
	return slog.StringValue(s.String())
}
