// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slogext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStringer(t *testing.T) {
	for _, test := range []struct {
		name string
		val  fmt.Stringer
		want string
	}{
		{name: "duration", val: 1500 * time.Millisecond, want: "1.5s"},
		{name: "nil", val: nil, want: "<nil>"},
	} {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewJSONHandler(&buf, &HandlerOptions{AddSource: NewAtomicBool(false)}))
			log.LogAttrs(context.Background(), slog.LevelInfo, "msg", slog.Any("val", Stringer{Stringer: test.val}))

			var got struct {
				Val string `json:"val"`
			}
			err := json.Unmarshal(buf.Bytes(), &got)
			if err != nil {
				t.Fatalf("failed to unmarshal log line %q: %v", &buf, err)
			}
			if got.Val != test.want {
				t.Errorf("unexpected value: got:%q want:%q", got.Val, test.want)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewJSONHandler(&buf, &HandlerOptions{AddSource: NewAtomicBool(false)}))
	log.LogAttrs(context.Background(), slog.LevelInfo, "msg", slog.Any("val", Durations{time.Second, 250 * time.Millisecond}))

	var got struct {
		Val []float64 `json:"val"`
	}
	err := json.Unmarshal(buf.Bytes(), &got)
	if err != nil {
		t.Fatalf("failed to unmarshal log line %q: %v", &buf, err)
	}
	want := []float64{1, 0.25}
	if !cmp.Equal(got.Val, want) {
		t.Errorf("unexpected value:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got.Val))
	}
}
