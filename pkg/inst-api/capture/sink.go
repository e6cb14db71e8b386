// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import "strings"

// Sink collects only the attributes an instrument asked for. Event sources
// use it so nothing is computed for keys nobody records.
type Sink struct {
	want map[string]struct{}
	out  Attrs
}

// NewSink returns a sink accepting the requested keys.
func NewSink(requested []string) *Sink {
	s := &Sink{
		want: make(map[string]struct{}, len(requested)),
		out:  make(Attrs, len(requested)),
	}
	for _, k := range requested {
		s.want[k] = struct{}{}
	}
	return s
}

func (s *Sink) Wants(key string) bool {
	_, ok := s.want[key]
	return ok
}

func (s *Sink) Set(key string, v any) {
	if s.Wants(key) {
		s.out[key] = v
	}
}

// SetNonEmpty is Set that skips empty strings and non-positive integers.
func (s *Sink) SetNonEmpty(key string, v any) {
	switch v := v.(type) {
	case string:
		if v == "" {
			return
		}
	case int:
		if v <= 0 {
			return
		}
	case int64:
		if v <= 0 {
			return
		}
	}
	s.Set(key, v)
}

// Prefixed fills every requested key starting with prefix from lookup, which
// receives the remainder of the key. Empty values are skipped.
func (s *Sink) Prefixed(prefix string, lookup func(name string) string) {
	for key := range s.want {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok || name == "" {
			continue
		}
		if v := lookup(name); v != "" {
			s.out[key] = v
		}
	}
}

// Attrs returns the collected attributes.
func (s *Sink) Attrs() Attrs {
	return s.out
}
