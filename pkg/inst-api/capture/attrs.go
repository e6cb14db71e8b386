// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"math"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// Attrs is the flat attribute dictionary handed over by the native layer on
// every phase. Values are scalars: string, bool, and any Go integer or float
// kind. Each phase delivers an independent snapshot.
type Attrs map[string]any

// KeyValues converts the listed keys, in order, into OpenTelemetry attributes.
// Keys that are absent or carry a non-scalar value are skipped.
func (a Attrs) KeyValues(keys []string) []attribute.KeyValue {
	if len(a) == 0 || len(keys) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		if kv, ok := KeyValue(k, v); ok {
			kvs = append(kvs, kv)
		}
	}
	return kvs
}

// Pick copies the listed keys into dst, allocating it when nil, and returns
// it. Only scalar values are copied.
func (a Attrs) Pick(dst Attrs, keys []string) Attrs {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		if _, ok := KeyValue(k, v); !ok {
			continue
		}
		if dst == nil {
			dst = make(Attrs, len(keys))
		}
		dst[k] = v
	}
	return dst
}

// String returns the value for key rendered as a string.
func (a Attrs) String(key string) (string, bool) {
	switch v := a[key].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case nil:
		return "", false
	default:
		kv, ok := KeyValue(key, v)
		if !ok {
			return "", false
		}
		return kv.Value.Emit(), true
	}
}

// Int64 returns the value for key as an integer. Numeric strings are accepted
// since some native sources report header-derived numbers verbatim.
func (a Attrs) Int64(key string) (int64, bool) {
	switch v := a[key].(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return clampUint(uint64(v)), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return clampUint(v), true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Attributes converts the whole dictionary, in unspecified order.
func (a Attrs) Attributes() []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(a))
	for k, v := range a {
		if kv, ok := KeyValue(k, v); ok {
			kvs = append(kvs, kv)
		}
	}
	return kvs
}

// Set returns the dictionary as an attribute set, suitable for metric
// recording.
func (a Attrs) Set() attribute.Set {
	return attribute.NewSet(a.Attributes()...)
}

// KeyValue converts a single scalar value into an attribute.
func KeyValue(key string, v any) (attribute.KeyValue, bool) {
	switch v := v.(type) {
	case string:
		return attribute.String(key, v), true
	case bool:
		return attribute.Bool(key, v), true
	case int:
		return attribute.Int(key, v), true
	case int8:
		return attribute.Int64(key, int64(v)), true
	case int16:
		return attribute.Int64(key, int64(v)), true
	case int32:
		return attribute.Int64(key, int64(v)), true
	case int64:
		return attribute.Int64(key, v), true
	case uint:
		return attribute.Int64(key, clampUint(uint64(v))), true
	case uint8:
		return attribute.Int64(key, int64(v)), true
	case uint16:
		return attribute.Int64(key, int64(v)), true
	case uint32:
		return attribute.Int64(key, int64(v)), true
	case uint64:
		return attribute.Int64(key, clampUint(v)), true
	case float32:
		return attribute.Float64(key, float64(v)), true
	case float64:
		return attribute.Float64(key, v), true
	default:
		return attribute.KeyValue{}, false
	}
}

func clampUint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
