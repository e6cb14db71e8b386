// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import "go.opentelemetry.io/otel/trace"

// Kind is the closed set of instrument variants. The variant fixes the default
// span kind and whether the instrument installs its span as the ambient parent.
type Kind uint8

const (
	// KindCustom is an instrument that neither serves nor issues requests.
	KindCustom Kind = iota
	// KindInbound instruments server-like operations. Their span becomes the
	// ambient parent for work done while handling the operation.
	KindInbound
	// KindOutbound instruments client-like operations. They never take over
	// the ambient slot so siblings keep the inbound span as parent.
	KindOutbound
)

func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindInbound:
		return "inbound"
	case KindOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// SpanKind is the span kind used when the policy supplies no kind function.
func (k Kind) SpanKind() trace.SpanKind {
	switch k {
	case KindInbound:
		return trace.SpanKindServer
	case KindOutbound:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

// OwnsContext reports whether the variant installs its span into the ambient
// context on start.
func (k Kind) OwnsContext() bool {
	return k == KindInbound
}

func (k Kind) valid() bool {
	return k <= KindOutbound
}

// DurationSource selects how an operation's duration is obtained.
type DurationSource uint8

const (
	// DurationLocal measures wall-clock time between start and end.
	DurationLocal DurationSource = iota
	// DurationNativeAtEnd reads a nanosecond value from the end attributes.
	DurationNativeAtEnd
	// DurationNativeAtProgress reads a nanosecond value from progress
	// attributes, falling back to the end attributes.
	DurationNativeAtProgress
)

func (d DurationSource) String() string {
	switch d {
	case DurationLocal:
		return "local"
	case DurationNativeAtEnd:
		return "native"
	case DurationNativeAtProgress:
		return "native-progress"
	default:
		return "unknown"
	}
}

// Native reports whether the event source computes the duration itself.
func (d DurationSource) Native() bool {
	return d == DurationNativeAtEnd || d == DurationNativeAtProgress
}

// ParseDurationSource is the inverse of DurationSource.String.
func ParseDurationSource(s string) (DurationSource, bool) {
	switch s {
	case "", "local":
		return DurationLocal, true
	case "native":
		return DurationNativeAtEnd, true
	case "native-progress":
		return DurationNativeAtProgress, true
	default:
		return 0, false
	}
}
