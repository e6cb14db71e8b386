// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

// Phase is one step of an operation's lifecycle as reported by the native
// event source.
type Phase uint8

const (
	PhaseStart Phase = iota
	PhaseProgress
	PhaseEnd
	PhaseError

	numPhases
)

// Phases lists every lifecycle phase in delivery order.
var Phases = [numPhases]Phase{PhaseStart, PhaseProgress, PhaseEnd, PhaseError}

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseProgress:
		return "progress"
	case PhaseEnd:
		return "end"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

func (p Phase) valid() bool {
	return p < numPhases
}
