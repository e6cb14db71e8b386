// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ex

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// -----------------------------------------------------------------------------
// Stackful errors for construction-time failures
//
// Instruments are built once, at attach time, and a bad policy is a programmer
// error. Errors created here carry the frames of the place that produced them
// so the misconfiguration can be found from a single log line.
//
// Create an error with New/Newf, attach context with Wrap/Wrapf. Wrapping a
// stackful error again only appends the message, the original frames are kept.

const (
	numSkipFrame = 4 // skip the {New,Newf,Wrap,Wrapf} caller
	modPrefix    = "github.com/open-telemetry/opentelemetry-go-native-bridge/"
)

type stackfulError struct {
	message []string
	frame   []string
	wrapped error
}

func (e *stackfulError) Error() string { return strings.Join(e.message, ": ") }
func (e *stackfulError) Unwrap() error { return e.wrapped }

func captureStack() []string {
	const initFrames = 30
	frameList := make([]string, 0)
	pcs := make([]uintptr, initFrames)
	n := runtime.Callers(numSkipFrame, pcs)
	if n == 0 {
		return frameList
	}
	pcs = pcs[:n]
	frames := runtime.CallersFrames(pcs)
	cnt := 0
	for {
		frame, more := frames.Next()
		fnName := strings.TrimPrefix(frame.Function, modPrefix)
		frameList = append(frameList, fmt.Sprintf("[%d]%s:%d %s", cnt, frame.File, frame.Line, fnName))
		cnt++
		if !more {
			break
		}
	}
	return frameList
}

func wrapOrCreate(previousErr error, format string, args ...any) error {
	se := &stackfulError{}
	if errors.As(previousErr, &se) {
		if attach := fmt.Sprintf(format, args...); attach != "" {
			se.message = append([]string{attach}, se.message...)
		}
		return previousErr
	}
	errMsg := fmt.Sprintf(format, args...)
	if previousErr != nil {
		if errMsg == "" {
			errMsg = previousErr.Error()
		} else {
			errMsg = fmt.Sprintf("%s: %s", errMsg, previousErr.Error())
		}
	}
	return &stackfulError{
		message: []string{errMsg},
		frame:   captureStack(),
		wrapped: previousErr,
	}
}

func Wrap(previousErr error) error {
	if previousErr == nil {
		return nil
	}
	return wrapOrCreate(previousErr, "")
}

func Wrapf(previousErr error, format string, args ...any) error {
	if previousErr == nil {
		return nil
	}
	return wrapOrCreate(previousErr, format, args...)
}

func New(message string) error {
	return wrapOrCreate(nil, "%s", message)
}

func Newf(format string, args ...any) error {
	return wrapOrCreate(nil, format, args...)
}

// Stack returns the frames recorded when err was created, or nil if err does
// not carry any.
func Stack(err error) []string {
	se := &stackfulError{}
	if errors.As(err, &se) {
		return se.frame
	}
	return nil
}
