// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
)

// writerWrapper wraps http.ResponseWriter to capture the status code and the
// number of body bytes written. beforeHeader runs once, right before the
// status line goes out, while response headers can still be changed.
type writerWrapper struct {
	http.ResponseWriter
	statusCode   int
	wroteHeader  bool
	hijacked     bool
	written      int64
	beforeHeader func(http.Header)
}

// WriteHeader captures the status code and forwards to the underlying ResponseWriter
func (w *writerWrapper) WriteHeader(statusCode int) {
	// Prevent duplicate header writes
	if w.wroteHeader {
		return
	}
	w.statusCode = statusCode
	w.wroteHeader = true
	w.prepareHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write implements http.ResponseWriter.Write and ensures WriteHeader is called
func (w *writerWrapper) Write(b []byte) (int, error) {
	// If WriteHeader wasn't called yet, call it with 200 OK (default HTTP behavior)
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Hijack implements the http.Hijacker interface
func (w *writerWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		w.hijacked = true
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("responseWriter does not implement http.Hijacker")
}

// Flush implements the http.Flusher interface
func (w *writerWrapper) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Pusher implements the http.Pusher interface
func (w *writerWrapper) Pusher() http.Pusher {
	if pusher, ok := w.ResponseWriter.(http.Pusher); ok {
		return pusher
	}
	return nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *writerWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// finish prepares the headers of a response the handler never started, which
// net/http writes with a 200 once the handler returns.
func (w *writerWrapper) finish() {
	if w.wroteHeader || w.hijacked {
		return
	}
	w.wroteHeader = true
	w.prepareHeader()
}

func (w *writerWrapper) prepareHeader() {
	if w.beforeHeader != nil {
		w.beforeHeader(w.ResponseWriter.Header())
		w.beforeHeader = nil
	}
}

// bodyWrapper counts the request body bytes read by the handler, which may
// read from another goroutine.
type bodyWrapper struct {
	io.ReadCloser
	read atomic.Int64
}

func (b *bodyWrapper) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.read.Add(int64(n))
	return n, err
}
