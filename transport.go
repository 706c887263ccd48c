// pygaload
// Copyright (c) 2026 The pygaload Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of pygaload.
//
// pygaload is free software; you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the
// Free Software Foundation; either version 3 of the License, or (at your
// option) any later version. See https://www.gnu.org/licenses/gpl.html
// for the license terms.

package pygaload

import (
	"time"

	"github.com/ondras12345/pygaload/internal/syncutil"
)

// Transport is the byte-level serial link to the bootloader. The protocol
// driver is the only reader and writer; implementations need not support
// concurrent use.
type Transport interface {
	// ReadByte reads one byte. ok is false when the read timed out
	// without delivering a byte; err is reserved for real I/O failures.
	ReadByte() (b byte, ok bool, err error)

	// Write sends data down the link.
	Write(data []byte) error

	// SetReadTimeout sets the per-read timeout for subsequent ReadByte
	// calls.
	SetReadTimeout(timeout time.Duration) error

	// Close closes the transport connection.
	Close() error

	// Port returns the port or device identifier for error reporting.
	Port() string
}

// MockTransport provides a scripted implementation of Transport for tests.
// Incoming bytes are queued with QueueRead; everything written by the
// client is recorded. An optional OnWrite hook lets a test act as the
// remote bootloader and queue responses to page writes.
type MockTransport struct {
	mu       syncutil.Mutex
	incoming []byte
	writes   [][]byte
	onWrite  func(data []byte)
	timeout  time.Duration
	closed   bool
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		timeout: time.Second,
	}
}

// ReadByte implements Transport. It pops the next queued byte, or reports
// a timeout (ok=false) when the queue is empty.
func (m *MockTransport) ReadByte() (byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, false, ErrTransportClosed
	}
	if len(m.incoming) == 0 {
		return 0, false, nil
	}
	b := m.incoming[0]
	m.incoming = m.incoming[1:]
	return b, true, nil
}

// Write implements Transport, recording the written bytes.
func (m *MockTransport) Write(data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.writes = append(m.writes, cp)
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return nil
}

// SetReadTimeout implements Transport.
func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Port implements Transport.
func (*MockTransport) Port() string {
	return "mock"
}

// Test helper methods

// QueueRead appends bytes to the incoming queue.
func (m *MockTransport) QueueRead(data ...byte) {
	m.mu.Lock()
	m.incoming = append(m.incoming, data...)
	m.mu.Unlock()
}

// OnWrite installs a hook invoked with each write, letting a test script
// the bootloader's side of the exchange.
func (m *MockTransport) OnWrite(hook func(data []byte)) {
	m.mu.Lock()
	m.onWrite = hook
	m.mu.Unlock()
}

// Writes returns all recorded writes in order.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WrittenBytes returns the concatenation of all recorded writes.
func (m *MockTransport) WrittenBytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return out
}

// Reset clears queued reads and recorded writes and reopens the transport.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.incoming = nil
	m.writes = nil
	m.closed = false
	m.mu.Unlock()
}

var _ Transport = (*MockTransport)(nil)
