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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Error categories. Timeouts and NACKs sit at the boundary between the
// transport and the protocol; everything else is either a hard protocol
// violation or a precondition failure that is detected before any byte is
// written to the wire.
var (
	// Transport errors
	ErrTimeout         = errors.New("operation timeout")
	ErrNoResponse      = errors.New("no response from bootloader")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrTransportClosed = errors.New("transport is closed")

	// Protocol errors - fatal, never silently ignored outside the
	// noise-tolerant pre-sync states
	ErrUnexpectedByte = errors.New("unexpected byte")
	ErrFieldOrder     = errors.New("geometry fields received out of order")

	// Programming errors
	ErrPageRejected = errors.New("page rejected by bootloader")

	// Image/geometry precondition errors - fatal, checked before any
	// transmission
	ErrImageTooLarge    = errors.New("image extends into bootloader section")
	ErrGeometryMismatch = errors.New("flash geometry is not page aligned")
	ErrEmptyImage       = errors.New("image is empty, nothing to download")
)

// ProtocolError reports a byte received in a context where it has no valid
// interpretation, together with the negotiation or programming step that
// received it.
type ProtocolError struct {
	// Op names the step that failed, e.g. "geometry" or "page write".
	Op string
	// Byte is the offending byte as it arrived on the wire.
	Byte byte
	// Err is the underlying sentinel, usually ErrUnexpectedByte.
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v 0x%02X", e.Op, e.Err, e.Byte)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a protocol violation error for the given step
// and offending byte.
func NewProtocolError(op string, b byte) *ProtocolError {
	return &ProtocolError{Op: op, Byte: b, Err: ErrUnexpectedByte}
}

// ErrorType categorizes a transport error for retry decisions.
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error.
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error.
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context.
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient,
	}
}

// NewTimeoutError creates a timeout error for transport operations.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient).
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient).
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// IsRetryable returns true if the error may be worth another page write
// attempt. Only the page write/acknowledge cycle retries; a nack from the
// bootloader and transient transport faults qualify, protocol violations
// never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrPageRejected),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the session cannot continue:
// protocol violations, timeouts, precondition failures and a closed or
// vanished transport. This is distinct from IsRetryable, which covers a
// single page write attempt.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent || te.Type == ErrorTypeTimeout
	}

	switch {
	case errors.Is(err, ErrUnexpectedByte),
		errors.Is(err, ErrFieldOrder),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNoResponse),
		errors.Is(err, ErrImageTooLarge),
		errors.Is(err, ErrGeometryMismatch),
		errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// IsTimeout returns true if the error stems from a missed read deadline,
// either the negotiation window or a per-response wait.
func IsTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeTimeout
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNoResponse)
}

// Wire tracing. Negotiation and download each keep a short ring of the
// last serial exchanges and attach it to whatever error ends the session,
// so a failed handshake can be diagnosed from the error alone.

// TraceDirection indicates the direction of wire data.
type TraceDirection string

const (
	// TraceTX marks bytes sent to the bootloader.
	TraceTX TraceDirection = "TX"
	// TraceRX marks bytes received from the bootloader.
	TraceRX TraceDirection = "RX"
)

// TraceEntry is one recorded exchange: a sync reply, a geometry byte, a
// page frame, or a timeout marker.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display.
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError carries the recorded wire trace alongside the error that
// ended a negotiation or download. Extract it with GetTrace or errors.As:
//
//	var te *pygaload.TraceableError
//	if errors.As(err, &te) {
//	    fmt.Print(te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Port  string
	Trace []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one exchange per line, '>' for sent bytes
// and '<' for received.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Port)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s] Wire trace (%d entries):\n", e.Port, len(e.Trace)))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, hexData, entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, hexData))
		}
	}

	return sb.String()
}

// formatHexBytes renders data as space-separated hex, truncated past 32
// bytes so a full page frame does not flood the output.
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	if len(data) > 32 {
		parts := make([]string, 32)
		for i := 0; i < 32; i++ {
			parts[i] = fmt.Sprintf("%02X", data[i])
		}
		return strings.Join(parts, " ") + fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer records the last maxSize exchanges of a session; older
// entries are evicted. One buffer per Negotiate or Download call.
type TraceBuffer struct {
	port    string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a trace buffer holding up to maxSize entries.
func NewTraceBuffer(port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		port:    port,
	}
}

// RecordTX records bytes sent to the bootloader.
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes received from the bootloader.
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records an expired read deadline.
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	// The caller may reuse its buffer.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// WrapError attaches a snapshot of the recorded trace to err. Entries
// recorded afterwards do not appear in the returned error. nil passes
// through unchanged.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)

	return &TraceableError{
		Err:   err,
		Trace: entriesCopy,
		Port:  tb.port,
	}
}

// Clear discards all recorded entries.
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// HasTrace reports whether err carries a wire trace.
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts the wire trace from err, or nil if it carries none.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
