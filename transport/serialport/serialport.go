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

// Package serialport implements the pygaload.Transport interface on a real
// serial port.
package serialport

import (
	"fmt"
	"time"

	"github.com/ondras12345/pygaload"
	"github.com/ondras12345/pygaload/internal/syncutil"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the stock MegaLoad bootloader build.
const DefaultBaudRate = 38400

// Transport implements pygaload.Transport for serial communication.
type Transport struct {
	port     serial.Port
	portName string
	mu       syncutil.Mutex
	readBuf  [1]byte
	timeout  time.Duration
}

// New opens portName at the given baud rate and returns a Transport.
// The port is configured with 8 data bits, no parity and two stop bits;
// two stop bits work better with some MegaLoad targets.
func New(portName string, baudRate int) (*Transport, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	t := &Transport{
		port:     port,
		portName: portName,
		timeout:  3 * time.Second,
	}
	if err := port.SetReadTimeout(t.timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	return t, nil
}

// ReadByte reads one byte from the port. ok is false when the configured
// read timeout elapsed without a byte arriving.
func (t *Transport) ReadByte() (byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, false, pygaload.ErrTransportClosed
	}

	n, err := t.port.Read(t.readBuf[:])
	if err != nil {
		return 0, false, fmt.Errorf("serial read failed: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return t.readBuf[0], true, nil
}

// Write sends data down the link and drains the OS buffer so the bytes are
// actually on the wire before the next read.
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return pygaload.ErrTransportClosed
	}

	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("serial write failed: %w", err)
	}
	if n != len(data) {
		return pygaload.NewTransportWriteError("write", t.portName)
	}
	if err := t.port.Drain(); err != nil {
		return fmt.Errorf("serial drain failed: %w", err)
	}
	return nil
}

// SetReadTimeout sets the per-read timeout for subsequent ReadByte calls.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return pygaload.ErrTransportClosed
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("serial set timeout failed: %w", err)
	}
	t.timeout = timeout
	return nil
}

// Close closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("serial close failed: %w", err)
	}
	return nil
}

// Port returns the port name.
func (t *Transport) Port() string {
	return t.portName
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Ensure Transport implements pygaload.Transport
var _ pygaload.Transport = (*Transport)(nil)
