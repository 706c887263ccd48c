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

import "time"

// Config holds the negotiation and programming configuration.
type Config struct {
	// Progress is called to report programming progress (optional).
	Progress ProgressFunc

	// ExpectedOrder, when non-nil, is validated against the order in
	// which geometry fields actually arrive. Validation happens once the
	// descriptor is complete, not incrementally. Use EvBFieldOrder for
	// EvB 5.1 boards.
	ExpectedOrder []Field

	// ConnectTimeout bounds the whole negotiation.
	ConnectTimeout time.Duration

	// ResponseTimeout bounds the wait for each page write response.
	ResponseTimeout time.Duration

	// PollInterval is the per-read timeout while waiting for handshake
	// bytes. It only controls how often the negotiation loop can observe
	// cancellation; ConnectTimeout is the real deadline.
	PollInterval time.Duration

	// Retries is the number of transmission attempts per page.
	Retries int

	// TraceSize is the capacity of the wire trace attached to errors.
	TraceSize int
}

// DefaultConfig returns the default configuration. The timeouts match the
// original MegaLoad client: a 10 second connect window and a 3 second
// per-response wait.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  10 * time.Second,
		ResponseTimeout: 3 * time.Second,
		PollInterval:    50 * time.Millisecond,
		Retries:         3,
		TraceSize:       16,
	}
}

// Option is a functional option for configuring a Negotiator or Programmer.
type Option func(*Config)

// WithConnectTimeout sets the wall-clock bound on the whole negotiation.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ConnectTimeout = timeout
		}
	}
}

// WithResponseTimeout sets the wait bound for each page write response.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ResponseTimeout = timeout
		}
	}
}

// WithRetries sets the number of transmission attempts per page.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.Retries = retries
		}
	}
}

// WithExpectedOrder enables geometry order validation against the given
// sequence.
//
// Example:
//
//	neg := pygaload.NewNegotiator(tr,
//	    pygaload.WithExpectedOrder(pygaload.EvBFieldOrder))
func WithExpectedOrder(order []Field) Option {
	return func(c *Config) {
		c.ExpectedOrder = order
	}
}

// WithProgress sets a callback to track programming progress.
//
// Example:
//
//	prog := pygaload.NewProgrammer(tr,
//	    pygaload.WithProgress(func(p pygaload.Progress) {
//	        fmt.Printf("page %d/%d\n", p.Page, p.TotalPages)
//	    }))
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithTraceSize sets the capacity of the wire trace attached to errors.
func WithTraceSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.TraceSize = n
		}
	}
}
