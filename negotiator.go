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
	"context"
	"fmt"
	"time"

	"github.com/ondras12345/pygaload/internal/frame"
)

// ConnState is a state of the handshake state machine.
type ConnState int

const (
	// StateConnect waits for a bootloader sync character.
	StateConnect ConnState = iota
	// StateSyncedV3 has answered a MegaLoad 3 sync character.
	StateSyncedV3
	// StateSyncedV4 has answered a MegaLoad 4/5 sync character.
	StateSyncedV4
	// StateReceivingInfo is collecting geometry codes.
	StateReceivingInfo
	// StateComplete has seen the ready sentinel with full geometry.
	StateComplete
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateConnect:
		return "connect"
	case StateSyncedV3:
		return "synced-v3"
	case StateSyncedV4:
		return "synced-v4"
	case StateReceivingInfo:
		return "receiving-info"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Negotiator performs the MegaLoad handshake: it classifies incoming bytes
// against the known protocol variants, assembles the device geometry and
// produces a Descriptor. A Negotiator is good for any number of Negotiate
// calls, one session at a time.
type Negotiator struct {
	tr    Transport
	desc  *Descriptor
	cfg   Config
	state ConnState
}

// NewNegotiator creates a Negotiator on the given transport.
func NewNegotiator(tr Transport, opts ...Option) *Negotiator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Negotiator{
		tr:    tr,
		cfg:   cfg,
		state: StateConnect,
		desc:  &Descriptor{},
	}
}

// step advances the state machine by one received byte. It is pure with
// respect to the transport: side effects are expressed as the reply bytes
// to send. done is true once the descriptor has been finalized; err
// reports a fatal protocol violation.
func (n *Negotiator) step(b byte) (reply []byte, done bool, err error) {
	switch n.state {
	case StateConnect:
		switch b {
		case frame.SyncV4:
			n.desc.Version = 4
			n.state = StateSyncedV4
			return []byte{frame.SyncV4}, false, nil
		case frame.SyncV3:
			n.desc.Version = 3
			n.state = StateSyncedV3
			Debugf("MegaLoad 3 sync detected")
			return []byte{frame.SyncReply}, false, nil
		default:
			// Line noise before sync, ignore.
			return nil, false, nil
		}

	case StateSyncedV4:
		switch b {
		case frame.SyncV4:
			// Auto-OSCCAL chatter.
			return nil, false, nil
		case frame.SyncV3:
			// MegaLoad 5 sends '>' after the 0x55 exchange.
			n.desc.Version = 5
			return []byte{frame.SyncReply}, false, nil
		}
		if f, ok := n.desc.record(b); ok {
			Debugf("geometry %s decoded from 0x%02X", f, b)
			n.state = StateReceivingInfo
			return nil, false, nil
		}
		// Garbage: the sync byte was probably junk too. Start over,
		// keeping whatever already decoded.
		n.state = StateConnect
		return nil, false, nil

	case StateSyncedV3:
		if f, ok := n.desc.record(b); ok {
			Debugf("geometry %s decoded from 0x%02X", f, b)
			n.state = StateReceivingInfo
			return nil, false, nil
		}
		n.state = StateConnect
		return nil, false, nil

	case StateReceivingInfo:
		if n.desc.Complete() {
			switch b {
			case frame.SyncV3:
				// MegaLoad 4 sends '>' before '!'.
				return nil, false, nil
			case frame.Ready:
				if err := n.desc.validateOrder(n.cfg.ExpectedOrder); err != nil {
					return nil, false, err
				}
				n.state = StateComplete
				return nil, true, nil
			default:
				return nil, false, NewProtocolError("flash start", b)
			}
		}
		if f, ok := n.desc.record(b); ok {
			Debugf("geometry %s decoded from 0x%02X", f, b)
			return nil, false, nil
		}
		// Past sync there is no valid interpretation for an
		// out-of-table byte.
		return nil, false, NewProtocolError("geometry", b)

	case StateComplete:
		return nil, true, nil

	default:
		return nil, false, fmt.Errorf("negotiator in invalid state %d", int(n.state))
	}
}

// Negotiate runs the handshake until the bootloader's ready sentinel
// arrives or the connect timeout elapses. The returned Descriptor must be
// treated as read-only.
//
// The context is checked between byte reads; negotiation otherwise only
// ends through the ready sentinel, a protocol violation or the timeout.
func (n *Negotiator) Negotiate(ctx context.Context) (*Descriptor, error) {
	n.state = StateConnect
	n.desc = &Descriptor{}

	trace := NewTraceBuffer(n.tr.Port(), n.cfg.TraceSize)

	if err := n.tr.SetReadTimeout(n.cfg.PollInterval); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	deadline := time.Now().Add(n.cfg.ConnectTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, trace.WrapError(fmt.Errorf("negotiation cancelled: %w", err))
		}
		if time.Now().After(deadline) {
			trace.RecordTimeout("waiting for bootloader")
			return nil, trace.WrapError(fmt.Errorf("waiting for bootloader to connect: %w", ErrTimeout))
		}

		b, ok, err := n.tr.ReadByte()
		if err != nil {
			return nil, trace.WrapError(NewTransportError("negotiate", n.tr.Port(), err, ErrorTypePermanent))
		}
		if !ok {
			continue
		}
		trace.RecordRX([]byte{b}, n.state.String())

		reply, done, err := n.step(b)
		if err != nil {
			return nil, trace.WrapError(err)
		}
		if len(reply) > 0 {
			trace.RecordTX(reply, "")
			if err := n.tr.Write(reply); err != nil {
				return nil, trace.WrapError(NewTransportError("negotiate", n.tr.Port(), err, ErrorTypePermanent))
			}
		}
		if done {
			Debugf("using MegaLoad %d protocol", n.desc.Version)
			return n.desc, nil
		}
	}
}
