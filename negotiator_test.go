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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Geometry codes for an ATmega32 target: 32k flash, 512 word boot section,
// 128 byte pages, 1k EEPROM.
var (
	codeProcessor = byte(0x45)
	codeFlash     = byte(0x6E)
	codeBoot      = byte(0x63)
	codePage      = byte(0x53)
	codeEEPROM    = byte(0x32)
)

func negotiateScript(t *testing.T, script []byte, opts ...Option) (*Descriptor, *MockTransport, error) {
	t.Helper()

	tr := NewMockTransport()
	tr.QueueRead(script...)

	opts = append([]Option{WithConnectTimeout(500 * time.Millisecond)}, opts...)
	neg := NewNegotiator(tr, opts...)
	desc, err := neg.Negotiate(context.Background())
	return desc, tr, err
}

func TestNegotiate_MegaLoad4(t *testing.T) {
	t.Parallel()

	script := []byte{
		0x55,          // sync
		0x55,          // auto-OSCCAL chatter
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x3E, // variant-4 framing before the ready sentinel
		0x21,
	}
	desc, tr, err := negotiateScript(t, script)
	require.NoError(t, err)

	assert.Equal(t, 4, desc.Version)
	assert.Equal(t, "ATmega32", desc.Processor)
	assert.Equal(t, uint32(32768), desc.FlashSize)
	assert.Equal(t, uint32(1024), desc.BootSize, "boot size is doubled from words to bytes")
	assert.Equal(t, uint32(128), desc.PageSize)
	assert.Equal(t, uint32(1024), desc.EEPROMSize)
	assert.Equal(t, DefaultFieldOrder, desc.ReceivedOrder)

	// The 0x55 sync must have been echoed.
	assert.Equal(t, [][]byte{{0x55}}, tr.Writes())
}

func TestNegotiate_MegaLoad3(t *testing.T) {
	t.Parallel()

	// Sync 0x3E followed immediately by a valid processor code: variant 3,
	// unset-field matching proceeds normally.
	script := []byte{
		0x3E,
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x21,
	}
	desc, tr, err := negotiateScript(t, script)
	require.NoError(t, err)

	assert.Equal(t, 3, desc.Version)
	assert.Equal(t, "ATmega32", desc.Processor)
	assert.Equal(t, [][]byte{{0x3C}}, tr.Writes())
}

func TestNegotiate_MegaLoad5(t *testing.T) {
	t.Parallel()

	// MegaLoad 5 sends '>' after the 0x55 exchange and expects '<'.
	script := []byte{
		0x55,
		0x3E,
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x21,
	}
	desc, tr, err := negotiateScript(t, script)
	require.NoError(t, err)

	assert.Equal(t, 5, desc.Version)
	assert.Equal(t, [][]byte{{0x55}, {0x3C}}, tr.Writes())
}

func TestNegotiate_MegaLoad3PageSizeQuirk(t *testing.T) {
	t.Parallel()

	// MegaLoad 3 uses 0x55 for a 512 byte page.
	script := []byte{
		0x3E,
		codeProcessor, codeFlash, codeBoot, 0x55, codeEEPROM,
		0x21,
	}
	desc, _, err := negotiateScript(t, script)
	require.NoError(t, err)

	assert.Equal(t, 3, desc.Version)
	assert.Equal(t, uint32(512), desc.PageSize)
}

func TestNegotiate_NoiseBeforeSync(t *testing.T) {
	t.Parallel()

	script := []byte{
		0x00, 0xFE, 0x42, // line noise, ignored in connect state
		0x55,
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x21,
	}
	desc, _, err := negotiateScript(t, script)
	require.NoError(t, err)
	assert.Equal(t, 4, desc.Version)
}

func TestNegotiate_GarbageAfterSyncResyncs(t *testing.T) {
	t.Parallel()

	// A byte in no geometry table right after sync means the sync was
	// probably junk: back to connect, then a real handshake follows.
	script := []byte{
		0x55,
		0x13, // garbage, resync
		0x55,
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x21,
	}
	desc, _, err := negotiateScript(t, script)
	require.NoError(t, err)
	assert.Equal(t, 4, desc.Version)
	assert.Equal(t, "ATmega32", desc.Processor)
}

func TestNegotiate_GeometryOrderIndependence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		geometry  []byte
		wantOrder []Field
	}{
		{
			name:      "default order",
			geometry:  []byte{codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM},
			wantOrder: DefaultFieldOrder,
		},
		{
			name:      "EvB 5.1 order",
			geometry:  []byte{codePage, codeProcessor, codeFlash, codeEEPROM, codeBoot},
			wantOrder: EvBFieldOrder,
		},
		{
			name:      "reversed",
			geometry:  []byte{codeEEPROM, codePage, codeBoot, codeFlash, codeProcessor},
			wantOrder: []Field{FieldEEPROM, FieldPage, FieldBoot, FieldFlash, FieldProcessor},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			script := append([]byte{0x55}, tt.geometry...)
			script = append(script, 0x21)
			desc, _, err := negotiateScript(t, script)
			require.NoError(t, err)

			// Field values are independent of arrival order.
			assert.Equal(t, "ATmega32", desc.Processor)
			assert.Equal(t, uint32(32768), desc.FlashSize)
			assert.Equal(t, uint32(1024), desc.BootSize)
			assert.Equal(t, uint32(128), desc.PageSize)
			assert.Equal(t, uint32(1024), desc.EEPROMSize)
			// Only the recorded order differs.
			assert.Equal(t, tt.wantOrder, desc.ReceivedOrder)
		})
	}
}

func TestNegotiate_UnknownGeometryByteIsFatal(t *testing.T) {
	t.Parallel()

	script := []byte{
		0x55,
		codeProcessor,
		0x99, // in no table while fields remain unset
	}
	_, _, err := negotiateScript(t, script)
	require.Error(t, err)

	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, byte(0x99), pe.Byte)
	assert.ErrorIs(t, err, ErrUnexpectedByte)
	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
}

func TestNegotiate_UnexpectedFlashStartByteIsFatal(t *testing.T) {
	t.Parallel()

	script := []byte{
		0x55,
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x42, // neither 0x3E nor 0x21
	}
	_, _, err := negotiateScript(t, script)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedByte)
}

func TestNegotiate_Timeout(t *testing.T) {
	t.Parallel()

	tr := NewMockTransport()
	neg := NewNegotiator(tr, WithConnectTimeout(30*time.Millisecond))
	_, err := neg.Negotiate(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))
	assert.True(t, IsFatal(err))
}

func TestNegotiate_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewMockTransport()
	neg := NewNegotiator(tr)
	_, err := neg.Negotiate(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNegotiate_ExpectedOrderValidated(t *testing.T) {
	t.Parallel()

	script := []byte{
		0x55,
		codeProcessor, codeFlash, codeBoot, codePage, codeEEPROM,
		0x21,
	}

	t.Run("matching order passes", func(t *testing.T) {
		t.Parallel()
		desc, _, err := negotiateScript(t, script, WithExpectedOrder(DefaultFieldOrder))
		require.NoError(t, err)
		assert.True(t, desc.Complete())
	})

	t.Run("mismatching order fails at completion", func(t *testing.T) {
		t.Parallel()
		_, _, err := negotiateScript(t, script, WithExpectedOrder(EvBFieldOrder))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFieldOrder)
	})
}

func TestNegotiate_ErrorsCarryWireTrace(t *testing.T) {
	t.Parallel()

	script := []byte{0x55, codeProcessor, 0x99}
	_, _, err := negotiateScript(t, script)
	require.Error(t, err)

	require.True(t, HasTrace(err))
	trace := GetTrace(err)
	require.NotNil(t, trace)
	assert.NotEmpty(t, trace.Trace)
}

// TestStep_GarbageKeepsDecodedState exercises the transition function
// directly: a resync after garbage must not corrupt the variant already
// decoded.
func TestStep_GarbageKeepsDecodedState(t *testing.T) {
	t.Parallel()

	neg := NewNegotiator(NewMockTransport())

	reply, done, err := neg.step(0x55)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []byte{0x55}, reply)
	assert.Equal(t, StateSyncedV4, neg.state)

	_, done, err = neg.step(0x13)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StateConnect, neg.state)
	assert.Equal(t, 4, neg.desc.Version, "previously decoded state survives a resync")
}

func TestStep_OscillatorChatterIgnored(t *testing.T) {
	t.Parallel()

	neg := NewNegotiator(NewMockTransport())

	_, _, err := neg.step(0x55)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		reply, done, err := neg.step(0x55)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Empty(t, reply)
		assert.Equal(t, StateSyncedV4, neg.state)
	}
}
