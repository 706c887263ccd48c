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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRecord(t *testing.T) {
	t.Parallel()

	d := &Descriptor{}

	f, ok := d.record(0x45)
	require.True(t, ok)
	assert.Equal(t, FieldProcessor, f)
	assert.Equal(t, "ATmega32", d.Processor)
	assert.False(t, d.Complete())

	// An unknown byte matches nothing.
	_, ok = d.record(0x99)
	assert.False(t, ok)

	// A repeated code matches nothing either, the field is already set.
	_, ok = d.record(0x42)
	assert.False(t, ok, "second processor code must not overwrite the first")
	assert.Equal(t, "ATmega32", d.Processor)

	for _, code := range []byte{0x6E, 0x63, 0x53, 0x32} {
		_, ok := d.record(code)
		require.True(t, ok, "code 0x%02X", code)
	}
	assert.True(t, d.Complete())
	assert.Equal(t, DefaultFieldOrder, d.ReceivedOrder)
}

func TestDescriptorRecord_OrderDoesNotChangeValues(t *testing.T) {
	t.Parallel()

	codes := []byte{0x45, 0x6E, 0x63, 0x53, 0x32}
	orders := [][]byte{
		{codes[0], codes[1], codes[2], codes[3], codes[4]},
		{codes[3], codes[0], codes[1], codes[4], codes[2]},
		{codes[4], codes[3], codes[2], codes[1], codes[0]},
	}

	for _, order := range orders {
		d := &Descriptor{}
		for _, code := range order {
			_, ok := d.record(code)
			require.True(t, ok, "code 0x%02X in order %v", code, order)
		}
		require.True(t, d.Complete())
		assert.Equal(t, "ATmega32", d.Processor)
		assert.Equal(t, uint32(32768), d.FlashSize)
		assert.Equal(t, uint32(1024), d.BootSize)
		assert.Equal(t, uint32(128), d.PageSize)
		assert.Equal(t, uint32(1024), d.EEPROMSize)
	}
}

func TestDescriptorValidateOrder(t *testing.T) {
	t.Parallel()

	d := &Descriptor{}
	for _, code := range []byte{0x45, 0x6E, 0x63, 0x53, 0x32} {
		_, ok := d.record(code)
		require.True(t, ok)
	}

	assert.NoError(t, d.validateOrder(nil), "no expectation, no validation")
	assert.NoError(t, d.validateOrder(DefaultFieldOrder))

	err := d.validateOrder(EvBFieldOrder)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldOrder)
}

func TestDescriptorString(t *testing.T) {
	t.Parallel()

	d := &Descriptor{
		Processor:  "ATmega32",
		FlashSize:  32768,
		BootSize:   1024,
		PageSize:   128,
		EEPROMSize: 1024,
		Version:    4,
	}
	s := d.String()
	assert.Contains(t, s, "ATmega32")
	assert.Contains(t, s, "MegaLoad 4")
	assert.Contains(t, s, "32k")
}

func TestFieldString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "processor", FieldProcessor.String())
	assert.Equal(t, "page", FieldPage.String())
	assert.Equal(t, "flash", FieldFlash.String())
	assert.Equal(t, "boot", FieldBoot.String())
	assert.Equal(t, "eeprom", FieldEEPROM.String())
	assert.Equal(t, "field(42)", Field(42).String())
}
