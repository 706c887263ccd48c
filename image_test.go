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

func TestSparseImage_AddAndLookup(t *testing.T) {
	t.Parallel()

	img := NewSparseImage()
	require.NoError(t, img.AddSegment(0x100, []byte{0x01, 0x02, 0x03}))
	require.NoError(t, img.AddSegment(0x10, []byte{0xAA}))

	assert.Equal(t, 4, img.Len())
	assert.Equal(t, uint32(0x102), img.MaxAddr())

	b, ok := img.At(0x10)
	require.True(t, ok)
	assert.Equal(t, byte(0xAA), b)

	b, ok = img.At(0x101)
	require.True(t, ok)
	assert.Equal(t, byte(0x02), b)

	// Gaps and out-of-range addresses are absent.
	_, ok = img.At(0x11)
	assert.False(t, ok)
	_, ok = img.At(0x0F)
	assert.False(t, ok)
	_, ok = img.At(0x103)
	assert.False(t, ok)
	_, ok = img.At(0x0)
	assert.False(t, ok)
}

func TestSparseImage_SegmentsSortedByAddress(t *testing.T) {
	t.Parallel()

	img := NewSparseImage()
	require.NoError(t, img.AddSegment(0x200, []byte{0x02}))
	require.NoError(t, img.AddSegment(0x000, []byte{0x00}))
	require.NoError(t, img.AddSegment(0x100, []byte{0x01}))

	segs := img.Segments()
	require.Len(t, segs, 3)
	assert.Equal(t, uint32(0x000), segs[0].Addr)
	assert.Equal(t, uint32(0x100), segs[1].Addr)
	assert.Equal(t, uint32(0x200), segs[2].Addr)
}

func TestSparseImage_OverlapRejected(t *testing.T) {
	t.Parallel()

	img := NewSparseImage()
	require.NoError(t, img.AddSegment(0x100, []byte{0x01, 0x02, 0x03, 0x04}))

	tests := []struct {
		name string
		addr uint32
		data []byte
	}{
		{name: "exact duplicate", addr: 0x100, data: []byte{0xFF}},
		{name: "overlaps tail", addr: 0x103, data: []byte{0xFF, 0xFF}},
		{name: "overlaps head", addr: 0x0FF, data: []byte{0xFF, 0xFF}},
		{name: "fully contained", addr: 0x101, data: []byte{0xFF}},
		{name: "fully covering", addr: 0x0F0, data: make([]byte, 0x40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, img.AddSegment(tt.addr, tt.data))
		})
	}

	// Adjacent segments touch but do not overlap.
	assert.NoError(t, img.AddSegment(0x104, []byte{0x05}))
}

func TestSparseImage_EmptySegmentIgnored(t *testing.T) {
	t.Parallel()

	img := NewSparseImage()
	require.NoError(t, img.AddSegment(0x100, nil))
	assert.Equal(t, 0, img.Len())
	assert.Empty(t, img.Segments())
}

func TestSparseImage_DataIsCopied(t *testing.T) {
	t.Parallel()

	data := []byte{0x01, 0x02}
	img := NewSparseImage()
	require.NoError(t, img.AddSegment(0, data))

	data[0] = 0xEE
	b, ok := img.At(0)
	require.True(t, ok)
	assert.Equal(t, byte(0x01), b, "image must not alias caller memory")
}
