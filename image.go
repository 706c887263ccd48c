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
	"fmt"
	"sort"
)

// Image is a sparse mapping from flash address to byte value. Not every
// address in the addressable range need be present; absent addresses are
// unprogrammed. The programmer only reads it.
type Image interface {
	// At returns the byte at addr and whether the image populates it.
	At(addr uint32) (byte, bool)
	// MaxAddr returns the highest populated address. Undefined when
	// Len is zero.
	MaxAddr() uint32
	// Len returns the number of populated addresses.
	Len() int
}

// Segment is a contiguous run of image bytes starting at Addr.
type Segment struct {
	Data []byte
	Addr uint32
}

// SparseImage implements Image as a sorted list of non-overlapping
// segments, the natural shape of data read from a HEX file. It supports
// per-address lookup and max-address queries without materializing the
// full address space.
type SparseImage struct {
	segments []Segment
}

// NewSparseImage creates an empty sparse image.
func NewSparseImage() *SparseImage {
	return &SparseImage{}
}

// AddSegment appends a run of bytes starting at addr. Segments may be
// added in any order; overlapping an existing segment is an error.
func (img *SparseImage) AddSegment(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := addr + uint32(len(data))
	for _, s := range img.segments {
		sEnd := s.Addr + uint32(len(s.Data))
		if addr < sEnd && s.Addr < end {
			return fmt.Errorf("segment 0x%04X-0x%04X overlaps existing segment 0x%04X-0x%04X",
				addr, end-1, s.Addr, sEnd-1)
		}
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	img.segments = append(img.segments, Segment{Addr: addr, Data: cp})
	sort.Slice(img.segments, func(i, j int) bool {
		return img.segments[i].Addr < img.segments[j].Addr
	})
	return nil
}

// At returns the byte at addr and whether the image populates it.
func (img *SparseImage) At(addr uint32) (byte, bool) {
	// Binary search for the first segment starting after addr; the
	// candidate is its predecessor.
	i := sort.Search(len(img.segments), func(i int) bool {
		return img.segments[i].Addr > addr
	})
	if i == 0 {
		return 0, false
	}
	s := img.segments[i-1]
	off := addr - s.Addr
	if off >= uint32(len(s.Data)) {
		return 0, false
	}
	return s.Data[off], true
}

// MaxAddr returns the highest populated address.
func (img *SparseImage) MaxAddr() uint32 {
	if len(img.segments) == 0 {
		return 0
	}
	last := img.segments[len(img.segments)-1]
	return last.Addr + uint32(len(last.Data)) - 1
}

// Len returns the number of populated addresses.
func (img *SparseImage) Len() int {
	n := 0
	for _, s := range img.segments {
		n += len(s.Data)
	}
	return n
}

// Segments returns the image's segments in address order. The returned
// slice is shared; callers must not modify it.
func (img *SparseImage) Segments() []Segment {
	return img.segments
}

var _ Image = (*SparseImage)(nil)
