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

package frame

// EncodePageNumber encodes a 16-bit page number MSB first.
func EncodePageNumber(page uint16) [2]byte {
	return [2]byte{byte(page >> 8), byte(page)}
}

// BuildPageFrame assembles the complete wire frame for one page write:
// page number MSB first, the page data, and the 8-bit checksum.
func BuildPageFrame(page uint16, data []byte) []byte {
	buf := make([]byte, 0, 2+len(data)+1)
	num := EncodePageNumber(page)
	buf = append(buf, num[0], num[1])
	buf = append(buf, data...)
	buf = append(buf, Checksum(data))
	return buf
}

// Terminator returns the frame that ends flash loading: page number 0xFFFF
// with no data or checksum.
func Terminator() []byte {
	num := EncodePageNumber(TerminatorPage)
	return []byte{num[0], num[1]}
}

// IsErased reports whether a page buffer equals the all-0xFF erase pattern.
// Writing such a page would be a no-op on real flash.
func IsErased(data []byte) bool {
	for _, b := range data {
		if b != ErasedByte {
			return false
		}
	}
	return true
}
