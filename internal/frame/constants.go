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

// Package frame holds the MegaLoad wire-level byte constants and the
// helpers that build page write frames. The protocol has no framing beyond
// the page write itself: page number MSB first, page data, 8-bit checksum.
package frame

// Handshake control bytes
const (
	// SyncV4 is repeatedly sent by MegaLoad 4/5 bootloaders during
	// autobaud and auto-OSCCAL; the client echoes it back.
	SyncV4 = 0x55
	// SyncV3 ('>') is the MegaLoad 3 sync character; MegaLoad 5 also
	// sends it after the 0x55 exchange.
	SyncV3 = 0x3E
	// SyncReply ('<') answers SyncV3.
	SyncReply = 0x3C
	// Ready ('!') signals that flash programming may begin. It doubles
	// as the positive acknowledgment of a page write.
	Ready = 0x21
)

// Page write response bytes
const (
	// Ack ('!') acknowledges a successful page write.
	Ack = 0x21
	// Nack ('@') reports a checksum mismatch or failed flash write.
	Nack = 0x40
)

// ErasedByte is the value of unprogrammed flash; absent image addresses
// are filled with it when a page buffer is built.
const ErasedByte = 0xFF

// TerminatorPage is the page number that ends the flash loading process.
// It is sent MSB first with no data or checksum following.
const TerminatorPage = 0xFFFF

// Phase announcement bytes the bootloader sends after flash loading.
// Documented for completeness; this client terminates before they occur.
const (
	EEPROMPhase  = 0x29 // ')' announces EEPROM loading
	LockBitPhase = 0x25 // '%' announces lock bit programming
)
