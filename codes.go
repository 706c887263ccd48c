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

// The bootloader describes the target device by sending five single-byte
// geometry codes. The tables below are fixed by the MegaLoad protocol; a
// given byte value appears in at most one table, except where protocol
// variants deliberately overlap (0x55 vs 0x56 for a 512-byte page).

// processorCodes maps a device ID code to the processor name.
var processorCodes = map[byte]string{
	0x41: "ATmega8",
	0x42: "ATmega16",
	0x43: "ATmega64",
	0x44: "ATmega128",
	0x45: "ATmega32",
	0x46: "ATmega162",
	0x47: "ATmega169",
	0x48: "ATmega8515",
	0x49: "ATmega8535",
	0x4A: "ATmega163",
	0x4B: "ATmega323",
	0x4C: "ATmega48",
	0x4D: "ATmega88",
	0x4E: "ATmega168",
	0x4F: "ATtiny2313",
	0x50: "ATtiny13",
	0x80: "ATmega165",
	0x81: "ATmega3250",
	0x82: "ATmega6450",
	0x83: "ATmega3290",
	0x84: "ATmega6490",
	0x85: "ATmega406",
	0x86: "ATmega640",
	0x87: "ATmega1280",
	0x88: "ATmega2560",
}

// flashSizeCodes maps a flash size code to the flash size in bytes.
var flashSizeCodes = map[byte]uint32{
	0x67: 1024,
	0x68: 2048,
	0x69: 4096,
	0x6C: 8192,
	0x6D: 16384,
	0x6E: 32768,
	0x6F: 65536,
	0x70: 2 * 65536,
	0x71: 4 * 65536,
	0x72: 40 * 1024,
}

// bootSizeCodes maps a boot section size code to the boot section size.
// The bootloader reports the boot size in WORDS; the value must be doubled
// before it is stored in a Descriptor.
var bootSizeCodes = map[byte]uint32{
	0x61: 128,
	0x62: 256,
	0x63: 512,
	0x64: 1024,
	0x65: 2048,
	0x66: 4096,
}

// pageSizeCodes maps a page size code to the page size in bytes.
// MegaLoad 3 uses 0x55 for a 512-byte page where later versions use 0x56;
// both codes are kept on purpose.
var pageSizeCodes = map[byte]uint32{
	0x51: 32,
	0x52: 64,
	0x53: 128,
	0x54: 256,
	0x55: 512,
	0x56: 512,
}

// eepromSizeCodes maps an EEPROM size code to the EEPROM size in bytes.
var eepromSizeCodes = map[byte]uint32{
	0x2E: 64,
	0x2F: 128,
	0x30: 256,
	0x31: 512,
	0x32: 1024,
	0x33: 2048,
	0x34: 4096,
}

// LookupProcessor returns the processor name for a device ID code.
func LookupProcessor(code byte) (string, bool) {
	name, ok := processorCodes[code]
	return name, ok
}

// LookupFlashSize returns the flash size in bytes for a flash size code.
func LookupFlashSize(code byte) (uint32, bool) {
	size, ok := flashSizeCodes[code]
	return size, ok
}

// LookupBootSize returns the boot section size in BYTES for a boot size
// code. The underlying protocol value is in words and is doubled here.
func LookupBootSize(code byte) (uint32, bool) {
	words, ok := bootSizeCodes[code]
	return words * 2, ok
}

// LookupPageSize returns the page size in bytes for a page size code.
func LookupPageSize(code byte) (uint32, bool) {
	size, ok := pageSizeCodes[code]
	return size, ok
}

// LookupEEPROMSize returns the EEPROM size in bytes for an EEPROM size code.
func LookupEEPROMSize(code byte) (uint32, bool) {
	size, ok := eepromSizeCodes[code]
	return size, ok
}
