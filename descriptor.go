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
	"strings"
)

// Field identifies one of the five geometry fields a MegaLoad bootloader
// announces during the handshake.
type Field int

const (
	// FieldProcessor is the processor type code.
	FieldProcessor Field = iota
	// FieldPage is the flash page size code.
	FieldPage
	// FieldFlash is the flash size code.
	FieldFlash
	// FieldBoot is the boot section size code.
	FieldBoot
	// FieldEEPROM is the EEPROM size code.
	FieldEEPROM
)

// String returns the field name.
func (f Field) String() string {
	switch f {
	case FieldProcessor:
		return "processor"
	case FieldPage:
		return "page"
	case FieldFlash:
		return "flash"
	case FieldBoot:
		return "boot"
	case FieldEEPROM:
		return "eeprom"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// DefaultFieldOrder is the sequence in which a conforming MegaLoad
// bootloader announces its geometry.
var DefaultFieldOrder = []Field{FieldProcessor, FieldFlash, FieldBoot, FieldPage, FieldEEPROM}

// EvBFieldOrder is the sequence used by EvB 5.1 boards, which announce the
// page size first. Pass it to WithExpectedOrder to validate against such
// devices.
var EvBFieldOrder = []Field{FieldPage, FieldProcessor, FieldFlash, FieldEEPROM, FieldBoot}

// Descriptor describes a negotiated target device. It is populated field by
// field while the handshake runs and must be treated as read-only once
// Negotiate has returned it.
type Descriptor struct {
	// Processor is the target processor name, e.g. "ATmega32".
	Processor string
	// ReceivedOrder records the order in which the geometry fields
	// actually arrived. The field values do not depend on it.
	ReceivedOrder []Field
	// FlashSize is the flash size in bytes.
	FlashSize uint32
	// BootSize is the boot section size in bytes (the wire value is in
	// words and has already been doubled).
	BootSize uint32
	// PageSize is the flash page size in bytes.
	PageSize uint32
	// EEPROMSize is the EEPROM size in bytes.
	EEPROMSize uint32
	// Version is the detected protocol version: 3, 4 or 5. Zero until the
	// first sync byte has been classified.
	Version int

	haveProcessor bool
	havePage      bool
	haveFlash     bool
	haveBoot      bool
	haveEEPROM    bool
}

// has reports whether the given geometry field has been recorded.
func (d *Descriptor) has(f Field) bool {
	switch f {
	case FieldProcessor:
		return d.haveProcessor
	case FieldPage:
		return d.havePage
	case FieldFlash:
		return d.haveFlash
	case FieldBoot:
		return d.haveBoot
	case FieldEEPROM:
		return d.haveEEPROM
	default:
		return false
	}
}

// record attempts to decode code into the first still-unset geometry field
// whose table contains it. Fields are tried in the fixed order processor,
// page, flash, boot, eeprom so that devices announcing geometry in a
// non-default sequence still decode. It returns the matched field, or
// ok=false when no unset field accepts the code.
func (d *Descriptor) record(code byte) (Field, bool) {
	if !d.haveProcessor {
		if name, ok := LookupProcessor(code); ok {
			d.Processor = name
			d.haveProcessor = true
			d.ReceivedOrder = append(d.ReceivedOrder, FieldProcessor)
			return FieldProcessor, true
		}
	}
	if !d.havePage {
		if size, ok := LookupPageSize(code); ok {
			d.PageSize = size
			d.havePage = true
			d.ReceivedOrder = append(d.ReceivedOrder, FieldPage)
			return FieldPage, true
		}
	}
	if !d.haveFlash {
		if size, ok := LookupFlashSize(code); ok {
			d.FlashSize = size
			d.haveFlash = true
			d.ReceivedOrder = append(d.ReceivedOrder, FieldFlash)
			return FieldFlash, true
		}
	}
	if !d.haveBoot {
		if size, ok := LookupBootSize(code); ok {
			d.BootSize = size
			d.haveBoot = true
			d.ReceivedOrder = append(d.ReceivedOrder, FieldBoot)
			return FieldBoot, true
		}
	}
	if !d.haveEEPROM {
		if size, ok := LookupEEPROMSize(code); ok {
			d.EEPROMSize = size
			d.haveEEPROM = true
			d.ReceivedOrder = append(d.ReceivedOrder, FieldEEPROM)
			return FieldEEPROM, true
		}
	}
	return 0, false
}

// Complete reports whether all five geometry fields have been received.
func (d *Descriptor) Complete() bool {
	return d.haveProcessor && d.havePage && d.haveFlash && d.haveBoot && d.haveEEPROM
}

// validateOrder checks the recorded arrival order against an expected
// sequence. It is called once the descriptor is complete, not incrementally,
// so a device is only rejected after its geometry has fully decoded.
func (d *Descriptor) validateOrder(expected []Field) error {
	if len(expected) == 0 {
		return nil
	}
	if len(d.ReceivedOrder) != len(expected) {
		return fmt.Errorf("%w: received %d geometry fields, expected %d",
			ErrFieldOrder, len(d.ReceivedOrder), len(expected))
	}
	for i, f := range expected {
		if d.ReceivedOrder[i] != f {
			return fmt.Errorf("%w: position %d is %s, expected %s (full order: %s)",
				ErrFieldOrder, i, d.ReceivedOrder[i], f, formatOrder(d.ReceivedOrder))
		}
	}
	return nil
}

func formatOrder(order []Field) string {
	names := make([]string, len(order))
	for i, f := range order {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}

// String returns a one-line human readable summary of the descriptor.
func (d *Descriptor) String() string {
	return fmt.Sprintf("MegaLoad %d: %s, flash %dk, boot %d bytes, page %d bytes, EEPROM %d bytes",
		d.Version, d.Processor, d.FlashSize/1024, d.BootSize, d.PageSize, d.EEPROMSize)
}
