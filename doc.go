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

// Package pygaload is a client for bootloaders that speak the MegaLoad
// protocol, version 3, 4 or 5. Only FLASH programming is supported, not
// EEPROM or lock bit programming.
//
// The protocol runs over an asynchronous serial link and is driven by the
// bootloader:
//
//   - Upon reset the bootloader repeatedly transmits a sync character: 0x55
//     ('U') for MegaLoad 4 and 5, 0x3E ('>') for MegaLoad 3. The client
//     answers 0x55 with 0x55 and 0x3E with 0x3C ('<'). MegaLoad 4 keeps
//     sending 0x55 while it performs auto-OSCCAL; MegaLoad 5 additionally
//     sends 0x3E after the 0x55 exchange and expects 0x3C.
//
//   - The bootloader then sends five single-byte geometry codes describing
//     the target: processor type, flash size, boot section size (in words),
//     page size and EEPROM size. See codes.go for the code tables.
//
//   - The bootloader signals readiness with 0x21 ('!'), optionally preceded
//     by 0x3E on MegaLoad 4. Flash loading then begins.
//
//   - For each page the client sends the 16-bit page number MSB first,
//     the page data, and an 8-bit checksum (modular sum of the page bytes).
//     The bootloader answers 0x21 on success or 0x40 ('@') on a checksum or
//     write failure, in which case the page may be retransmitted. A page
//     number of 0xFFFF terminates flash loading.
//
//   - After flash loading the bootloader enters EEPROM loading (announced
//     with 0x29 then 0x21; 16-bit address MSB first, data byte, checksum
//     over all three, 0xFFFF address terminates) and finally lock bit
//     programming (announced with 0x25; two one's-complement bytes). This
//     client terminates flash loading and programs neither.
//
// Use Negotiator to detect the bootloader and obtain a Descriptor, then
// Programmer to stream an Image into flash:
//
//	tr, err := serialport.New("/dev/ttyUSB0", 38400)
//	if err != nil { ... }
//	defer tr.Close()
//
//	neg := pygaload.NewNegotiator(tr)
//	desc, err := neg.Negotiate(context.Background())
//	if err != nil { ... }
//
//	img, err := ihex.ParseFile("prog.hex")
//	if err != nil { ... }
//
//	prog := pygaload.NewProgrammer(tr)
//	if err := prog.Download(context.Background(), img, desc); err != nil { ... }
package pygaload
