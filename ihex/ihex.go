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

// Package ihex reads Intel HEX files into a sparse firmware image.
//
// Only the record types AVR toolchains emit for parts MegaLoad supports
// are accepted: data (00) and end-of-file (01). Each record's checksum is
// verified.
package ihex

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ondras12345/pygaload"
)

// Record type codes.
const (
	recData = 0x00
	recEOF  = 0x01
)

var (
	// ErrNoStartCode reports a line that does not begin with ':'.
	ErrNoStartCode = errors.New("line does not begin with ':'")
	// ErrChecksum reports a record whose checksum does not verify.
	ErrChecksum = errors.New("record checksum error")
	// ErrBadRecord reports a structurally invalid or unsupported record.
	ErrBadRecord = errors.New("invalid record")
	// ErrNoEOF reports a file that ends without an end-of-file record.
	ErrNoEOF = errors.New("missing end-of-file record")
)

// ParseError wraps a parse failure with the line it occurred on.
type ParseError struct {
	Err  error
	Line int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads Intel HEX records from r until the end-of-file record and
// returns the decoded sparse image.
func Parse(r io.Reader) (*pygaload.SparseImage, error) {
	img := pygaload.NewSparseImage()
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		data, addr, recType, err := parseRecord(line)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Err: err}
		}

		switch recType {
		case recData:
			if err := img.AddSegment(uint32(addr), data); err != nil {
				return nil, &ParseError{Line: lineNum, Err: err}
			}
		case recEOF:
			if len(data) != 0 {
				return nil, &ParseError{Line: lineNum, Err: fmt.Errorf("%w: end-of-file record with data", ErrBadRecord)}
			}
			return img, nil
		default:
			return nil, &ParseError{Line: lineNum, Err: fmt.Errorf("%w: unexpected record type 0x%02X", ErrBadRecord, recType)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read HEX file: %w", err)
	}
	return nil, &ParseError{Line: lineNum, Err: ErrNoEOF}
}

// ParseFile reads an Intel HEX file from disk.
func ParseFile(path string) (*pygaload.SparseImage, error) {
	f, err := os.Open(path) //nolint:gosec // path is the user's HEX file
	if err != nil {
		return nil, fmt.Errorf("open HEX file: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// parseRecord decodes one ':llaaaattdd...cc' line and verifies its
// checksum: the two's complement sum of every byte after the start code
// must be zero.
func parseRecord(line string) (data []byte, addr uint16, recType byte, err error) {
	if line[0] != ':' {
		return nil, 0, 0, ErrNoStartCode
	}
	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	// count + addr(2) + type + checksum
	if len(raw) < 5 {
		return nil, 0, 0, fmt.Errorf("%w: line too short", ErrBadRecord)
	}

	count := int(raw[0])
	if len(raw) != count+5 {
		return nil, 0, 0, fmt.Errorf("%w: length does not match byte count", ErrBadRecord)
	}

	sum := byte(0)
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return nil, 0, 0, ErrChecksum
	}

	addr = uint16(raw[1])<<8 | uint16(raw[2])
	recType = raw[3]
	data = raw[4 : 4+count]
	return data, addr, recType, nil
}
