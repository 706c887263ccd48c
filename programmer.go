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
	"fmt"

	"github.com/ondras12345/pygaload/internal/frame"
)

// Programmer streams a firmware image into flash one page at a time.
// It consumes the Descriptor a Negotiator produced; the bootloader must be
// in its flash loading phase when Download is called.
type Programmer struct {
	tr  Transport
	cfg Config
}

// NewProgrammer creates a Programmer on the given transport.
func NewProgrammer(tr Transport, opts ...Option) *Programmer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Programmer{tr: tr, cfg: cfg}
}

// CheckGeometry verifies the preconditions of a download without touching
// the wire: the image must fit below the boot section, the boot section
// must be smaller than the flash, and both the flash and the boot section
// must be an integer number of pages. Download runs
// the same checks; calling this first lets a front end fail before opening
// the programming phase.
func CheckGeometry(img Image, desc *Descriptor) error {
	if desc.PageSize == 0 {
		return fmt.Errorf("page size is zero: %w", ErrGeometryMismatch)
	}
	if desc.FlashSize%desc.PageSize != 0 {
		return fmt.Errorf("flash size %d is not an integer number of %d byte pages: %w",
			desc.FlashSize, desc.PageSize, ErrGeometryMismatch)
	}
	if desc.BootSize%desc.PageSize != 0 {
		return fmt.Errorf("boot section size %d is not an integer number of %d byte pages: %w",
			desc.BootSize, desc.PageSize, ErrGeometryMismatch)
	}
	// The boot section must leave application flash below it, or the
	// subtractions below underflow. A broken bootloader can announce this
	// from individually valid geometry codes.
	if desc.BootSize >= desc.FlashSize {
		return fmt.Errorf("boot section (%d bytes) leaves no application flash in %d bytes: %w",
			desc.BootSize, desc.FlashSize, ErrGeometryMismatch)
	}
	if img.Len() > 0 && img.MaxAddr() >= desc.FlashSize-desc.BootSize {
		return fmt.Errorf("image ends at 0x%04X but application flash ends at 0x%04X: %w",
			img.MaxAddr(), desc.FlashSize-desc.BootSize-1, ErrImageTooLarge)
	}
	return nil
}

// BuildPage builds the page buffer for the given page number from the
// image, filling absent addresses with the erase value 0xFF. The result
// depends only on the image and the page number.
func BuildPage(img Image, page int, pageSize uint32) []byte {
	buf := make([]byte, pageSize)
	start := uint32(page) * pageSize
	for i := range buf {
		if b, ok := img.At(start + uint32(i)); ok {
			buf[i] = b
		} else {
			buf[i] = frame.ErasedByte
		}
	}
	return buf
}

// Download partitions the image into pages and programs every non-erased
// page, then sends the flash-complete sentinel. Geometry preconditions are
// checked before any byte goes out; a rejected page is retransmitted up to
// the configured number of attempts, any other failure aborts the whole
// download.
func (p *Programmer) Download(ctx context.Context, img Image, desc *Descriptor) error {
	if img == nil || img.Len() == 0 {
		return ErrEmptyImage
	}
	if err := CheckGeometry(img, desc); err != nil {
		return err
	}

	totalPages := int(desc.FlashSize/desc.PageSize - desc.BootSize/desc.PageSize)

	trace := NewTraceBuffer(p.tr.Port(), p.cfg.TraceSize)
	if err := p.tr.SetReadTimeout(p.cfg.ResponseTimeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}

	bytesWritten := 0
	for page := 0; page < totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return trace.WrapError(fmt.Errorf("download cancelled: %w", err))
		}

		buf := BuildPage(img, page, desc.PageSize)
		if frame.IsErased(buf) {
			p.report(Progress{Phase: PhaseSkip, Page: page, TotalPages: totalPages, BytesWritten: bytesWritten})
			continue
		}

		if err := p.writePage(trace, uint16(page), buf, totalPages, bytesWritten); err != nil {
			return trace.WrapError(err)
		}
		bytesWritten += len(buf)
	}

	// Flash writing is all done; a page number of 0xFFFF ends the
	// loading process.
	term := frame.Terminator()
	trace.RecordTX(term, "terminator")
	if err := p.tr.Write(term); err != nil {
		return trace.WrapError(NewTransportError("terminator", p.tr.Port(), err, ErrorTypePermanent))
	}

	p.report(Progress{Phase: PhaseComplete, Page: totalPages, TotalPages: totalPages, BytesWritten: bytesWritten})
	Debugf("download complete: %d bytes in %d pages", bytesWritten, totalPages)
	return nil
}

// writePage transmits one page with bounded retry. The bootloader answers
// each attempt with ack (0x21) or nack (0x40); anything else, or no answer
// within the response timeout, is fatal.
func (p *Programmer) writePage(trace *TraceBuffer, page uint16, data []byte, totalPages, bytesWritten int) error {
	wire := frame.BuildPageFrame(page, data)

	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		phase := PhasePage
		if attempt > 1 {
			phase = PhaseRetry
		}
		p.report(Progress{
			Phase:        phase,
			Page:         int(page),
			TotalPages:   totalPages,
			Attempt:      attempt,
			BytesWritten: bytesWritten,
		})

		trace.RecordTX(wire, fmt.Sprintf("page %d attempt %d", page, attempt))
		if err := p.tr.Write(wire); err != nil {
			return NewTransportError("page write", p.tr.Port(), err, ErrorTypePermanent)
		}

		b, ok, err := p.tr.ReadByte()
		if err != nil {
			return NewTransportError("page response", p.tr.Port(), err, ErrorTypePermanent)
		}
		if !ok {
			trace.RecordTimeout(fmt.Sprintf("page %d response", page))
			return fmt.Errorf("page %d: %w", page, ErrNoResponse)
		}
		trace.RecordRX([]byte{b}, "page response")

		switch b {
		case frame.Ack:
			return nil
		case frame.Nack:
			Debugf("page %d write failed, attempt %d of %d", page, attempt, p.cfg.Retries)
			continue
		default:
			return NewProtocolError(fmt.Sprintf("page %d response", page), b)
		}
	}

	return fmt.Errorf("page %d: giving up after %d tries: %w", page, p.cfg.Retries, ErrPageRejected)
}

func (p *Programmer) report(progress Progress) {
	if p.cfg.Progress != nil {
		p.cfg.Progress(progress)
	}
}
