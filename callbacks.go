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

// Phase identifies the stage a Progress report refers to.
type Phase string

const (
	// PhasePage is emitted once per page attempt.
	PhasePage Phase = "page"
	// PhaseSkip is emitted for pages skipped because they are erased.
	PhaseSkip Phase = "skip"
	// PhaseRetry is emitted when the bootloader nacks a page and the
	// client retransmits.
	PhaseRetry Phase = "retry"
	// PhaseComplete is emitted after the terminator has been sent.
	PhaseComplete Phase = "complete"
)

// Progress reports the state of a running download. Passed to the
// ProgressFunc configured with WithProgress.
type Progress struct {
	// Phase is the current stage.
	Phase Phase
	// Page is the page number the report refers to.
	Page int
	// TotalPages is the number of usable pages on the device.
	TotalPages int
	// Attempt is the 1-based transmission attempt for this page.
	Attempt int
	// BytesWritten is the number of page data bytes sent so far,
	// excluding retransmissions.
	BytesWritten int
}

// ProgressFunc is called during a download to report progress.
// Implementations should return quickly; the serial link is idle while the
// callback runs.
type ProgressFunc func(Progress)
