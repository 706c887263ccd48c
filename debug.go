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
	"io"
	"os"
	"strings"
	"time"
)

// debugEnabled controls whether debug logging reaches the console.
var debugEnabled = false

func init() {
	if os.Getenv("PYGALOAD_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// SetDebugEnabled allows programmatic control of debug logging.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// Debugf prints debug information. It always writes to the session log
// file (if initialized) with a timestamp, and prints to the console only
// when debug mode is enabled.
func Debugf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}

	if debugEnabled {
		_, _ = fmt.Printf("DEBUG: %s\n", message)
	}
}

// Session log state. The session log captures the decoded handshake and
// every page write for postmortem inspection, whether or not console debug
// output is enabled.
var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// InitSessionLog creates a session log file in the current directory.
// Returns the log file path for display to the user.
func InitSessionLog() (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("pygaload_%s.log", timestamp)

	logFile, err := os.Create(filename) //nolint:gosec // filename is constructed internally, not user input
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogWriter = logFile

	_, _ = fmt.Fprint(logFile, "=== pygaload session log ===\n")
	_, _ = fmt.Fprintf(logFile, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(logFile, "Command Line: %s\n\n", strings.Join(os.Args, " "))

	return filename, nil
}

// CloseSessionLog closes the current session log file.
func CloseSessionLog() error {
	if sessionLogFile != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended ===\n", timestamp)

		err := sessionLogFile.Close()
		sessionLogFile = nil
		sessionLogPath = ""
		sessionLogWriter = nil
		if err != nil {
			return fmt.Errorf("failed to close session log: %w", err)
		}
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	return sessionLogPath
}
