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

// Command pygaload downloads a firmware image in Intel HEX format to a
// device running a MegaLoad 3, 4 or 5 bootloader.
//
// Usage:
//
//	pygaload [options] prog.hex
//
// The optional reset string (-send-reset) may include C-style control
// characters such as \n, \r and \xHH to invoke the bootloader, e.g.
//
//	pygaload -send-reset='reset\r\n' prog.hex
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ondras12345/pygaload"
	"github.com/ondras12345/pygaload/ihex"
	"github.com/ondras12345/pygaload/transport/serialport"
)

const (
	versionMajor = 2
	versionMinor = 0
)

const defaultPort = "/dev/ttyUSB0"

type config struct {
	port          string
	sendReset     string
	baud          int
	timeout       time.Duration
	verbose       bool
	debug         bool
	version       bool
	listPorts     bool
	workaroundEvB bool
}

// Package-level flag variables
var (
	flagPort          string
	flagBaud          int
	flagTimeout       time.Duration
	flagSendReset     string
	flagVerbose       bool
	flagDebug         bool
	flagVersion       bool
	flagListPorts     bool
	flagWorkaroundEvB bool
)

func init() {
	flag.StringVar(&flagPort, "port", defaultPort, "Device port for communication")
	flag.IntVar(&flagBaud, "baud", serialport.DefaultBaudRate, "Baud rate")
	flag.DurationVar(&flagTimeout, "timeout", 10*time.Second, "How long to wait for the bootloader to connect")
	flag.StringVar(&flagSendReset, "send-reset", "", "String to send to invoke the bootloader (C-style escapes allowed)")
	flag.BoolVar(&flagVerbose, "verbose", false, "Print per-page progress reports")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output and a session log file")
	flag.BoolVar(&flagVersion, "version", false, "Print version info and exit")
	flag.BoolVar(&flagListPorts, "list-ports", false, "List serial ports and exit")
	flag.BoolVar(&flagWorkaroundEvB, "workaround-evb", false, "Validate geometry order against EvB 5.1 boards")
}

func parseConfig() *config {
	cfg := &config{
		port:          flagPort,
		baud:          flagBaud,
		timeout:       flagTimeout,
		sendReset:     flagSendReset,
		verbose:       flagVerbose,
		debug:         flagDebug,
		version:       flagVersion,
		listPorts:     flagListPorts,
		workaroundEvB: flagWorkaroundEvB,
	}

	if cfg.debug {
		pygaload.SetDebugEnabled(true)
	}

	return cfg
}

func main() {
	flag.Parse()
	os.Exit(run(parseConfig(), flag.Args()))
}

func run(cfg *config, args []string) int {
	if cfg.version {
		fmt.Printf("pygaload version %d.%d\n", versionMajor, versionMinor)
		return 0
	}

	if cfg.listPorts {
		return listPorts()
	}

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "*** You must specify a HEX file for programming")
		flag.Usage()
		return 2
	}

	if cfg.debug {
		path, err := pygaload.InitSessionLog()
		if err != nil {
			fmt.Fprintf(os.Stderr, "*** %v\n", err)
			return 1
		}
		fmt.Printf("Session log: %s\n", path)
		defer func() { _ = pygaload.CloseSessionLog() }()
	}

	img, err := ihex.ParseFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unable to read HEX file:\n    %v\n", err)
		return 1
	}
	if img.Len() == 0 {
		fmt.Fprintln(os.Stderr, "*** HEX file is empty...nothing to download")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := serialport.New(cfg.port, cfg.baud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** %v\n", err)
		return 1
	}
	defer func() { _ = tr.Close() }()
	fmt.Printf("Opened %s ...\n", cfg.port)

	if cfg.sendReset != "" {
		reset, err := unescape(cfg.sendReset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "*** Bad reset string: %v\n", err)
			return 2
		}
		fmt.Println("Sending reset string ...")
		if err := tr.Write(reset); err != nil {
			fmt.Fprintf(os.Stderr, "*** %v\n", err)
			return 1
		}
	}

	desc, err := negotiate(ctx, cfg, tr)
	if err != nil {
		reportError(cfg, "connect", err)
		return 1
	}
	fmt.Println(desc)

	if err := download(ctx, cfg, tr, img, desc); err != nil {
		reportError(cfg, "download", err)
		return 1
	}

	fmt.Println("Downloading successful")
	return 0
}

func negotiate(ctx context.Context, cfg *config, tr pygaload.Transport) (*pygaload.Descriptor, error) {
	opts := []pygaload.Option{
		pygaload.WithConnectTimeout(cfg.timeout),
	}
	if cfg.workaroundEvB {
		opts = append(opts, pygaload.WithExpectedOrder(pygaload.EvBFieldOrder))
	}

	fmt.Println("Waiting for bootloader to connect ...")
	neg := pygaload.NewNegotiator(tr, opts...)
	return neg.Negotiate(ctx)
}

func download(ctx context.Context, cfg *config, tr pygaload.Transport, img pygaload.Image, desc *pygaload.Descriptor) error {
	var opts []pygaload.Option
	if cfg.verbose {
		opts = append(opts, pygaload.WithProgress(printProgress))
	}

	fmt.Println("Downloading FLASH ...")
	prog := pygaload.NewProgrammer(tr, opts...)
	return prog.Download(ctx, img, desc)
}

func printProgress(p pygaload.Progress) {
	switch p.Phase {
	case pygaload.PhasePage:
		fmt.Printf("\r        Page %d ...", p.Page)
	case pygaload.PhaseRetry:
		fmt.Printf("\r        Page %d ... retry %d", p.Page, p.Attempt)
	case pygaload.PhaseComplete:
		fmt.Printf("\r        %d bytes written\n", p.BytesWritten)
	case pygaload.PhaseSkip:
		// Erased pages are not worth a line.
	}
}

func reportError(cfg *config, phase string, err error) {
	fmt.Fprintf(os.Stderr, "\n*** %s failed: %v\n", phase, err)
	switch {
	case pygaload.IsTimeout(err):
		fmt.Fprintln(os.Stderr, "*** Is the device in bootloader mode? Try -send-reset.")
	case errors.Is(err, pygaload.ErrImageTooLarge):
		fmt.Fprintln(os.Stderr, "*** HEX file contents extend into the bootloader section.")
	}
	if trace := pygaload.GetTrace(err); trace != nil && cfg.debug {
		fmt.Fprint(os.Stderr, trace.FormatTrace())
	}
	if path := pygaload.GetSessionLogPath(); path != "" {
		fmt.Fprintf(os.Stderr, "*** Details in %s\n", path)
	}
}

func listPorts() int {
	ports, err := serialport.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return 0
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return 0
}

// unescape expands C-style escapes (\n, \r, \t, \0, \\, \xHH) in a reset
// string.
func unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		i++
		if i >= len(s) {
			return nil, errors.New("trailing backslash")
		}
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '0':
			out = append(out, 0)
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+2 >= len(s) {
				return nil, errors.New("\\x needs two hex digits")
			}
			hi, err1 := hexDigit(s[i+1])
			lo, err2 := hexDigit(s[i+2])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad hex escape %q", s[i-1:i+3])
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return nil, fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("not a hex digit: %c", c)
	}
}
