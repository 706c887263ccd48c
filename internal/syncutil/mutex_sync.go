//go:build !deadlock

// Package syncutil provides mutex types that can optionally use deadlock
// detection. By default standard sync mutexes are used with zero overhead.
// Build with -tags=deadlock to detect lock-ordering bugs via
// github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
type RWMutex struct {
	sync.RWMutex
}
