//go:build linux

// Package flock holds an exclusive advisory lock on a file so only one
// daemon instance drives the fan at a time.
package flock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held lock file. The lock lives as long as the descriptor;
// the kernel drops it if the process dies.
type Lock struct {
	f *os.File
}

// Acquire takes the lock without blocking. A second instance gets an
// error naming the path instead of waiting on the first.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %s held by another process: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock. Safe on a nil receiver so callers can defer it
// unconditionally.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
