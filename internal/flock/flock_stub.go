//go:build !linux

package flock

import "fmt"

type Lock struct{}

func Acquire(path string) (*Lock, error) {
	return nil, fmt.Errorf("flock: unsupported on this platform")
}

func (l *Lock) Release() error { return nil }
