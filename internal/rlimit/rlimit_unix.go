//go:build !windows

// Package rlimit contains a function to raise rlimit.
package rlimit

import (
	"golang.org/x/sys/unix"
)

// Raise raises the number of file descriptors that can be opened.
func Raise() error {
	var rlim unix.Rlimit
	err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim)
	if err != nil {
		return err
	}

	rlim.Cur = rlim.Max
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim)
}
