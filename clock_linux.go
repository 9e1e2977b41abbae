//go:build linux

package microbench

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PosixClock reads CLOCK_MONOTONIC through clock_gettime(2).
//
// It usually goes through the vDSO and costs a bit more than RuntimeClock, but
// it is the same source used by C harnesses, which makes numbers comparable.
type PosixClock struct{}

// Now implements Clock.
//
// Failure to read CLOCK_MONOTONIC leaves the harness without a usable clock, so it panics.
func (PosixClock) Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic(errors.Wrap(err, "clock_gettime(CLOCK_MONOTONIC)"))
	}
	return ts.Nano()
}

func platformClocks() map[string]func() Clock {
	return map[string]func() Clock{
		"posix": func() Clock { return PosixClock{} },
	}
}
