package microbench

import (
	"slices"
	"time"
	_ "unsafe" // Required for go:linkname.

	"github.com/pkg/errors"
)

// Clock is a monotonic source of nanosecond timestamps.
//
// Two successive calls to Now on the same Clock must satisfy second >= first.
// The epoch is arbitrary: only differences are meaningful.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() int64

// Now implements Clock.
func (f ClockFunc) Now() int64 { return f() }

// nanotime returns the runtime's monotonic clock in nanoseconds, without building a time.Time.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// RuntimeClock reads the Go runtime's internal monotonic clock.
// It is the cheapest clock available and the default for measurements.
type RuntimeClock struct{}

// Now implements Clock.
func (RuntimeClock) Now() int64 { return nanotime() }

// TimeClock uses the monotonic reading carried by time.Now.
type TimeClock struct {
	epoch time.Time
}

// NewTimeClock returns a TimeClock whose epoch is the moment of creation.
func NewTimeClock() *TimeClock {
	return &TimeClock{epoch: time.Now()}
}

// Now implements Clock.
func (c *TimeClock) Now() int64 { return int64(time.Since(c.epoch)) }

// ManualClock is a deterministic Clock: every call to Now advances it by Step
// before returning the new reading. Operations under test can call Advance to
// simulate work.
//
// It is not safe for concurrent use.
type ManualClock struct {
	T    int64
	Step int64
}

// Now implements Clock.
func (c *ManualClock) Now() int64 {
	c.T += c.Step
	return c.T
}

// Advance moves the clock forward by ns nanoseconds. Negative values are ignored,
// since the clock must stay monotonic.
func (c *ManualClock) Advance(ns int64) {
	if ns > 0 {
		c.T += ns
	}
}

// DefaultClockName is the name of the clock used when none is configured.
const DefaultClockName = "runtime"

var clockFactories = map[string]func() Clock{
	"runtime": func() Clock { return RuntimeClock{} },
	"time":    func() Clock { return NewTimeClock() },
}

func init() {
	for name, factory := range platformClocks() {
		clockFactories[name] = factory
	}
}

// ClockNames returns the names accepted by ClockByName, sorted.
func ClockNames() []string {
	names := make([]string, 0, len(clockFactories))
	for name := range clockFactories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ClockByName returns a new Clock for one of the names listed by ClockNames.
// The empty name selects DefaultClockName.
func ClockByName(name string) (Clock, error) {
	if name == "" {
		name = DefaultClockName
	}
	factory, found := clockFactories[name]
	if !found {
		return nil, errors.Errorf("unknown clock %q, valid clocks are %v", name, ClockNames())
	}
	return factory(), nil
}
