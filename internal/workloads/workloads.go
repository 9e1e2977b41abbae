// Package workloads holds the named operations the microbench command can measure.
package workloads

import (
	"crypto/sha256"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/pkg/errors"

	microbench "github.com/janpfeifer/go-microbench"
)

// Workload is a named operation. Setup is called once before measuring and returns the
// operation itself, so per-run state (buffers, maps, generators) is not shared between runs.
type Workload struct {
	Name        string
	Description string
	Setup       func() func() bool
}

var registry = []Workload{
	{
		Name:        "noop",
		Description: "empty function, measures the harness floor",
		Setup: func() func() bool {
			return func() bool { return true }
		},
	},
	{
		Name:        "busywait-1ms",
		Description: "spins on the clock for 1ms",
		Setup: func() func() bool {
			return func() bool {
				BusyWait(time.Millisecond)
				return true
			}
		},
	},
	{
		Name:        "sha256-64b",
		Description: "SHA-256 of a 64 bytes buffer",
		Setup: func() func() bool {
			buf := make([]byte, 64)
			for ii := range buf {
				buf[ii] = byte(ii)
			}
			return func() bool {
				microbench.KeepAlive(sha256.Sum256(buf))
				return true
			}
		},
	},
	{
		Name:        "sort-100",
		Description: "sorts 100 random ints, the copy is included",
		Setup: func() func() bool {
			rng := rand.New(rand.NewPCG(42, 42))
			source := make([]int, 100)
			for ii := range source {
				source[ii] = rng.Int()
			}
			work := make([]int, len(source))
			return func() bool {
				copy(work, source)
				slices.Sort(work)
				microbench.KeepAlive(work[0])
				return true
			}
		},
	},
	{
		Name:        "map-insert",
		Description: "inserts into a map[int]int, cleared every 1024 inserts",
		Setup: func() func() bool {
			m := make(map[int]int, 1024)
			var key int
			return func() bool {
				m[key] = key
				key++
				if key == 1024 {
					clear(m)
					key = 0
				}
				return true
			}
		},
	},
	{
		Name:        "alloc-1k",
		Description: "allocates a 1KiB slice on the heap",
		Setup: func() func() bool {
			return func() bool {
				buf := make([]byte, 1024)
				microbench.KeepAlive(&buf[0])
				return true
			}
		},
	},
	{
		Name:        "flaky-noop",
		Description: "empty function that reports failure every 10th call",
		Setup: func() func() bool {
			var calls int
			return func() bool {
				calls++
				return calls%10 != 0
			}
		},
	},
}

// BusyWait spins until d has elapsed.
func BusyWait(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}

// All returns the registered workloads, in registration order.
func All() []Workload {
	return slices.Clone(registry)
}

// Names of the registered workloads.
func Names() []string {
	names := make([]string, len(registry))
	for ii, w := range registry {
		names[ii] = w.Name
	}
	return names
}

// Lookup returns the workload with the given name.
func Lookup(name string) (Workload, error) {
	for _, w := range registry {
		if w.Name == name {
			return w, nil
		}
	}
	return Workload{}, errors.Errorf("unknown workload %q, valid workloads are %v", name, Names())
}

// NamedFunctions converts the named workloads to functions for microbench.New. No names
// selects all workloads.
func NamedFunctions(names ...string) ([]microbench.NamedFunction, error) {
	if len(names) == 0 {
		names = Names()
	}
	fns := make([]microbench.NamedFunction, 0, len(names))
	for _, name := range names {
		w, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		fns = append(fns, microbench.Checked(w.Name, w.Setup()))
	}
	return fns, nil
}
