//go:build !microbench_nobarrier

package microbench

import (
	"runtime"
	"sync/atomic"
)

// BarriersEnabled reports whether KeepAlive and MemoryBarrier are backed by a real mechanism.
// Building with the tag microbench_nobarrier turns them into no-ops, which lowers
// measurement fidelity: the compiler may then discard or move benchmarked work.
const BarriersEnabled = true

var fenceWord atomic.Uint32

// KeepAlive marks v as observed, so the computation that produced it cannot be
// eliminated as dead code. It compiles down to nothing measurable.
func KeepAlive[T any](v T) {
	runtime.KeepAlive(v)
}

// MemoryBarrier forbids the compiler from moving memory reads and writes across
// this point. Atomic operations are never reordered by the Go compiler, and a
// load is a plain MOV on amd64 and arm64.
func MemoryBarrier() {
	fenceWord.Load()
}
