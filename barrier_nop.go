//go:build microbench_nobarrier

package microbench

// BarriersEnabled is false: this build has no optimization barriers and
// measurements are best-effort.
const BarriersEnabled = false

// KeepAlive is a no-op in this build.
func KeepAlive[T any](v T) {}

// MemoryBarrier is a no-op in this build.
func MemoryBarrier() {}
