//go:build !microbench_debug

package microbench

const debugAssertions = false
