package microbench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrettyPrint(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{123 * time.Nanosecond, "123ns"},
		{1270 * time.Nanosecond, "1.3µs"},
		{1230 * time.Microsecond, "1.2ms"},
		{180280 * time.Millisecond, "180.3s"},
		{5*time.Minute + 7200*time.Millisecond, "5m07.2s"},
		{3*time.Hour + 5*time.Minute + 7200*time.Millisecond, "3h05m07s"},
		{100*24*time.Hour + 3*time.Hour + 5*time.Minute + 7200*time.Millisecond, "100d 3h05m07s"},
	}

	for _, tt := range tests {
		got := PrettyPrint(tt.input)
		if got != tt.want {
			t.Errorf("PrettyPrint(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrettyPrintNs(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0ns"},
		{0.3456, "0.35ns"},
		{9.5, "9.50ns"},
		{123.4, "123ns"},
		{1270, "1.3µs"},
		{-2.5, "-2.50ns"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrettyPrintNs(tt.input), "PrettyPrintNs(%g)", tt.input)
	}
	assert.Equal(t, "1.2ms", PrettyPrintMs(1.23))
	assert.Equal(t, "0.50ns", PrettyPrintMs(0.5e-6))
}
