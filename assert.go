package microbench

import (
	"github.com/pkg/errors"
)

// assertf panics when cond is false and the package was built with the
// microbench_debug tag. Otherwise it compiles away.
func assertf(cond bool, format string, args ...any) {
	if debugAssertions && !cond {
		panic(errors.Errorf("microbench: "+format, args...))
	}
}
