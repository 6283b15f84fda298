//go:build unix && !darwin

package local

import (
	"syscall"
	"time"
)

// birthTime reports false: Stat_t carries no birth time outside macOS.
func birthTime(*syscall.Stat_t) (time.Time, bool) {
	return time.Time{}, false
}
