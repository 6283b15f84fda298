//go:build darwin

package local

import (
	"syscall"
	"time"
)

func birthTime(stat *syscall.Stat_t) (time.Time, bool) {
	ts := stat.Birthtimespec
	if ts.Sec == 0 && ts.Nsec == 0 {
		return time.Time{}, false
	}
	return time.Unix(ts.Sec, ts.Nsec), true
}
