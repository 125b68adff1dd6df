//go:build linux

package storage

import (
	"os"
	"syscall"
	"time"
)

// createdTime returns the inode change time, the closest Linux has to a creation time.
func createdTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)) //nolint:unconvert // int32 on 32-bit platforms
	}
	return info.ModTime()
}
