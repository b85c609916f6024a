//go:build linux

package rule

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime uses statx, which reports btime on ext4, xfs and btrfs
// (kernel 4.11+). tmpfs and older filesystems leave STATX_BTIME unset.
func birthTime(path string, _ os.FileInfo) (time.Time, bool) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
