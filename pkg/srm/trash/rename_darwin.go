//go:build darwin

package trash

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplace moves src to dst and fails with an error matching
// os.ErrExist if dst exists.
func renameNoReplace(src, dst string) error {
	err := unix.RenameatxNp(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_EXCL)
	if errors.Is(err, unix.ENOTSUP) {
		return checkedRename(src, dst)
	}
	if err != nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}
	return nil
}
