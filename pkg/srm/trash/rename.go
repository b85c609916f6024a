package trash

import (
	"errors"
	"os"
)

// checkedRename refuses an existing dst, then renames. A file created at
// dst between the two steps is replaced.
func checkedRename(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: os.ErrExist}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
