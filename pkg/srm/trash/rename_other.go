//go:build !darwin && !linux

package trash

func renameNoReplace(src, dst string) error {
	return checkedRename(src, dst)
}
