package rule

import (
	"os"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

// StatFunc reads the metadata of the file at path.
type StatFunc func(path string) (FileStat, error)

// Stat reads size and, where the platform and filesystem expose it,
// creation time. Symlinks are not followed.
func Stat(path string) (FileStat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileStat{}, types.E(types.NotFound, "stat", path, err)
		}
		return FileStat{}, types.E(types.FilesystemError, "stat", path, err)
	}

	st := FileStat{Size: info.Size()}
	if created, ok := birthTime(path, info); ok {
		st.CreatedAt = created
		st.HasCreatedAt = true
	}
	return st, nil
}
