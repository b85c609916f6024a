package trash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// verify re-hashes the stored file of entry. It returns nil when the
// entry has no recorded checksum, a FilesystemError when the file cannot
// be read, and ChecksumMismatch when the content changed.
func verify(entry store.Entry) error {
	if entry.Checksum == "" || entry.IsDir {
		return nil
	}
	sum, err := checksumFile(entry.StoredPath)
	if err != nil {
		return types.E(types.FilesystemError, "verify", entry.StoredPath, err)
	}
	if sum != entry.Checksum {
		return types.E(types.ChecksumMismatch, "verify", entry.StoredPath,
			fmt.Errorf("recorded %s, found %s", short(entry.Checksum), short(sum)))
	}
	return nil
}

// Verify checks the integrity of the stored file named name.
func (e *Engine) Verify(name string) error {
	entry, ok := e.store.Find(name)
	if !ok {
		return types.E(types.NotFound, "verify", name, nil)
	}
	return verify(entry)
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
