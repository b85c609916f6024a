//go:build !darwin && !linux

package rule

import (
	"os"
	"time"
)

// birthTime is unsupported here; time-based rules report ErrNoCreationTime.
func birthTime(_ string, _ os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
