package output

import (
	"bytes"
	"path/filepath"
	"sort"

	"github.com/disiqueira/gotree/v3"
)

// TreeFormatter groups entries under the directory they were trashed from.
type TreeFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TreeFormatter) Format(w *bytes.Buffer, l *Listing) error {
	root := gotree.New(l.StorageDir)

	byDir := make(map[string][]Item)
	for _, it := range l.Items {
		dir := filepath.Dir(it.OriginalPath)
		byDir[dir] = append(byDir[dir], it)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, d := range dirs {
		branch := root.Add(d)
		for _, it := range byDir[d] {
			branch.Add(filepath.Base(it.OriginalPath) + " -> " + it.Name + " [" + it.SizeHuman + ", " + it.ExpiresIn + "]")
		}
	}
	w.WriteString(root.Print())
	return nil
}

func init() {
	Register("tree", func() Formatter {
		return &TreeFormatter{}
	})
}

var _ Formatter = (*TreeFormatter)(nil)
