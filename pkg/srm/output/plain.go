package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"
)

// PlainFormatter formats output as an aligned, uncolored table
// suitable for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, l *Listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, "NAME\tSIZE\tEXPIRES\tORIGINAL"); err != nil {
		return err
	}
	for _, it := range l.Items {
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			it.Name, it.Size, it.ExpiresAt.Format(time.RFC3339), it.OriginalPath); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
