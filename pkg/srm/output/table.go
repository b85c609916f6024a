package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// soon marks entries that expire within a day.
const soon = 24 * time.Hour

// TableFormatter renders a styled table for terminals.
type TableFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, l *Listing) error {
	if len(l.Items) == 0 {
		w.WriteString(MutedStyle.Render("Trash is empty") + "\n")
		return nil
	}

	headers := []string{"NAME", "SIZE", "EXPIRES", "ORIGINAL"}
	rows := make([][]string, len(l.Items))
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for i, it := range l.Items {
		name := it.Name
		if it.IsDir {
			name += "/"
		}
		expires := it.ExpiresIn
		if it.Rule != "" {
			expires += " (" + it.Rule + ")"
		}
		rows[i] = []string{name, it.SizeHuman, expires, it.OriginalPath}
		for c, cell := range rows[i] {
			widths[c] = max(widths[c], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	for c, h := range headers {
		sb.WriteString(TableHeaderStyle.Render(pad(h, widths[c], false)))
	}
	sb.WriteString("\n")

	for i, row := range rows {
		it := l.Items[i]
		sb.WriteString(pad(row[0], widths[0], false) + "  ")
		sb.WriteString(SizeStyle.Render(pad(row[1], widths[1], true)) + "  ")
		sb.WriteString(expiryStyle(it, l.Generated).Render(pad(row[2], widths[2], false)) + "  ")
		sb.WriteString(MutedStyle.Render(row[3]))
		sb.WriteString("\n")
	}
	w.WriteString(sb.String())

	footer := fmt.Sprintf("%s %d   %s %s",
		LabelStyle.Render("Entries:"), len(l.Items),
		LabelStyle.Render("Total:"), humanize.IBytes(uint64(max(l.TotalSize(), 0))))
	w.WriteString(FooterBox.Render(footer))
	w.WriteString("\n")
	return nil
}

func expiryStyle(it Item, now time.Time) lipgloss.Style {
	switch {
	case it.Due:
		return DueStyle
	case it.ExpiresAt.Sub(now) < soon:
		return SoonStyle
	default:
		return OKStyle
	}
}

func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

var _ Formatter = (*TableFormatter)(nil)
