package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/srm/pkg/srm/rule"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleListing() *Listing {
	maxSize := int64(types.MiB)
	entries := []store.Entry{
		{
			OriginalPath: "/home/u/docs/report.pdf",
			StoredPath:   "/trash/report.pdf",
			TrashedAt:    now.Add(-time.Hour),
			ExpiresAt:    now.Add(3 * types.Day),
			SizeBytes:    2048,
		},
		{
			OriginalPath: "/home/u/old.log",
			StoredPath:   "/trash/old.log",
			TrashedAt:    now.Add(-8 * types.Day),
			ExpiresAt:    now.Add(-types.Day),
			SizeBytes:    10,
			Rule:         &rule.Rule{MaxSize: &maxSize},
		},
	}
	return NewListing(entries, "/trash", now)
}

func TestNewListing(t *testing.T) {
	l := sampleListing()
	require.Len(t, l.Items, 2)

	assert.Equal(t, "old.log", l.Items[0].Name, "sorted by expiry")
	assert.True(t, l.Items[0].Due)
	assert.Equal(t, "due", l.Items[0].ExpiresIn)
	assert.NotEmpty(t, l.Items[0].Rule)

	assert.False(t, l.Items[1].Due)
	assert.Equal(t, "3 days left", l.Items[1].ExpiresIn)
	assert.Equal(t, "2.0 KiB", l.Items[1].SizeHuman)
	assert.Equal(t, int64(2058), l.TotalSize())
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "table", "toml", "tree", "yaml"}, Available())

	_, err := Get("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")

	r := NewRegistry()
	r.Register("x", func() Formatter { return &PlainFormatter{} })
	f, err := r.Get("x")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)
}

func render(t *testing.T, name string, l *Listing) string {
	t.Helper()
	f, err := Get(name)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, l))
	return buf.String()
}

func TestPlainFormatter(t *testing.T) {
	out := render(t, "plain", sampleListing())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "old.log")
	assert.Contains(t, lines[2], "/home/u/docs/report.pdf")
	assert.Contains(t, lines[2], "2024-01-04T12:00:00Z")
}

func TestTableFormatter(t *testing.T) {
	out := render(t, "table", sampleListing())
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "Entries:")

	empty := render(t, "table", NewListing(nil, "/trash", now))
	assert.Contains(t, empty, "Trash is empty")
}

func TestJSONFormatter(t *testing.T) {
	var got Listing
	require.NoError(t, json.Unmarshal([]byte(render(t, "json", sampleListing())), &got))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "/trash/old.log", got.Items[0].StoredPath)

	assert.Contains(t, render(t, "json", NewListing(nil, "/trash", now)), `"entries": []`)
}

func TestYAMLFormatter(t *testing.T) {
	var got Listing
	require.NoError(t, yaml.Unmarshal([]byte(render(t, "yaml", sampleListing())), &got))
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(2048), got.Items[1].Size)
}

func TestTOMLFormatter(t *testing.T) {
	out := render(t, "toml", sampleListing())
	assert.Contains(t, out, "[[entries]]")

	var got Listing
	_, err := toml.Decode(out, &got)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "report.pdf", got.Items[1].Name)
}

func TestTreeFormatter(t *testing.T) {
	out := render(t, "tree", sampleListing())
	assert.True(t, strings.HasPrefix(out, "/trash"))
	assert.Contains(t, out, "/home/u/docs")
	assert.Contains(t, out, "report.pdf -> report.pdf")
}

func TestDefaultFormat(t *testing.T) {
	assert.Equal(t, "plain", DefaultFormat(nil))
}
