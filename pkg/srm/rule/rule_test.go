package rule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

func durationPtr(d time.Duration) *types.Duration {
	v := types.Duration(d)
	return &v
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestRuleEligible(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	stat := FileStat{Size: 2048, CreatedAt: created, HasCreatedAt: true}

	tests := []struct {
		name string
		rule *Rule
		stat FileStat
		want bool
	}{
		{name: "nil rule", rule: nil, stat: stat, want: false},
		{name: "empty rule", rule: &Rule{}, stat: stat, want: false},
		{name: "older than max age", rule: &Rule{MaxAge: durationPtr(24 * time.Hour)}, stat: stat, want: true},
		{name: "younger than max age", rule: &Rule{MaxAge: durationPtr(72 * time.Hour)}, stat: stat, want: false},
		{name: "age exactly max age", rule: &Rule{MaxAge: durationPtr(48 * time.Hour)}, stat: stat, want: false},
		{name: "created before expiry", rule: &Rule{AbsoluteExpiry: timePtr(now.Add(-24 * time.Hour))}, stat: stat, want: true},
		{name: "created after expiry", rule: &Rule{AbsoluteExpiry: timePtr(created.Add(-time.Hour))}, stat: stat, want: false},
		{name: "larger than max size", rule: &Rule{MaxSize: int64Ptr(1024)}, stat: stat, want: true},
		{name: "equal to max size", rule: &Rule{MaxSize: int64Ptr(2048)}, stat: stat, want: false},
		{
			name: "any field matches",
			rule: &Rule{MaxAge: durationPtr(72 * time.Hour), MaxSize: int64Ptr(10)},
			stat: stat,
			want: true,
		},
		{
			name: "size match without creation time",
			rule: &Rule{MaxAge: durationPtr(time.Hour), MaxSize: int64Ptr(10)},
			stat: FileStat{Size: 2048},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Eligible(tt.stat, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleEligibleWithoutCreationTime(t *testing.T) {
	r := &Rule{MaxAge: durationPtr(time.Hour)}
	_, err := r.Eligible(FileStat{Size: 1}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.FilesystemError)
	assert.ErrorIs(t, err, ErrNoCreationTime)
}

func TestRuleEligibleMonotonic(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Rule{MaxAge: durationPtr(time.Hour), AbsoluteExpiry: timePtr(created.Add(time.Minute))}
	st := FileStat{Size: 1, CreatedAt: created, HasCreatedAt: true}

	at := created.Add(2 * time.Hour)
	ok, err := r.Eligible(st, at)
	require.NoError(t, err)
	require.True(t, ok)

	for _, later := range []time.Duration{time.Second, time.Hour, 365 * 24 * time.Hour} {
		ok, err := r.Eligible(st, at.Add(later))
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, (*Rule)(nil).Validate())
	assert.NoError(t, (&Rule{MaxSize: int64Ptr(0)}).Validate())
	assert.ErrorIs(t, (&Rule{MaxSize: int64Ptr(-1)}).Validate(), types.InvalidArgument)
	assert.ErrorIs(t, (&Rule{MaxAge: durationPtr(-time.Second)}).Validate(), types.InvalidArgument)
}

func TestRuleString(t *testing.T) {
	r := &Rule{
		MaxAge:         durationPtr(24 * time.Hour),
		AbsoluteExpiry: timePtr(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		MaxSize:        int64Ptr(types.GiB),
	}
	assert.Equal(t, "age>1d or created<2024-01-02 or size>1.0 GiB", r.String())
	assert.Empty(t, (&Rule{}).String())
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 300), 0o644))

	st, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(300), st.Size)
	if st.HasCreatedAt {
		assert.WithinDuration(t, time.Now(), st.CreatedAt, time.Minute)
	}

	_, err = Stat(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, types.NotFound)
}
