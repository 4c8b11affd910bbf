package layout

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
	}
}

func TestDiscover_MonthStructurePrunesOutOfRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs,
		"/in/2023/12/a.eml",
		"/in/2024/01/b.eml",
		"/in/2024/01/c.EML",
		"/in/2024/01/notes.txt",
		"/in/2024/02/d.eml",
		"/in/misc/e.eml",
	)

	r := DateRange{
		Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
	files, err := Discover(fs, InputOptions{Directory: "/in", Extensions: []string{"eml"}, Structure: StructureMonth, Recursive: true}, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/2024/01/b.eml", "/in/2024/01/c.EML", "/in/misc/e.eml"}, files)
}

func TestDiscover_FlatNonRecursive(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/in/a.eml", "/in/sub/b.eml")

	files, err := Discover(fs, InputOptions{Directory: "/in", Extensions: []string{".eml"}, Structure: StructureNone}, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.eml"}, files)

	files, err = Discover(fs, InputOptions{Directory: "/in", Extensions: []string{"eml"}, Structure: StructureNone, Recursive: true}, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.eml", "/in/sub/b.eml"}, files)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := Discover(afero.NewMemMapFs(), InputOptions{Directory: "/nope", Extensions: []string{"eml"}}, DateRange{})
	assert.Error(t, err)
}

func TestDateRange(t *testing.T) {
	r := DateRange{
		Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, r.Contains(r.Start))
	assert.False(t, r.Contains(r.End))
	assert.True(t, DateRange{}.Contains(time.Now()))
	assert.False(t, r.Overlaps(r.End, r.End.AddDate(0, 1, 0)))
	assert.True(t, r.Overlaps(r.Start.AddDate(-1, 0, 0), r.Start.AddDate(0, 0, 1)))
}

func TestPeriodOf(t *testing.T) {
	from, to, ok := periodOf("2024/02/29", StructureDay, time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), to)

	from, to, ok = periodOf("2024", StructureMonth, time.UTC)
	require.True(t, ok)
	assert.Equal(t, 2024, from.Year())
	assert.Equal(t, 2025, to.Year())

	_, _, ok = periodOf("2024/13", StructureMonth, time.UTC)
	assert.False(t, ok)
	_, _, ok = periodOf("misc", StructureMonth, time.UTC)
	assert.False(t, ok)
}
