package layout

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range is unbounded.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Overlaps reports whether [from, to) intersects the range.
func (r DateRange) Overlaps(from, to time.Time) bool {
	if r.IsZero() {
		return true
	}
	return from.Before(r.End) && to.After(r.Start)
}

// Contains reports whether t falls in the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.IsZero() {
		return true
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// InputOptions controls input discovery.
type InputOptions struct {
	Directory  string
	Extensions []string
	Structure  Structure
	Recursive  bool
	Location   *time.Location
}

// Discover lists input files under opts.Directory with a matching
// extension. When the input is dated by directory structure, directories
// whose period does not overlap r are pruned. Results are sorted.
func Discover(fs afero.Fs, opts InputOptions, r DateRange) ([]string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts["."+strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}

	var files []string
	err := afero.Walk(fs, opts.Directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(opts.Directory, path)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			if rel == "." {
				return nil
			}
			if !opts.Recursive && opts.Structure == StructureNone {
				return filepath.SkipDir
			}
			if from, to, ok := periodOf(rel, opts.Structure, loc); ok && !r.Overlaps(from, to) {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if from, to, ok := periodOf(filepath.Dir(rel), opts.Structure, loc); ok && !r.Overlaps(from, to) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "layout: walk %s", opts.Directory)
	}

	sort.Strings(files)
	zap.L().Debug("layout: discovered input files",
		zap.String("directory", opts.Directory),
		zap.Int("count", len(files)),
	)
	return files, nil
}

// periodOf maps a relative directory to the period it represents under st.
// Partial paths (a year directory under a month structure) map to the
// coarser period. Paths that do not parse report ok=false.
func periodOf(rel string, st Structure, loc *time.Location) (from, to time.Time, ok bool) {
	if st == StructureNone || rel == "." || rel == "" {
		return time.Time{}, time.Time{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	depth := map[Structure]int{StructureYear: 1, StructureMonth: 2, StructureDay: 3}[st]
	if len(parts) > depth {
		parts = parts[:depth]
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		nums[i] = n
	}

	switch len(nums) {
	case 1:
		from = time.Date(nums[0], time.January, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(1, 0, 0), true
	case 2:
		if nums[1] < 1 || nums[1] > 12 {
			return time.Time{}, time.Time{}, false
		}
		from = time.Date(nums[0], time.Month(nums[1]), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0), true
	case 3:
		if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
			return time.Time{}, time.Time{}, false
		}
		from = time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 0, 1), true
	}
	return time.Time{}, time.Time{}, false
}
