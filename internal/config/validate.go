package config

import (
	"regexp"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailsentry/internal/layout"
)

// Configuration errors surfaced before any item is processed.
var (
	ErrInvalidDateRange = eris.New("config: invalid date range")
	ErrInvalidPattern   = eris.New("config: invalid pattern")
	ErrInvalidValue     = eris.New("config: invalid value")
)

const dateLayout = "2006-01-02"

// Validate checks every setting a run depends on.
func (c *Config) Validate() error {
	loc, err := c.Location()
	if err != nil {
		return err
	}
	if _, err := layout.ParseStructure(c.Input.Structure); err != nil {
		return eris.Wrapf(ErrInvalidValue, "input.structure: %v", err)
	}
	if _, err := layout.ParseStructure(c.Output.Structure); err != nil {
		return eris.Wrapf(ErrInvalidValue, "output.structure: %v", err)
	}
	for _, opt := range c.Output.FilenameOptions {
		switch opt {
		case layout.FilenameDate, layout.FilenameTime, layout.FilenameSubject:
		default:
			return eris.Wrapf(ErrInvalidValue, "output.filename_options: unknown option %q", opt)
		}
	}
	if c.Output.HashSampleBytes <= 0 {
		return eris.Wrapf(ErrInvalidValue, "output.hash_sample_bytes must be positive, got %d", c.Output.HashSampleBytes)
	}
	if c.Job.Concurrency < 1 || c.Job.Concurrency > 64 {
		return eris.Wrapf(ErrInvalidValue, "job.concurrency must be between 1 and 64, got %d", c.Job.Concurrency)
	}
	if c.Job.Limit < 0 {
		return eris.Wrapf(ErrInvalidValue, "job.limit must not be negative, got %d", c.Job.Limit)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Wrapf(ErrInvalidValue, "store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Wrapf(ErrInvalidValue, "server.port out of range: %d", c.Server.Port)
	}

	patterns := map[string][]string{
		"filters.include.subject": c.Filters.Include.Subject,
		"filters.include.to":      c.Filters.Include.To,
		"filters.include.from":    c.Filters.Include.From,
		"filters.exclude.subject": c.Filters.Exclude.Subject,
		"filters.exclude.to":      c.Filters.Exclude.To,
		"filters.exclude.from":    c.Filters.Exclude.From,
		"simplify.headers":        c.Simplify.Headers,
	}
	for key, list := range patterns {
		if _, err := CompilePatterns(list); err != nil {
			return eris.Wrap(err, key)
		}
	}

	if _, err := c.Job.DateRange(loc, time.Now()); err != nil {
		return err
	}
	return nil
}

// Location returns the configured output timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Output.Timezone
	if tz == "" {
		tz = "Etc/UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidValue, "output.timezone %q: %v", tz, err)
	}
	return loc, nil
}

// CompilePatterns compiles case-insensitive regular expressions.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidPattern, "%q: %v", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// DateRange resolves the job's start, end and current_month settings into
// a half-open range in loc. End is inclusive as configured, so the range
// runs to the start of the following day.
func (j JobConfig) DateRange(loc *time.Location, now time.Time) (layout.DateRange, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	if j.CurrentMonth {
		if j.Start != "" || j.End != "" {
			return layout.DateRange{}, eris.Wrap(ErrInvalidDateRange, "current_month cannot be combined with start or end")
		}
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return layout.DateRange{Start: start, End: today.AddDate(0, 0, 1)}, nil
	}

	end := today
	if j.End != "" {
		t, err := time.ParseInLocation(dateLayout, j.End, loc)
		if err != nil {
			return layout.DateRange{}, eris.Wrapf(ErrInvalidDateRange, "end %q is not YYYY-MM-DD", j.End)
		}
		end = t
	}

	start := end.AddDate(0, 0, -31)
	if j.Start != "" {
		t, err := time.ParseInLocation(dateLayout, j.Start, loc)
		if err != nil {
			return layout.DateRange{}, eris.Wrapf(ErrInvalidDateRange, "start %q is not YYYY-MM-DD", j.Start)
		}
		start = t
	}

	if end.Before(start) {
		return layout.DateRange{}, eris.Wrapf(ErrInvalidDateRange, "end %s is before start %s", end.Format(dateLayout), start.Format(dateLayout))
	}
	return layout.DateRange{Start: start, End: end.AddDate(0, 0, 1)}, nil
}
