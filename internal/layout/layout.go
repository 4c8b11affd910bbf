// Package layout derives output directories, filenames and artifact names,
// and discovers input messages.
package layout

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Structure is how dated files are nested under a root directory.
type Structure string

const (
	StructureNone  Structure = "none"
	StructureYear  Structure = "year"
	StructureMonth Structure = "month"
	StructureDay   Structure = "day"
)

// ParseStructure validates s.
func ParseStructure(s string) (Structure, error) {
	switch st := Structure(strings.ToLower(s)); st {
	case StructureNone, StructureYear, StructureMonth, StructureDay:
		return st, nil
	}
	return "", eris.Errorf("layout: unknown structure %q", s)
}

// Filename parts that can be switched on.
const (
	FilenameDate    = "date"
	FilenameTime    = "time"
	FilenameSubject = "subject"
)

// OutputKind is the placeholder kind used in canonical item filenames.
// Derived names replace it with an artifact kind.
const OutputKind = "output"

const subjectExcerptLen = 12

// Layout places items under an output root.
type Layout struct {
	Directory       string
	Structure       Structure
	FilenameOptions []string
	Location        *time.Location
}

func (l *Layout) loc() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}

func (l *Layout) enabled(opt string) bool {
	for _, o := range l.FilenameOptions {
		if strings.EqualFold(o, opt) {
			return true
		}
	}
	return false
}

// OutputDirectory returns the directory for an item created at t.
func (l *Layout) OutputDirectory(t time.Time) string {
	t = t.In(l.loc())
	switch l.Structure {
	case StructureYear:
		return filepath.Join(l.Directory, t.Format("2006"))
	case StructureMonth:
		return filepath.Join(l.Directory, t.Format("2006"), t.Format("01"))
	case StructureDay:
		return filepath.Join(l.Directory, t.Format("2006"), t.Format("01"), t.Format("02"))
	default:
		return l.Directory
	}
}

// Filename builds the canonical item filename. Date components already
// encoded by the directory structure are left out.
func (l *Layout) Filename(t time.Time, kind, hash, subject string) string {
	t = t.In(l.loc())
	var parts []string
	if l.enabled(FilenameDate) {
		switch l.Structure {
		case StructureYear:
			parts = append(parts, t.Format("01-02"))
		case StructureMonth:
			parts = append(parts, t.Format("02"))
		case StructureDay:
		default:
			parts = append(parts, t.Format("2006-01-02"))
		}
	}
	if l.enabled(FilenameTime) {
		parts = append(parts, t.Format("1504"))
	}
	parts = append(parts, hash, kind)
	if l.enabled(FilenameSubject) {
		if s := SanitizeSubject(subject); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "-")
}

var unsafeSubject = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// SanitizeSubject returns a short filesystem-safe excerpt of a subject.
// Accents are stripped, the first 12 runes kept, and anything outside
// [a-zA-Z0-9-_] replaced with an underscore.
func SanitizeSubject(subject string) string {
	if subject == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, subject)
	if err != nil {
		plain = subject
	}
	r := []rune(plain)
	if len(r) > subjectExcerptLen {
		r = r[:subjectExcerptLen]
	}
	return unsafeSubject.ReplaceAllString(string(r), "_")
}

var outputToken = regexp.MustCompile(`(^|-)` + OutputKind + `(-|$)`)

// ArtifactName derives the name for kind from a canonical filename by
// replacing its "output" token. Date, time and hash parts never spell
// "output", so the first token is the kind slot even when the subject
// excerpt contains the word. A filename without the token gets ".<kind>"
// appended so every kind still maps to a distinct name.
func ArtifactName(filename, kind string) string {
	loc := outputToken.FindStringSubmatchIndex(filename)
	if loc == nil {
		return filename + "." + kind
	}
	// loc[2]:loc[3] is the leading delimiter, loc[4]:loc[5] the trailing one.
	return filename[:loc[3]] + kind + filename[loc[4]:]
}

// ResponseName is the cached model response filename for kind.
func ResponseName(filename, kind string) string {
	return ArtifactName(filename, kind+"_response") + ".json"
}
