package email

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/storage"
)

// AddressCount is how often an address appeared in a header.
type AddressCount struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Count   int    `json:"count"`
}

// Frequency counts addresses in header ("from", "to" or "cc") across files.
// Addresses are compared case-insensitively; the first display name seen
// is kept. Files that fail to parse are counted in skipped.
func Frequency(p Parser, st storage.Storage, files []string, header string) (counts []AddressCount, skipped int, err error) {
	pick, err := headerPicker(header)
	if err != nil {
		return nil, 0, err
	}

	byAddr := make(map[string]*AddressCount)
	for _, f := range files {
		msg, perr := ParseFile(p, st, f)
		if perr != nil {
			skipped++
			continue
		}
		for _, a := range pick(msg) {
			key := strings.ToLower(a.Address)
			if key == "" {
				continue
			}
			c, ok := byAddr[key]
			if !ok {
				c = &AddressCount{Address: key, Name: a.Name}
				byAddr[key] = c
			}
			c.Count++
		}
	}

	for _, c := range byAddr {
		counts = append(counts, *c)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Address < counts[j].Address
	})
	return counts, skipped, nil
}

func headerPicker(header string) (func(*model.Message) []model.Address, error) {
	switch strings.ToLower(header) {
	case "from":
		return func(m *model.Message) []model.Address { return m.From }, nil
	case "to":
		return func(m *model.Message) []model.Address { return m.To }, nil
	case "cc":
		return func(m *model.Message) []model.Address { return m.Cc }, nil
	}
	return nil, eris.Errorf("email: unsupported header %q", header)
}

// ParseFile opens and parses one message file.
func ParseFile(p Parser, st storage.Storage, path string) (*model.Message, error) {
	rc, err := st.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	msg, err := p.Parse(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "email: parse %s", path)
	}
	return msg, nil
}
