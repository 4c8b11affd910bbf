package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type doc struct {
	Lines []line `json:"lines"`
	Note  string `json:"note"`
}

func newDocSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := For[doc]("doc",
		Enum("lines.[].status", "due", "paid"),
		Range("lines.[].score", 0, 1),
	)
	require.NoError(t, err)
	return s
}

func TestSchema_ValidDocument(t *testing.T) {
	s := newDocSchema(t)
	raw := []byte(`{"lines":[{"status":"due","score":0.5}],"note":"ok"}`)

	require.NoError(t, s.Validate(raw))

	var out doc
	require.NoError(t, s.Decode(raw, &out))
	assert.Equal(t, doc{Lines: []line{{Status: "due", Score: 0.5}}, Note: "ok"}, out)
}

func TestSchema_EmptyArrayIsValid(t *testing.T) {
	s := newDocSchema(t)
	assert.NoError(t, s.Validate([]byte(`{"lines":[],"note":""}`)))
}

func TestSchema_Rejects(t *testing.T) {
	s := newDocSchema(t)
	cases := map[string]string{
		"enum":     `{"lines":[{"status":"late","score":0.5}],"note":"x"}`,
		"range":    `{"lines":[{"status":"due","score":1.5}],"note":"x"}`,
		"missing":  `{"lines":[]}`,
		"type":     `{"lines":"nope","note":"x"}`,
		"not json": `{"lines":`,
	}
	for name, raw := range cases {
		err := s.Validate([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestSchema_DecodeRejectsInvalid(t *testing.T) {
	s := newDocSchema(t)
	var out doc
	err := s.Decode([]byte(`{"note":"x"}`), &out)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSchema_UnknownPath(t *testing.T) {
	_, err := For[doc]("doc", Enum("lines.[].missing", "x"))
	assert.Error(t, err)
}

func TestSchema_String(t *testing.T) {
	s := newDocSchema(t)
	assert.Equal(t, "doc", s.Name())
	assert.Contains(t, s.String(), `"enum"`)
	assert.Contains(t, s.String(), `"paid"`)
}
