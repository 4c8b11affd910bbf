package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/prompt"
)

func TestResponsePath(t *testing.T) {
	in := model.Context{DetailPath: "/out/.detail", Filename: "2024-01-15-abcd1234-output-Hello"}
	assert.Equal(t, "/out/.detail/2024-01-15-abcd1234-classify_response-Hello.json", responsePath(in, "classify"))
}

func TestCompleteCached_RoundTrip(t *testing.T) {
	f := newFixture(t)
	s := &stages{Deps: f.deps}
	req := llm.Request{Name: "classify", Prompt: prompt.Prompt{User: "x"}, Schema: classificationsSchema}
	path := "/out/.detail/item-classify_response.json"

	first, err := completeCached[classificationsResponse](context.Background(), s, path, req)
	require.NoError(t, err)
	require.Len(t, first.Classifications, 1)

	stored := f.read(t, path)
	assert.Contains(t, stored, "\n  \"classifications\"")

	second, err := completeCached[classificationsResponse](context.Background(), s, path, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.llm.count("classifications"))
}

func TestCompleteCached_Corrupt(t *testing.T) {
	f := newFixture(t)
	s := &stages{Deps: f.deps}
	path := "/out/.detail/item-events_response.json"
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(`{"events":"nope"}`), 0o644))

	_, err := completeCached[eventsResponse](context.Background(), s, path,
		llm.Request{Name: "event", Schema: eventsSchema})
	var cce *CacheCorruptError
	require.True(t, errors.As(err, &cce))
	assert.Equal(t, path, cce.Path)
	assert.Contains(t, cce.Error(), "corrupt cache")
	assert.NotNil(t, errors.Unwrap(cce))
	assert.Equal(t, 0, f.llm.total())
}

func TestCompleteCached_InvalidResponseNotCached(t *testing.T) {
	f := newFixture(t)
	f.llm.set("people", `{"people":[{"name":"x"}]}`)
	s := &stages{Deps: f.deps}
	path := "/out/.detail/item-person_response.json"

	_, err := completeCached[peopleResponse](context.Background(), s, path,
		llm.Request{Name: "person", Schema: peopleSchema})
	require.Error(t, err)

	ok, err := afero.Exists(f.fs, path)
	require.NoError(t, err)
	assert.False(t, ok)
}
