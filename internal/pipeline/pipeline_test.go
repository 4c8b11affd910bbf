package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/config"
	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/model"
)

func TestNewProcessor_MissingDeps(t *testing.T) {
	f := newFixture(t)
	deps := f.deps
	deps.Completer = nil
	_, err := NewProcessor(deps, Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completer is required")
}

func TestProcess_BillRoute(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)
	p := f.processor(t, Options{}, nil)

	item, err := p.Process(context.Background(), "", file)
	require.NoError(t, err)

	assert.Equal(t, model.ItemProcessed, item.Status)
	assert.Equal(t, model.RouteBill, item.Route)
	assert.Len(t, item.Hash, hashLen)
	assert.Equal(t, "15-"+item.Hash+"-output-Your_bill_is", item.Filename)

	want := filepath.Join("/out/2024/01/bills", layout.ArtifactName(item.Filename, "bill")+".md")
	assert.Equal(t, want, item.ArtifactPath)
	assert.Equal(t, "# Power Co\n\nAmount due: 42.10", f.read(t, want))

	// One call per stage; plain text needs no conversion.
	assert.Equal(t, 0, f.llm.count("html2text"))
	for _, name := range []string{"classifications", "events", "people", "transactions", "bills", "bill"} {
		assert.Equal(t, 1, f.llm.count(name), name)
	}
	assert.Equal(t, 6, f.llm.total())

	assert.Equal(t, "classify-model", f.llm.request("events").Model)
	assert.Equal(t, "render-model", f.llm.request("bill").Model)
	assert.Contains(t, f.llm.request("bill").Prompt.User, "## Bills")

	marker := filepath.Join("/out/2024/01/.context", item.Filename+".json")
	assert.Contains(t, f.read(t, marker), `"hash": "`+item.Hash+`"`)

	cached := filepath.Join("/out/2024/01/.detail", layout.ResponseName(item.Filename, "classify"))
	assert.Contains(t, f.read(t, cached), `"finance"`)
}

func TestProcess_ReceiptRoute(t *testing.T) {
	f := newFixture(t)
	f.llm.set("bills", `{"bills":[]}`)
	f.llm.set("transactions", transactionsJSON)
	file := f.writeEML(t, "/in/order.eml", orderEML)

	item, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)

	assert.Equal(t, model.RouteReceipt, item.Route)
	assert.True(t, strings.HasPrefix(item.ArtifactPath, "/out/2024/01/receipts/"))
	assert.Equal(t, 0, f.llm.count("bill"))
	assert.Equal(t, 1, f.llm.count("receipt"))

	// HTML-only bodies are converted once and the text reaches classify.
	assert.Equal(t, 1, f.llm.count("html2text"))
	assert.Contains(t, f.llm.request("classifications").Prompt.User, "Thanks for your order (converted)")
}

func TestProcess_SummaryRoute(t *testing.T) {
	f := newFixture(t)
	f.llm.set("events", `{"events":[]}`)
	f.llm.set("people", `{"people":[]}`)
	f.llm.set("transactions", `{"transactions":[]}`)
	f.llm.set("bills", `{"bills":[]}`)
	file := f.writeEML(t, "/in/bill.eml", billEML)

	item, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)

	assert.Equal(t, model.RouteSummary, item.Route)
	assert.Equal(t, filepath.Join("/out/2024/01", layout.ArtifactName(item.Filename, "summary")+".md"), item.ArtifactPath)
	assert.Equal(t, 1, f.llm.count("summary"))
	assert.Equal(t, 0, f.llm.count("bill"))
	assert.Equal(t, 0, f.llm.count("receipt"))

	// The marker keeps empty entity lists as defined, not absent.
	marker := f.read(t, filepath.Join("/out/2024/01/.context", item.Filename+".json"))
	var saved map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(marker), &saved))
	for _, key := range []string{"events", "people", "transactions", "bills"} {
		assert.JSONEq(t, `[]`, string(saved[key]), key)
	}
	assert.NotEqual(t, "[]", strings.TrimSpace(string(saved["classifications"])))
}

func TestProcess_Idempotent(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)

	first, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)
	artifact := f.read(t, first.ArtifactPath)
	calls := f.llm.total()

	second, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)
	assert.Equal(t, model.ItemSkipped, second.Status)
	assert.Equal(t, first.Filename, second.Filename)
	assert.Equal(t, calls, f.llm.total())

	// Replace walks the graph again but every response is cached.
	third, err := f.processor(t, Options{Replace: true}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)
	assert.Equal(t, model.ItemProcessed, third.Status)
	assert.Equal(t, calls, f.llm.total())
	assert.Equal(t, artifact, f.read(t, third.ArtifactPath))
}

func TestProcess_RenderTwiceReadsBack(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)
	p := f.processor(t, Options{Replace: true}, nil)

	_, err := p.Process(context.Background(), "", file)
	require.NoError(t, err)
	_, err = p.Process(context.Background(), "", file)
	require.NoError(t, err)

	assert.Equal(t, 1, f.llm.count("bill"))
}

func TestProcess_DryRun(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)

	item, err := f.processor(t, Options{DryRun: true}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)

	assert.Equal(t, model.ItemDryRun, item.Status)
	assert.Equal(t, ReasonDefaultInclude, item.Reason)
	assert.Equal(t, 0, f.llm.total())

	ok, err := afero.Exists(f.fs, filepath.Join("/out/2024/01/.context", item.Filename+".json"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcess_Filtered(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)
	filters, err := CompileFilters(config.FiltersConfig{
		Include: config.FilterRules{Subject: []string{"^invoice"}},
	})
	require.NoError(t, err)

	item, err := f.processor(t, Options{Filters: filters}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)

	assert.Equal(t, model.ItemFiltered, item.Status)
	assert.Equal(t, ReasonIncludeByDefault, item.Reason)
	assert.Equal(t, 0, f.llm.total())
}

func TestProcess_NoDate(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/undated.eml", undatedEML)

	item, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDate))
	assert.Equal(t, model.ItemFailed, item.Status)
	assert.NotEmpty(t, item.Error)
	assert.Equal(t, 0, f.llm.total())
}

func TestProcess_CompleterError(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("upstream down")
	file := f.writeEML(t, "/in/bill.eml", billEML)

	item, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.Error(t, err)
	assert.Equal(t, model.ItemFailed, item.Status)
	assert.Contains(t, item.Error, "upstream down")
	// Locate ran, so the item is still identifiable.
	assert.NotEmpty(t, item.Filename)
}

func TestProcess_CorruptCache(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)

	first, err := f.processor(t, Options{}, nil).Process(context.Background(), "", file)
	require.NoError(t, err)

	cached := filepath.Join("/out/2024/01/.detail", layout.ResponseName(first.Filename, "classify"))
	require.NoError(t, afero.WriteFile(f.fs, cached,
		[]byte(`{"classifications":[{"coordinate":["finance"],"strength":3,"reason":"x"}]}`), 0o644))

	item, err := f.processor(t, Options{Replace: true}, nil).Process(context.Background(), "", file)
	require.Error(t, err)

	var cce *CacheCorruptError
	require.True(t, errors.As(err, &cce))
	assert.Equal(t, cached, cce.Path)
	assert.Equal(t, model.ItemFailed, item.Status)
}

func TestProcess_RecordsToLedger(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)

	ledger := new(mockLedger)
	ledger.On("RecordItem", mock.Anything, mock.MatchedBy(func(item *model.ItemResult) bool {
		return item.RunID == "run-1" && item.Status == model.ItemProcessed
	})).Return(nil).Once()

	_, err := f.processor(t, Options{}, ledger).Process(context.Background(), "run-1", file)
	require.NoError(t, err)
	ledger.AssertExpectations(t)
}

func TestProcess_LedgerSkippedWithoutRun(t *testing.T) {
	f := newFixture(t)
	file := f.writeEML(t, "/in/bill.eml", billEML)
	ledger := new(mockLedger)

	_, err := f.processor(t, Options{DryRun: true}, ledger).Process(context.Background(), "", file)
	require.NoError(t, err)
	ledger.AssertNotCalled(t, "RecordItem", mock.Anything, mock.Anything)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Anthropic.Model = "big"
	cfg.Anthropic.ClassifyModel = "small"
	cfg.Output.HashSampleBytes = 1024
	cfg.Job.DryRun = true
	cfg.Filters.Exclude.From = []string{"noreply"}
	cfg.Simplify.Headers = []string{"^Subject$"}
	cfg.Simplify.TextOnly = true

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "big", opts.Model)
	assert.Equal(t, "small", opts.ClassifyModel)
	assert.Equal(t, 1024, opts.HashSampleBytes)
	assert.True(t, opts.DryRun)
	require.Len(t, opts.Filters.Exclude.From, 1)
	assert.True(t, opts.Filters.Exclude.From[0].MatchString("NoReply@example.com"))
	require.Len(t, opts.Simplify.Headers, 1)
	assert.True(t, opts.Simplify.TextOnly)

	cfg.Filters.Include.Subject = []string{"("}
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
