package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/email"
	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/prompt"
	"github.com/sells-group/mailsentry/internal/storage"
)

// --- Completer fake ---

// fakeCompleter answers by response schema name and counts calls.
type fakeCompleter struct {
	mu        sync.Mutex
	responses map[string]string
	calls     map[string]int
	requests  map[string]llm.Request
	err       error
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{
		responses: map[string]string{
			"html2text":       `{"text":"Thanks for your order (converted)"}`,
			"classifications": `{"classifications":[{"coordinate":["finance","bills"],"strength":0.9,"reason":"amount due"}]}`,
			"events":          `{"events":[]}`,
			"people":          `{"people":[{"name":"Jane Doe","role":"recipient","category":"other","reason":"addressee"}]}`,
			"transactions":    `{"transactions":[]}`,
			"bills":           billsJSON,
			"bill":            `{"bill":"# Power Co\n\nAmount due: 42.10"}`,
			"receipt":         `{"receipt":"# Receipt\n\nOrder from Store"}`,
			"summary":         `{"summary":"# Summary\n\nNothing to act on"}`,
		},
		calls:    make(map[string]int),
		requests: make(map[string]llm.Request),
	}
}

const billsJSON = `{"bills":[{"provider":"Power Co","kind":"utility","amount_due":42.1,` +
	`"due_date":"2024-02-01","period":"January 2024","status":"due","description":"electricity","reason":"amount due"}]}`

const transactionsJSON = `{"transactions":[{"date":"2024-01-16","amount":12.5,"description":"order",` +
	`"type":"order","category":"other","status":"completed","due_date":"","merchant_organization":"Store",` +
	`"merchant_type":"other","reason":"order confirmation"}]}`

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.Schema.Name()
	f.calls[name]++
	f.requests[name] = req
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[name]
	if !ok {
		return nil, fmt.Errorf("no response for %s", name)
	}
	return json.RawMessage(resp), nil
}

func (f *fakeCompleter) set(name, resp string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[name] = resp
}

func (f *fakeCompleter) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCompleter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCompleter) request(name string) llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[name]
}

// --- Ledger mock ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) RecordItem(ctx context.Context, item *model.ItemResult) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// --- Fixtures ---

const billEML = "From: Power Co Billing <billing@powerco.example>\r\n" +
	"To: Jane Doe <jane@example.com>\r\n" +
	"Subject: Your bill is ready\r\n" +
	"Date: Mon, 15 Jan 2024 09:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Amount due: $42.10 by 2024-02-01.\r\n"

const orderEML = "From: shop@store.example\r\n" +
	"To: jane@example.com\r\n" +
	"Subject: Order confirmation\r\n" +
	"Date: Tue, 16 Jan 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Thanks for your order</p></body></html>\r\n"

const undatedEML = "From: someone@example.com\r\n" +
	"To: jane@example.com\r\n" +
	"Subject: No date here\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"hello\r\n"

type fixture struct {
	fs    afero.Fs
	store *storage.FS
	llm   *fakeCompleter
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	prompts, err := prompt.NewFactory(fs, prompt.Options{})
	require.NoError(t, err)

	st := storage.New(fs)
	fc := newFakeCompleter()
	return &fixture{
		fs:    fs,
		store: st,
		llm:   fc,
		deps: Deps{
			Storage: st,
			Parser:  email.NewParser(),
			Layout: &layout.Layout{
				Directory:       "/out",
				Structure:       layout.StructureMonth,
				FilenameOptions: []string{layout.FilenameDate, layout.FilenameSubject},
			},
			Prompts:   prompts,
			Completer: fc,
		},
	}
}

func (f *fixture) writeEML(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(content), 0o644))
	return path
}

func (f *fixture) processor(t *testing.T, opts Options, ledger Ledger) *Processor {
	t.Helper()
	if opts.Model == "" {
		opts.Model = "render-model"
	}
	if opts.ClassifyModel == "" {
		opts.ClassifyModel = "classify-model"
	}
	p, err := NewProcessor(f.deps, opts, ledger)
	require.NoError(t, err)
	return p
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	return string(data)
}
