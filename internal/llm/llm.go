// Package llm turns prompts into schema-validated JSON through the
// Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mailsentry/internal/prompt"
	"github.com/sells-group/mailsentry/internal/resilience"
	"github.com/sells-group/mailsentry/internal/schema"
	"github.com/sells-group/mailsentry/pkg/anthropic"
)

// Request is one model call.
type Request struct {
	// Name labels the call in logs and cost records.
	Name   string
	Model  string
	Prompt prompt.Prompt
	Schema *schema.Schema
}

// Completer returns a JSON document that satisfies req.Schema.
type Completer interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// Options configures a Client.
type Options struct {
	MaxTokens         int64
	RequestsPerSecond float64
	CacheTTL          string
	Retry             resilience.RetryConfig
	// Breaker defaults to one that opens after five consecutive transient
	// failures.
	Breaker *resilience.Breaker
}

// Client implements Completer on top of an anthropic.Client.
type Client struct {
	api       anthropic.Client
	limiter   *rate.Limiter
	breaker   *resilience.Breaker
	retry     resilience.RetryConfig
	maxTokens int64
	cacheTTL  string

	mu    sync.Mutex
	usage map[string]anthropic.TokenUsage
}

// New creates a Client.
func New(api anthropic.Client, opts Options) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewBreaker("anthropic", 5, 0, nil)
	}
	if opts.Retry.Name == "" {
		opts.Retry.Name = "anthropic"
	}
	return &Client{
		api:       api,
		limiter:   rate.NewLimiter(limit, burst),
		breaker:   opts.Breaker,
		retry:     opts.Retry,
		maxTokens: opts.MaxTokens,
		cacheTTL:  opts.CacheTTL,
		usage:     make(map[string]anthropic.TokenUsage),
	}
}

// Complete sends req and returns the compacted, validated JSON response.
func (c *Client) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Schema == nil {
		return nil, eris.Errorf("llm: %s: request has no schema", req.Name)
	}

	msg := anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: c.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemWithSchema(req.Prompt.System, req.Schema), c.cacheTTL),
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt.User}},
	}

	resp, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limiter")
		}
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			resp, err := c.api.CreateMessage(ctx, msg)
			if err != nil {
				return nil, classify(err)
			}
			return resp, nil
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "llm: %s", req.Name)
	}

	c.record(req.Model, resp.Usage)
	resp.Usage.LogCost(req.Model, req.Name)

	raw := cleanJSON(resp.Text())
	if err := req.Schema.Validate(raw); err != nil {
		zap.L().Warn("llm: response failed validation",
			zap.String("stage", req.Name),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "llm: %s response", req.Name)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, eris.Wrapf(err, "llm: %s compact", req.Name)
	}
	return buf.Bytes(), nil
}

// Usage returns accumulated token usage per model.
func (c *Client) Usage() map[string]anthropic.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]anthropic.TokenUsage, len(c.usage))
	for k, v := range c.usage {
		out[k] = v
	}
	return out
}

func (c *Client) record(model string, u anthropic.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.usage[model]
	total.Add(u)
	c.usage[model] = total
}

// CompleteAs runs req through c and decodes the response into T.
func CompleteAs[T any](ctx context.Context, c Completer, req Request) (T, json.RawMessage, error) {
	var out T
	raw, err := c.Complete(ctx, req)
	if err != nil {
		return out, nil, err
	}
	if err := req.Schema.Decode(raw, &out); err != nil {
		return out, nil, eris.Wrapf(err, "llm: %s decode", req.Name)
	}
	return out, raw, nil
}

func classify(err error) error {
	if code, ok := anthropic.StatusCode(err); ok && resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}

func systemWithSchema(system string, s *schema.Schema) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(system, "\n"))
	b.WriteString("\n\n## Response format\n\n")
	b.WriteString("Respond with a single JSON document that validates against the schema below. ")
	b.WriteString("Do not wrap it in prose.\n\n```json\n")
	b.WriteString(s.String())
	b.WriteString("\n```\n")
	return b.String()
}

// cleanJSON strips markdown fences and any text around the outermost
// JSON object.
func cleanJSON(text string) []byte {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return []byte(text)
}
