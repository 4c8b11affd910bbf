package pipeline

import (
	"context"

	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/schema"
)

type textResponse struct {
	Text string `json:"text" jsonschema:"the plain text rendering of the HTML"`
}

var textSchema = schema.MustFor[textResponse]("html2text")

type simplifyPhase struct{ s *stages }

func (p *simplifyPhase) Verify(in model.Context) graph.Verification {
	return requireKeys(in, model.KeyMessage, model.KeyDetailPath, model.KeyFilename)
}

// Execute returns a reduced copy of the message. The message in the
// incoming state is left untouched.
func (p *simplifyPhase) Execute(ctx context.Context, in model.Context) (model.Context, error) {
	msg := in.Message.Clone()
	opts := p.s.opts.Simplify

	if len(opts.Headers) > 0 {
		msg.Headers = keepHeaders(msg.Headers, opts)
	}

	if msg.Text == "" && msg.HTML != "" {
		resp, err := completeCached[textResponse](ctx, p.s, responsePath(in, "html2text"), llm.Request{
			Name:   "html2text",
			Model:  p.s.opts.ClassifyModel,
			Prompt: p.s.Prompts.HTML2Text(msg.HTML),
			Schema: textSchema,
		})
		if err != nil {
			return model.Context{}, err
		}
		msg.Text = resp.Text
	}

	if opts.TextOnly {
		msg.HTML = ""
		msg.HTMLHeaders = nil
	}
	if opts.SkipAttachments {
		msg.Attachments = nil
	}

	return model.Context{Keys: model.KeyMessage, Message: msg}, nil
}

func keepHeaders(headers map[string][]string, opts SimplifyOptions) map[string][]string {
	out := make(map[string][]string, len(headers))
	for name, values := range headers {
		for _, re := range opts.Headers {
			if re.MatchString(name) {
				out[name] = values
				break
			}
		}
	}
	return out
}
