package pipeline

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/model"
)

func TestSentryInput(t *testing.T) {
	msg := &model.Message{Subject: "hi"}
	state := model.Context{
		Keys: model.KeyFile | model.KeyMessage | model.KeyClassifications | model.KeyDetailPath |
			model.KeyFilename | model.KeyOutputPath | model.KeyHash,
		Version:         4,
		File:            "/in/a.eml",
		Message:         msg,
		Classifications: []model.Classification{{Coordinate: []string{"work"}}},
		DetailPath:      "/out/.detail",
		Filename:        "a-output",
		OutputPath:      "/out",
		Hash:            "abcd1234",
	}

	in, next := sentryInput(model.Context{}, state)
	assert.Equal(t, state, next)
	assert.True(t, in.Has(model.KeyMessage|model.KeyClassifications|model.KeyDetailPath|model.KeyFilename))
	assert.False(t, in.Has(model.KeyOutputPath))
	assert.Empty(t, in.OutputPath)
	assert.Empty(t, in.Hash)
	assert.Same(t, msg, in.Message)
}

func TestFanOut(t *testing.T) {
	s := &stages{}
	r, err := s.fanOut(context.Background(), model.Context{}, model.Context{})
	require.NoError(t, err)
	require.Nil(t, r.Termination)
	require.Len(t, r.Connections, 4)

	var targets []string
	for _, c := range r.Connections {
		targets = append(targets, c.To)
		assert.NotNil(t, c.Transform)
	}
	assert.Equal(t, []string{NodeEvent, NodePerson, NodeReceipt, NodeBillSentry}, targets)
}

func TestSimplify_PrunesHeadersWithoutTouchingInput(t *testing.T) {
	f := newFixture(t)
	msg := &model.Message{
		Headers: map[string][]string{
			"Subject":       {"hi"},
			"X-Mailer":      {"thing"},
			"Received":      {"a", "b"},
			"GmExport-Flag": {"1"},
		},
		Text:        "body",
		HTML:        "<p>body</p>",
		Attachments: []model.Attachment{{Filename: "a.pdf"}},
	}
	opts := Options{Simplify: SimplifyOptions{
		Headers:         []*regexp.Regexp{regexp.MustCompile("(?i)^Subject$"), regexp.MustCompile("(?i)^GmExport-.*$")},
		TextOnly:        true,
		SkipAttachments: true,
	}}
	p := &simplifyPhase{s: &stages{Deps: f.deps, opts: opts}}

	in := model.Context{
		Keys:    model.KeyMessage | model.KeyDetailPath | model.KeyFilename,
		Message: msg, DetailPath: "/out/.detail", Filename: "a-output",
	}
	require.True(t, p.Verify(in).Verified)
	out, err := p.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, model.KeyMessage, out.Keys)
	assert.Len(t, out.Message.Headers, 2)
	assert.Contains(t, out.Message.Headers, "GmExport-Flag")
	assert.Empty(t, out.Message.HTML)
	assert.Nil(t, out.Message.Attachments)

	assert.Len(t, msg.Headers, 4)
	assert.NotEmpty(t, msg.HTML)
	assert.Len(t, msg.Attachments, 1)
	assert.Equal(t, 0, f.llm.total())
}

func TestRender_VerifyMessages(t *testing.T) {
	renders := newRenders(&stages{})

	v := renders[NodeBill].Verify(model.Context{Keys: model.KeyMessage | model.KeyEvents})
	assert.False(t, v.Verified)
	assert.Contains(t, v.Messages, "people is required")
	assert.Contains(t, v.Messages, "bills is required")
	assert.NotContains(t, v.Messages, "transactions is required")

	v = renders[NodeSummarize].Verify(model.Context{Keys: model.KeyMessage | model.KeyEvents})
	assert.NotContains(t, v.Messages, "bills is required")
}

func TestRouteOf(t *testing.T) {
	r, ok := routeOf(NodeReceiptRender)
	assert.True(t, ok)
	assert.Equal(t, model.RouteReceipt, r)

	_, ok = routeOf(NodeAggregate)
	assert.False(t, ok)
}
