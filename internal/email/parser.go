// Package email parses EML files into model.Message values.
package email

import (
	"errors"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/model"
)

// Parser turns raw message bytes into a structured message.
type Parser interface {
	Parse(r io.Reader) (*model.Message, error)
}

// MIMEParser parses RFC 5322 / MIME messages.
type MIMEParser struct{}

// NewParser returns the default parser.
func NewParser() *MIMEParser { return &MIMEParser{} }

// Parse reads a full message from r. Malformed parts that enmime can
// recover from are logged, not returned.
func (p *MIMEParser) Parse(r io.Reader) (*model.Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, eris.Wrap(err, "email: read envelope")
	}
	for _, perr := range env.Errors {
		zap.L().Debug("email: part error", zap.String("error", perr.Error()))
	}

	msg := &model.Message{
		Headers: make(map[string][]string),
		Subject: env.GetHeader("Subject"),
		From:    addresses(env, "From"),
		To:      addresses(env, "To"),
		Cc:      addresses(env, "Cc"),
		Date:    parseDate(env.GetHeader("Date")),
		Text:    strings.TrimSpace(env.Text),
		HTML:    env.HTML,
	}
	if env.Root != nil {
		// enmime down-converts HTML when there is no text part; keep the
		// body empty so Simplify decides how to derive text.
		if env.HTML != "" && env.Root.BreadthMatchFirst(func(p *enmime.Part) bool {
			return p.ContentType == "text/plain"
		}) == nil {
			msg.Text = ""
		}
		for k, v := range env.Root.Header {
			msg.Headers[k] = append([]string(nil), v...)
		}
		if part := env.Root.BreadthMatchFirst(func(p *enmime.Part) bool {
			return p.ContentType == "text/html"
		}); part != nil && env.HTML != "" {
			msg.HTMLHeaders = make(map[string][]string, len(part.Header))
			for k, v := range part.Header {
				msg.HTMLHeaders[k] = append([]string(nil), v...)
			}
		}
	}
	for _, a := range env.Attachments {
		msg.Attachments = append(msg.Attachments, model.Attachment{
			Filename:    a.FileName,
			ContentType: a.ContentType,
			Size:        len(a.Content),
		})
	}
	return msg, nil
}

func addresses(env *enmime.Envelope, header string) []model.Address {
	list, err := env.AddressList(header)
	if err != nil {
		if !errors.Is(err, mail.ErrHeaderNotPresent) {
			zap.L().Debug("email: bad address list", zap.String("header", header), zap.Error(err))
		}
		return nil
	}
	out := make([]model.Address, 0, len(list))
	for _, a := range list {
		out = append(out, model.Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// parseDate returns the zero time when the header is missing or malformed.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := mail.ParseDate(v)
	if err != nil {
		return time.Time{}
	}
	return t
}
