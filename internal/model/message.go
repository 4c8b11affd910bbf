package model

import "time"

// Address is a single mailbox from an address header.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Attachment holds attachment metadata. Content is not retained.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Message is a parsed EML message.
type Message struct {
	Headers     map[string][]string `json:"headers"`
	Subject     string              `json:"subject"`
	From        []Address           `json:"from"`
	To          []Address           `json:"to"`
	Cc          []Address           `json:"cc,omitempty"`
	Date        time.Time           `json:"date"`
	Text        string              `json:"text,omitempty"`
	HTML        string              `json:"html,omitempty"`
	HTMLHeaders map[string][]string `json:"html_headers,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
}

// Body returns the text handed to the model: plain text when present,
// otherwise raw HTML, otherwise empty.
func (m *Message) Body() string {
	if m == nil {
		return ""
	}
	if m.Text != "" {
		return m.Text
	}
	return m.HTML
}

// Clone returns a copy whose maps and slices can be modified without
// affecting m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Headers = cloneHeaders(m.Headers)
	c.HTMLHeaders = cloneHeaders(m.HTMLHeaders)
	c.From = append([]Address(nil), m.From...)
	c.To = append([]Address(nil), m.To...)
	c.Cc = append([]Address(nil), m.Cc...)
	c.Attachments = append([]Attachment(nil), m.Attachments...)
	return &c
}

func cloneHeaders(h map[string][]string) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}
