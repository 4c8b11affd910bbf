package email

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/storage"
)

const plainEML = "From: Power Co Billing <billing@powerco.example>\r\n" +
	"To: Jane Doe <jane@example.com>, bob@example.com\r\n" +
	"Subject: Your bill is ready\r\n" +
	"Date: Mon, 15 Jan 2024 09:30:00 +0000\r\n" +
	"Message-ID: <abc@powerco.example>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Amount due: $42.10 by 2024-02-01.\r\n"

const htmlEML = "From: shop@store.example\r\n" +
	"To: jane@example.com\r\n" +
	"Subject: Order confirmation\r\n" +
	"Date: Tue, 16 Jan 2024 10:00:00 -0500\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Thanks for your order</p></body></html>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"receipt.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--XYZ--\r\n"

func TestMIMEParser_PlainText(t *testing.T) {
	msg, err := NewParser().Parse(strings.NewReader(plainEML))
	require.NoError(t, err)

	assert.Equal(t, "Your bill is ready", msg.Subject)
	require.Len(t, msg.From, 1)
	assert.Equal(t, "billing@powerco.example", msg.From[0].Address)
	assert.Equal(t, "Power Co Billing", msg.From[0].Name)
	require.Len(t, msg.To, 2)
	assert.Equal(t, "bob@example.com", msg.To[1].Address)
	assert.Empty(t, msg.Cc)
	assert.True(t, msg.Date.Equal(time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "Amount due: $42.10 by 2024-02-01.", msg.Text)
	assert.Equal(t, []string{"<abc@powerco.example>"}, msg.Headers["Message-Id"])
	assert.Empty(t, msg.Attachments)
}

func TestMIMEParser_HTMLWithAttachment(t *testing.T) {
	msg, err := NewParser().Parse(strings.NewReader(htmlEML))
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "Thanks for your order")
	assert.NotEmpty(t, msg.HTMLHeaders)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "receipt.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestMIMEParser_MissingDate(t *testing.T) {
	msg, err := NewParser().Parse(strings.NewReader("Subject: hi\r\n\r\nbody\r\n"))
	require.NoError(t, err)
	assert.True(t, msg.Date.IsZero())
	assert.Empty(t, msg.From)
}

func TestFrequency(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := storage.New(fs)
	require.NoError(t, afero.WriteFile(fs, "/in/a.eml", []byte(plainEML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/b.eml", []byte(htmlEML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/c.eml", []byte(strings.Replace(plainEML, "jane@example.com", "JANE@example.com", 1)), 0o644))

	counts, skipped, err := Frequency(NewParser(), st, []string{"/in/a.eml", "/in/b.eml", "/in/c.eml", "/in/missing.eml"}, "to")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, counts, 2)
	assert.Equal(t, AddressCount{Address: "jane@example.com", Name: "Jane Doe", Count: 3}, counts[0])
	assert.Equal(t, "bob@example.com", counts[1].Address)
	assert.Equal(t, 2, counts[1].Count)

	_, _, err = Frequency(NewParser(), st, nil, "bcc")
	assert.Error(t, err)
}

func TestMIMEParser_HTMLOnlyLeavesTextEmpty(t *testing.T) {
	msg, err := NewParser().Parse(strings.NewReader(htmlEML))
	require.NoError(t, err)
	assert.Empty(t, msg.Text)
	assert.Equal(t, msg.HTML, msg.Body())
}
