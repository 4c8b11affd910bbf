//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/mailsentry/internal/email"
)

func TestFormatFrequency(t *testing.T) {
	var buf bytes.Buffer
	formatFrequency(&buf, []email.AddressCount{
		{Address: "billing@powerco.example", Name: "Power Co", Count: 7},
		{Address: "shop@store.example", Count: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "COUNT")
	assert.Contains(t, out, "billing@powerco.example")
	assert.Contains(t, out, "Power Co")
	assert.Contains(t, out, "7")
}
