package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTaxonomy = `
categories:
  - name: finance
    description: Money
    children:
      - name: bills
        children:
          - name: utilities
  - name: work
`

func TestParseTaxonomy(t *testing.T) {
	tax, err := ParseTaxonomy([]byte(sampleTaxonomy))
	require.NoError(t, err)
	require.Len(t, tax.Categories, 2)
	assert.Equal(t, "finance", tax.Categories[0].Name)
	assert.Equal(t, "utilities", tax.Categories[0].Children[0].Children[0].Name)
}

func TestParseTaxonomy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "categories: []\n", "no categories"},
		{"blank name", "categories:\n  - name: ''\n", "has no name"},
		{"duplicate sibling", "categories:\n  - name: a\n  - name: a\n", "repeated"},
		{"duplicate nested", "categories:\n  - name: a\n    children:\n      - name: b\n      - name: b\n", "repeated under \"/a\""},
		{"not yaml", "categories: [", "parse taxonomy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTaxonomy([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTaxonomy_Contains(t *testing.T) {
	tax, err := ParseTaxonomy([]byte(sampleTaxonomy))
	require.NoError(t, err)

	assert.True(t, tax.Contains([]string{"finance"}))
	assert.True(t, tax.Contains([]string{"finance", "bills"}))
	assert.True(t, tax.Contains([]string{"finance", "bills", "utilities"}))
	assert.False(t, tax.Contains([]string{"bills"}))
	assert.False(t, tax.Contains([]string{"finance", "utilities"}))
	assert.False(t, tax.Contains(nil))
}

func TestTaxonomy_Render(t *testing.T) {
	tax, err := ParseTaxonomy([]byte(sampleTaxonomy))
	require.NoError(t, err)

	want := "- finance: Money\n  - bills\n    - utilities\n- work\n"
	assert.Equal(t, want, tax.Render())
}
