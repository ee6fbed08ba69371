package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "mst_run", "`mst_run`"},
		{"embedded backtick", "my`table", "`my``table`"},
		{"empty", "", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, IsValidIdentifier("mst_result"))
	assert.True(t, IsValidIdentifier("Run2"))
	assert.False(t, IsValidIdentifier(""))
	assert.False(t, IsValidIdentifier("mst-result"))
	assert.False(t, IsValidIdentifier("x; DROP TABLE y"))
}

func TestTableName(t *testing.T) {
	name, err := TableName("mst_", "run")
	require.NoError(t, err)
	assert.Equal(t, "`mst_run`", name)

	name, err = TableName("", "failure")
	require.NoError(t, err)
	assert.Equal(t, "`failure`", name)

	_, err = TableName("bad prefix ", "run")
	require.Error(t, err)
	var idErr *InvalidIdentifierError
	assert.ErrorAs(t, err, &idErr)
	assert.Equal(t, "bad prefix run", idErr.Name)
}
