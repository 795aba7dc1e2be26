package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExtract(t *testing.T) {
	extractor := CSV{SourceName: "orders.csv"}

	tables, err := extractor.Extract([]byte("Order Number,Amount\nord-1,19.99\nord-2,5.00\n"))
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders.csv", tables[0].SourceName)
	assert.Equal(t, []string{"Order Number", "Amount"}, tables[0].Columns)
	assert.Equal(t, [][]string{{"ord-1", "19.99"}, {"ord-2", "5.00"}}, tables[0].Rows)
}

func TestCSVExtract_HeaderOnly(t *testing.T) {
	tables, err := CSV{}.Extract([]byte("Order Number,Amount\n"))
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Empty(t, tables[0].Rows)
}

func TestCSVExtract_EmptyContent(t *testing.T) {
	tables, err := CSV{}.Extract(nil)
	require.NoError(t, err)
	assert.Nil(t, tables)
}

func TestCSVExtract_RaggedRowsRejected(t *testing.T) {
	_, err := CSV{}.Extract([]byte("a,b\n1\n"))
	assert.Error(t, err)
}
