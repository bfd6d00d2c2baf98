package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	return New(
		[]string{"Source", "Target", "Plant", "FY26"},
		[][]string{
			{"Coal", "Boiler", "P2", "100"},
			{"Gas", "Boiler", "P1", "50"},
			{"Boiler", "Turbine", "P1"},
		},
	)
}

func TestNewPadsShortRows(t *testing.T) {
	tbl := sample()
	require.Len(t, tbl.Rows[2], 4)
	assert.Equal(t, "", tbl.Rows[2][3])
	assert.Equal(t, 3, tbl.RowCount())
	assert.Equal(t, 4, tbl.ColumnCount())
}

func TestFilter(t *testing.T) {
	filtered, err := sample().Filter("Plant", "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.RowCount())
	assert.Equal(t, "Gas", filtered.Rows[0][0])

	_, err = sample().Filter("Material", "x")
	assert.Error(t, err)
}

func TestUniqueValuesSorted(t *testing.T) {
	values, err := sample().UniqueValues("Plant")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, values)
}

func TestHead(t *testing.T) {
	assert.Equal(t, 2, sample().Head(2).RowCount())
	assert.Equal(t, 3, sample().Head(10).RowCount())
}

func TestNormalizeHeaders(t *testing.T) {
	tbl := New([]string{" Source ", "", "FY26", "FY26", "FY26"}, nil)
	tbl.NormalizeHeaders()
	assert.Equal(t, []string{"Source", "Unnamed: 1", "FY26", "FY26.1", "FY26.2"}, tbl.Headers)
}
