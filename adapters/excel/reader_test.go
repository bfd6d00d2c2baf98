package excel

import (
	"testing"

	"flowdash/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Energy"))
	require.NoError(t, f.SetSheetRow("Energy", "A1", &[]interface{}{"Source", "Target", "Plant", "FY26"}))
	require.NoError(t, f.SetSheetRow("Energy", "A2", &[]interface{}{"Coal", "Boiler", "P1", 120}))
	require.NoError(t, f.SetSheetRow("Energy", "A3", &[]interface{}{"Boiler", "Turbine", "P1", 80.5}))

	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Notes", "A1", &[]interface{}{"Comment"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectKind(t *testing.T) {
	kind, err := DetectKind("flows.CSV")
	require.NoError(t, err)
	assert.Equal(t, KindCSV, kind)

	kind, err = DetectKind("flows.xls")
	require.NoError(t, err)
	assert.Equal(t, KindXLSX, kind)

	_, err = DetectKind("flows.json")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnsupportedFormat, errors.GetCode(err))
}

func TestReadCSV(t *testing.T) {
	body := "\xEF\xBB\xBFSource,Target,2025-04-01,FY26\nCoal,Boiler,10,20\n\n Gas , Boiler ,\"1,200\",5\n"
	r, err := NewDataReader("flows.csv", []byte(body))
	require.NoError(t, err)

	sheets, err := r.SheetNames()
	require.NoError(t, err)
	assert.Nil(t, sheets)

	tbl, err := r.ReadTable("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Source", "Target", "2025-04-01", "FY26"}, tbl.Headers)
	require.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, []string{"Gas", "Boiler", "1,200", "5"}, tbl.Rows[1])
}

func TestReadCSVSemicolon(t *testing.T) {
	r, err := NewDataReader("flows.csv", []byte("Source;Target;FY26\nA;B;1,5\n"))
	require.NoError(t, err)

	tbl, err := r.ReadTable("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Source", "Target", "FY26"}, tbl.Headers)
	assert.Equal(t, []string{"A", "B", "1,5"}, tbl.Rows[0])
}

func TestReadCSVHeaderOnly(t *testing.T) {
	r, err := NewDataReader("flows.csv", []byte("Source,Target,FY26\n"))
	require.NoError(t, err)

	tbl, err := r.ReadTable("")
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.RowCount())
	assert.Equal(t, 3, tbl.ColumnCount())
}

func TestReadCSVEmptyFails(t *testing.T) {
	r, err := NewDataReader("flows.csv", []byte("\n\n"))
	require.NoError(t, err)

	_, err = r.ReadTable("")
	require.Error(t, err)
	assert.Equal(t, errors.CodeParseFailure, errors.GetCode(err))
}

func TestReadWorkbook(t *testing.T) {
	r, err := NewDataReader("flows.xlsx", workbook(t))
	require.NoError(t, err)

	sheets, err := r.SheetNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Energy", "Notes"}, sheets)

	tbl, err := r.ReadTable("Energy")
	require.NoError(t, err)
	assert.Equal(t, []string{"Source", "Target", "Plant", "FY26"}, tbl.Headers)
	assert.Equal(t, [][]string{{"Coal", "Boiler", "P1", "120"}, {"Boiler", "Turbine", "P1", "80.5"}}, tbl.Rows)

	first, err := r.ReadTable("")
	require.NoError(t, err)
	assert.Equal(t, tbl, first)

	notes, err := r.ReadTable("Notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Comment"}, notes.Headers)
}

func TestReadWorkbookUnknownSheet(t *testing.T) {
	r, err := NewDataReader("flows.xlsx", workbook(t))
	require.NoError(t, err)

	_, err = r.ReadTable("Missing")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestReadMalformedWorkbook(t *testing.T) {
	r, err := NewDataReader("legacy.xls", []byte("this is not a workbook"))
	require.NoError(t, err)

	_, err = r.SheetNames()
	require.Error(t, err)
	assert.Equal(t, errors.CodeParseFailure, errors.GetCode(err))
	assert.Contains(t, err.Error(), "could not read legacy.xls")
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n")))
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb\tc")))
	assert.Equal(t, ',', sniffDelimiter([]byte("\"x;y;z\",b\n")))
}
