package excel

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowdash/domain/table"
	"flowdash/internal"
	"flowdash/internal/errors"

	"github.com/xuri/excelize/v2"
)

var logger = internal.DefaultLogger.With("DataReader")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DataReader parses an uploaded CSV or spreadsheet held in memory
type DataReader struct {
	fileName string
	kind     FileKind
	data     []byte
}

// NewDataReader creates a reader for an upload. Unsupported extensions fail
// with UNSUPPORTED_FORMAT before any parsing happens.
func NewDataReader(fileName string, data []byte) (*DataReader, error) {
	kind, err := DetectKind(fileName)
	if err != nil {
		return nil, err
	}
	return &DataReader{fileName: fileName, kind: kind, data: data}, nil
}

// OpenFile reads a file from disk into a DataReader
func OpenFile(path string) (*DataReader, error) {
	if _, err := DetectKind(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseFailure(filepath.Base(path), err)
	}
	return NewDataReader(filepath.Base(path), data)
}

// FileName returns the upload's declared name
func (r *DataReader) FileName() string {
	return r.fileName
}

// Kind returns the parser family
func (r *DataReader) Kind() FileKind {
	return r.kind
}

// SheetNames lists the workbook's sheets in workbook order. Delimited text
// has no sheets and returns nil.
func (r *DataReader) SheetNames() ([]string, error) {
	if !r.kind.HasSheets() {
		return nil, nil
	}
	f, err := r.openWorkbook()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ParseFailure(r.fileName, fmt.Errorf("workbook has no sheets"))
	}
	return sheets, nil
}

// ReadTable materializes one sheet (or the CSV body) as a table. An empty
// sheet name selects the first sheet. The first row is the header row; a
// header with no data rows is a valid, empty table.
func (r *DataReader) ReadTable(sheet string) (*table.Table, error) {
	logger.Debug("Reading %s file %s (sheet %q)", r.kind, r.fileName, sheet)
	switch r.kind {
	case KindCSV:
		return r.readCSVData()
	case KindXLSX:
		return r.readExcelData(sheet)
	default:
		return nil, errors.UnsupportedFormat(r.fileName)
	}
}

func (r *DataReader) openWorkbook() (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(r.data))
	if err != nil {
		return nil, errors.ParseFailure(r.fileName, err)
	}
	return f, nil
}

// readExcelData reads one sheet into a table
func (r *DataReader) readExcelData(sheet string) (*table.Table, error) {
	startTime := time.Now()
	f, err := r.openWorkbook()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.ParseFailure(r.fileName, fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, errors.NotFound(fmt.Sprintf("sheet %q", sheet))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.ParseFailure(r.fileName, fmt.Errorf("failed to read sheet %s: %w", sheet, err))
	}
	logger.Debug("Sheet %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// readCSVData reads the delimited body, sniffing the delimiter from the
// header line
func (r *DataReader) readCSVData() (*table.Table, error) {
	body := bytes.TrimPrefix(r.data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = sniffDelimiter(body)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ParseFailure(r.fileName, err)
		}
		rows = append(rows, record)
	}

	return r.processRows(rows)
}

// processRows turns raw string rows into a table, dropping fully blank rows
func (r *DataReader) processRows(rows [][]string) (*table.Table, error) {
	var header []string
	var data [][]string
	for _, row := range rows {
		cells := make([]string, len(row))
		blank := true
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		data = append(data, cells)
	}

	if header == nil {
		return nil, errors.ParseFailure(r.fileName, fmt.Errorf("no header row found"))
	}

	t := table.New(header, data)
	t.NormalizeHeaders()

	logger.Info("%s file %s processed (%d columns, %d rows)",
		strings.ToUpper(string(r.kind)), r.fileName, t.ColumnCount(), t.RowCount())
	return t, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon, tab and pipe
// in the first line outside quotes. Ties go to the comma.
func sniffDelimiter(body []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(body)).ReadString('\n')
	counts := map[rune]int{}
	inQuotes := false
	for _, ch := range line {
		switch ch {
		case '"':
			inQuotes = !inQuotes
		case ',', ';', '\t', '|':
			if !inQuotes {
				counts[ch]++
			}
		}
	}
	best := ','
	for _, candidate := range []rune{';', '\t', '|'} {
		if counts[candidate] > counts[best] {
			best = candidate
		}
	}
	return best
}
