package excel

import (
	"path/filepath"
	"strings"

	"flowdash/internal/errors"
)

// FileKind is the parser family an upload is routed to
type FileKind string

const (
	KindCSV  FileKind = "csv"
	KindXLSX FileKind = "xlsx"
)

// extensionKinds lists accepted extensions. Legacy .xls is routed to the
// spreadsheet parser; binary BIFF workbooks fail there with a parse error.
var extensionKinds = map[string]FileKind{
	".csv":  KindCSV,
	".xlsx": KindXLSX,
	".xlsm": KindXLSX,
	".xls":  KindXLSX,
}

// AcceptedExtensions is shown in the upload form
var AcceptedExtensions = []string{".csv", ".xlsx", ".xls"}

// DetectKind maps a file name to its parser family by extension
func DetectKind(fileName string) (FileKind, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	kind, ok := extensionKinds[ext]
	if !ok {
		return "", errors.UnsupportedFormat(fileName)
	}
	return kind, nil
}

// HasSheets reports whether a sheet must be chosen before loading
func (k FileKind) HasSheets() bool {
	return k == KindXLSX
}
