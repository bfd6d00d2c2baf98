// Package columns partitions table column labels into time-valued columns
// (calendar months and fiscal years) and categorical columns.
package columns

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"
)

// Kind tags a column label
type Kind string

const (
	KindCategorical Kind = "categorical"
	KindDate        Kind = "date"
	KindFiscalYear  Kind = "fiscal_year"
)

// IsTime reports whether the kind is time-valued
func (k Kind) IsTime() bool {
	return k == KindDate || k == KindFiscalYear
}

// DisplayLayout is the month display form, e.g. "Apr-25"
const DisplayLayout = "Jan-06"

// Excel serials for 1950-01-01 and 2100-01-01
const (
	minExcelSerial = 18264
	maxExcelSerial = 73051
)

var (
	monthYearLayouts = []string{"Jan-06", "Jan-2006", "January-06", "January-2006", "Jan 06", "Jan 2006", "January 2006"}
	excelSerialRe    = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
	digitRe          = regexp.MustCompile(`\d`)
)

// Collision records two labels that format to the same display label. The
// later label is kept.
type Collision struct {
	Display string `json:"display"`
	Dropped string `json:"dropped"`
	Kept    string `json:"kept"`
}

// Classification is the result of classifying a table's labels
type Classification struct {
	// Display maps a time display label to the real column label
	Display map[string]string `json:"display"`
	// TimeLabels lists display labels in first-seen order
	TimeLabels []string `json:"time_labels"`
	// Categorical lists categorical labels in table order
	Categorical []string `json:"categorical"`

	Kinds      map[string]Kind `json:"kinds"`
	Collisions []Collision     `json:"collisions,omitempty"`
}

// Resolve maps a time display label back to its table header
func (c *Classification) Resolve(display string) (string, bool) {
	real, ok := c.Display[display]
	return real, ok
}

// IsCategorical reports whether label was classified categorical
func (c *Classification) IsCategorical(label string) bool {
	return c.Kinds[label] == KindCategorical
}

// Classifier classifies column labels. The zero value parses ambiguous
// numeric dates month-first.
type Classifier struct {
	DayFirst bool
	// Now supplies the year for dates written without one, e.g. "3/4".
	// Nil means time.Now.
	Now func() time.Time
}

// Classify classifies labels with the default month-first classifier
func Classify(labels []string) *Classification {
	return Classifier{}.Classify(labels)
}

// Classify tags every label with exactly one kind and builds the display
// mapping for the time-valued ones. It never fails: labels that do not
// parse fall through to the fiscal-year check and then to categorical.
func (c Classifier) Classify(labels []string) *Classification {
	result := &Classification{
		Display:     make(map[string]string),
		TimeLabels:  make([]string, 0),
		Categorical: make([]string, 0),
		Kinds:       make(map[string]Kind, len(labels)),
	}

	addTime := func(display, label string) {
		if prev, exists := result.Display[display]; exists {
			if prev != label {
				result.Collisions = append(result.Collisions, Collision{Display: display, Dropped: prev, Kept: label})
			}
		} else {
			result.TimeLabels = append(result.TimeLabels, display)
		}
		result.Display[display] = label
	}

	for _, label := range labels {
		if parsed, ok := c.ParseDate(label); ok {
			result.Kinds[label] = KindDate
			addTime(parsed.Format(DisplayLayout), label)
			continue
		}
		if IsFiscalYear(label) {
			result.Kinds[label] = KindFiscalYear
			addTime(label, label)
			continue
		}
		result.Kinds[label] = KindCategorical
		result.Categorical = append(result.Categorical, label)
	}

	return result
}

// IsFiscalYear reports whether the label starts with "FY", ignoring case
func IsFiscalYear(label string) bool {
	return strings.HasPrefix(strings.ToUpper(label), "FY")
}

func (c Classifier) currentYear() int {
	if c.Now != nil {
		return c.Now().Year()
	}
	return time.Now().Year()
}

// ParseDate tries, in order, a month-year form ("Apr-25"), an Excel serial
// day number and then a general date parse. Labels without a digit are never
// dates. A date without a year takes the current year.
func (c Classifier) ParseDate(label string) (time.Time, bool) {
	s := strings.TrimSpace(label)
	if s == "" || !digitRe.MatchString(s) {
		return time.Time{}, false
	}

	for _, layout := range monthYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if excelSerialRe.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	if IsFiscalYear(s) {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(!c.DayFirst))
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() == 0 {
		t = time.Date(c.currentYear(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return t, true
}
