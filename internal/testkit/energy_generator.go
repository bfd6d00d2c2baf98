// Package testkit generates deterministic sample flow tables for tests,
// the CLI and the server's demo mode.
package testkit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strconv"

	"flowdash/domain/table"

	"github.com/xuri/excelize/v2"
)

// EnergyGeneratorConfig configures the energy flow generator
type EnergyGeneratorConfig struct {
	Plants    []string `json:"plants"`
	Materials []string `json:"materials"`
	// Periods are the value column labels, in any format the classifier
	// accepts
	Periods []string `json:"periods"`
	// NoiseRows adds rows that aggregation must drop (self-loops, zeros,
	// negatives, text)
	NoiseRows bool  `json:"noise_rows"`
	Seed      int64 `json:"seed"`
}

// DefaultEnergyConfig returns the sample used by demo mode
func DefaultEnergyConfig() EnergyGeneratorConfig {
	return EnergyGeneratorConfig{
		Plants:    []string{"P1", "P2"},
		Materials: []string{"Coal", "Gas", "Biomass"},
		Periods:   []string{"2025-04-01", "May-25", "FY25", "FY26"},
		NoiseRows: true,
		Seed:      42,
	}
}

// stage is one hop of the process chain every material flows through
type stage struct {
	target string
	share  float64
}

var chain = []stage{
	{target: "Boiler", share: 1.0},
	{target: "Turbine", share: 0.8},
	{target: "Grid", share: 0.65},
}

// EnergyDataGenerator builds Source/Target/Plant/Material flow tables
type EnergyDataGenerator struct {
	config EnergyGeneratorConfig
	rng    *rand.Rand
}

// NewEnergyDataGenerator creates a new generator
func NewEnergyDataGenerator(config EnergyGeneratorConfig) *EnergyDataGenerator {
	return &EnergyDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Headers returns the generated table's column labels
func (g *EnergyDataGenerator) Headers() []string {
	headers := []string{"Source", "Target", "Plant", "Material"}
	return append(headers, g.config.Periods...)
}

// Generate builds the table. Each material of each plant flows from its
// supply node through the chain; losses shrink the flow at every stage.
func (g *EnergyDataGenerator) Generate() *table.Table {
	var rows [][]string
	for _, plant := range g.config.Plants {
		for _, material := range g.config.Materials {
			base := 100000 + g.rng.Float64()*400000
			source := material + " Supply"
			for _, st := range chain {
				row := []string{source, st.target, plant, material}
				for range g.config.Periods {
					v := base * st.share * (0.9 + g.rng.Float64()*0.2)
					row = append(row, strconv.FormatFloat(float64(int64(v*100))/100, 'f', -1, 64))
				}
				rows = append(rows, row)
				source = st.target
			}
		}
	}

	if g.config.NoiseRows {
		rows = append(rows, g.noiseRows()...)
	}
	return table.New(g.Headers(), rows)
}

func (g *EnergyDataGenerator) noiseRows() [][]string {
	plant := g.config.Plants[0]
	material := g.config.Materials[0]
	filler := func(v string) []string {
		cells := make([]string, len(g.config.Periods))
		for i := range cells {
			cells[i] = v
		}
		return cells
	}
	return [][]string{
		append([]string{"Boiler", "Boiler", plant, material}, filler("500")...),
		append([]string{"Grid", "Export", plant, material}, filler("0")...),
		append([]string{"Grid", "Storage", plant, material}, filler("-25")...),
		append([]string{"Grid", "Losses", plant, material}, filler("n/a")...),
	}
}

// CSV encodes a table as comma-separated text
func CSV(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Workbook encodes tables as an xlsx file, one sheet per entry in order
func Workbook(sheets []string, tables []*table.Table) ([]byte, error) {
	if len(sheets) != len(tables) || len(sheets) == 0 {
		return nil, fmt.Errorf("need one table per sheet, got %d sheets and %d tables", len(sheets), len(tables))
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		if err := writeSheet(f, name, tables[i]); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, t *table.Table) error {
	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				cells[i] = n
			} else {
				cells[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

// EnergyTable is the default sample table
func EnergyTable() *table.Table {
	return NewEnergyDataGenerator(DefaultEnergyConfig()).Generate()
}
