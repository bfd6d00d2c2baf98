package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"flowdash/adapters/excel"
	"flowdash/adapters/render"
	"flowdash/app"
	"flowdash/domain/columns"
	"flowdash/domain/table"
	"flowdash/internal/testkit"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// diagramFlags are shared by the commands that build a diagram
type diagramFlags struct {
	sheet        string
	source       string
	target       string
	value        string
	filterColumn string
	filterValue  string
	unit         string
	divisor      float64
	dayFirst     bool
}

func (f *diagramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Sheet to load (default: first sheet)")
	cmd.Flags().StringVar(&f.source, "source", "", "Source column (default: Source or first categorical column)")
	cmd.Flags().StringVar(&f.target, "target", "", "Target column (default: Target or second categorical column)")
	cmd.Flags().StringVar(&f.value, "value", "", "Value column, display label or header (default: FY26 or third time column)")
	cmd.Flags().StringVar(&f.filterColumn, "filter-column", "", "Keep only rows where this column equals --filter-value")
	cmd.Flags().StringVar(&f.filterValue, "filter-value", "", "Value for --filter-column")
	cmd.Flags().StringVar(&f.unit, "unit", "MT", "Unit shown in node labels")
	cmd.Flags().Float64Var(&f.divisor, "divisor", 100000, "Node totals are divided by this before labelling")
	cmd.Flags().BoolVar(&f.dayFirst, "day-first", false, "Parse ambiguous numeric dates day first")
}

func (f *diagramFlags) service() *app.DashboardService {
	return app.NewDashboardService(app.DashboardOptions{
		Unit:        f.unit,
		UnitDivisor: f.divisor,
		DayFirst:    f.dayFirst,
	}, render.DefaultRegistry(), nil)
}

func (f *diagramFlags) request() app.FlowRequest {
	return app.FlowRequest{
		Selection:    columns.Selection{Source: f.source, Target: f.target, Value: f.value},
		FilterColumn: f.filterColumn,
		FilterValue:  f.filterValue,
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flowdash-cli",
		Short:         "Inspect flow tables and render Sankey diagrams offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newSheetsCmd(),
		newClassifyCmd(),
		newAggregateCmd(),
		newRenderCmd(),
		newSampleCmd(),
	)
	return rootCmd
}

func loadTable(path, sheet string) (*table.Table, error) {
	reader, err := excel.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return reader.ReadTable(sheet)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [file]",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := excel.OpenFile(args[0])
			if err != nil {
				return err
			}
			sheets, err := reader.SheetNames()
			if err != nil {
				return err
			}
			if len(sheets) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no sheets (%s)\n", reader.FileName(), reader.Kind())
				return nil
			}
			for _, name := range sheets {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	var sheet string
	var dayFirst bool

	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Show which columns are time-valued and which are categorical",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadTable(args[0], sheet)
			if err != nil {
				return err
			}
			c := columns.Classifier{DayFirst: dayFirst}.Classify(tbl.Headers)
			return writeJSON(cmd.OutOrStdout(), struct {
				*columns.Classification
				Default columns.Selection `json:"default"`
			}{c, columns.DefaultSelection(c)})
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to load (default: first sheet)")
	cmd.Flags().BoolVar(&dayFirst, "day-first", false, "Parse ambiguous numeric dates day first")
	return cmd
}

func newAggregateCmd() *cobra.Command {
	var flags diagramFlags

	cmd := &cobra.Command{
		Use:   "aggregate [file]",
		Short: "Print the diagram dataset as JSON",
		Long: `Aggregate a flow table into the {nodes, links} dataset consumed by the renderers.

Example: flowdash-cli aggregate energy.xlsx --sheet Energy --value Apr-25 --filter-column Plant --filter-value P1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadTable(args[0], flags.sheet)
			if err != nil {
				return err
			}
			result, err := flags.service().Flow(tbl, flags.request())
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return writeJSON(cmd.OutOrStdout(), result.Dataset)
		},
	}

	flags.register(cmd)
	return cmd
}

func newRenderCmd() *cobra.Command {
	var flags diagramFlags
	var renderer string
	var out string

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a Sankey diagram to an HTML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadTable(args[0], flags.sheet)
			if err != nil {
				return err
			}
			svc := flags.service()
			result, err := svc.Flow(tbl, flags.request())
			if err != nil {
				return err
			}

			if out == "" {
				return svc.Render(cmd.OutOrStdout(), renderer, result)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := svc.Render(f, renderer, result); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d nodes, %d links)\n", out, result.Summary.NodeCount, result.Summary.LinkCount)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&renderer, "renderer", "d3", "Diagram backend: d3 or echarts")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

func newSampleCmd() *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "sample [file]",
		Short: "Write the sample energy flow table as .csv or .xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := testkit.DefaultEnergyConfig()
			config.Seed = seed
			tbl := testkit.NewEnergyDataGenerator(config).Generate()

			kind, err := excel.DetectKind(args[0])
			if err != nil {
				return err
			}
			var data []byte
			if kind == excel.KindCSV {
				data, err = testkit.CSV(tbl)
			} else {
				data, err = testkit.Workbook([]string{"Energy"}, []*table.Table{tbl})
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d rows)\n", filepath.Base(args[0]), tbl.RowCount())
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for the generated values")
	return cmd
}
