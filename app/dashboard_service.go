package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"flowdash/adapters/excel"
	"flowdash/adapters/render"
	"flowdash/domain/columns"
	"flowdash/domain/flow"
	"flowdash/domain/table"
	"flowdash/internal"
	"flowdash/internal/config"
	"flowdash/internal/errors"
	"flowdash/internal/session"
	"flowdash/ports"

	"golang.org/x/sync/errgroup"
)

var logger = internal.DefaultLogger.With("DashboardService")

// Diagram heights in pixels
const (
	OverallHeight  = 1200
	FilteredHeight = 600
)

// OverallTitle is the title of the unfiltered diagram
const OverallTitle = "Sankey Diagram for Energy"

// DashboardOptions configures the dashboard service
type DashboardOptions struct {
	FilterColumns   []string
	Unit            string
	UnitDivisor     float64
	DayFirst        bool
	DefaultRenderer string
}

// OptionsFromConfig builds DashboardOptions from the application config
func OptionsFromConfig(cfg config.SankeyConfig) DashboardOptions {
	return DashboardOptions{
		FilterColumns:   cfg.FilterColumns,
		Unit:            cfg.Unit,
		UnitDivisor:     cfg.UnitDivisor,
		DayFirst:        cfg.DayFirst,
		DefaultRenderer: cfg.DefaultRenderer,
	}
}

// DashboardService drives every dashboard interaction: upload, sheet
// selection, column classification, filtering, aggregation and rendering.
// Each operation recomputes from the session's table and holds no state
// of its own.
type DashboardService struct {
	options    DashboardOptions
	classifier columns.Classifier
	renderers  *render.Registry
	uploads    ports.UploadRepository
}

// NewDashboardService creates a dashboard service. uploads may be nil when
// no history database is configured.
func NewDashboardService(options DashboardOptions, renderers *render.Registry, uploads ports.UploadRepository) *DashboardService {
	if options.DefaultRenderer == "" {
		options.DefaultRenderer = "d3"
	}
	return &DashboardService{
		options:    options,
		classifier: columns.Classifier{DayFirst: options.DayFirst},
		renderers:  renderers,
		uploads:    uploads,
	}
}

// Options returns the service configuration
func (s *DashboardService) Options() DashboardOptions {
	return s.options
}

// RendererNames lists the available diagram backends
func (s *DashboardService) RendererNames() []string {
	return s.renderers.Names()
}

// HistoryEnabled reports whether uploads are recorded
func (s *DashboardService) HistoryEnabled() bool {
	return s.uploads != nil
}

// LoadUpload parses an upload into a fresh session state. Workbooks load
// their first sheet; the other sheets stay selectable.
func (s *DashboardService) LoadUpload(fileName string, data []byte) (session.State, error) {
	startTime := time.Now()

	reader, err := excel.NewDataReader(fileName, data)
	if err != nil {
		return session.State{}, err
	}

	sheets, err := reader.SheetNames()
	if err != nil {
		return session.State{}, err
	}

	sheet := ""
	if len(sheets) > 0 {
		sheet = sheets[0]
	}
	tbl, err := reader.ReadTable(sheet)
	if err != nil {
		return session.State{}, err
	}

	logger.Info("Loaded %s (%d sheets, %d rows) in %s", fileName, len(sheets), tbl.RowCount(), time.Since(startTime))
	return session.State{
		Reader:     reader,
		Sheets:     sheets,
		Sheet:      sheet,
		Table:      tbl,
		UploadedAt: time.Now(),
	}, nil
}

// SelectSheet replaces the state's table with another sheet of the same
// workbook
func (s *DashboardService) SelectSheet(st *session.State, sheet string) error {
	if st.Reader == nil {
		return errors.NoData()
	}
	if !st.Reader.Kind().HasSheets() {
		return errors.InvalidInput(fmt.Sprintf("%s has no sheets", st.Reader.FileName()))
	}

	tbl, err := st.Reader.ReadTable(sheet)
	if err != nil {
		return err
	}
	st.Sheet = sheet
	st.Table = tbl
	return nil
}

// RecordUpload stores the upload in the history when a repository is
// configured. Failures are logged and never reach the user.
func (s *DashboardService) RecordUpload(ctx context.Context, sessionID string, st session.State) {
	if s.uploads == nil || !st.Loaded() {
		return
	}
	rec := &ports.UploadRecord{
		SessionID:   sessionID,
		FileName:    st.FileName(),
		Sheet:       st.Sheet,
		RowCount:    st.Table.RowCount(),
		ColumnCount: st.Table.ColumnCount(),
	}
	if err := s.uploads.Record(ctx, rec); err != nil {
		logger.Warn("Failed to record upload %s: %v", st.FileName(), err)
	}
}

// RecentUploads returns the upload history of one session, or of all
// sessions when sessionID is empty
func (s *DashboardService) RecentUploads(ctx context.Context, sessionID string, limit int) ([]*ports.UploadRecord, error) {
	if s.uploads == nil {
		return nil, errors.NotFound("upload history")
	}
	if sessionID == "" {
		return s.uploads.ListRecent(ctx, limit)
	}
	return s.uploads.ListBySession(ctx, sessionID, limit)
}

// ColumnsView is everything the column pickers need
type ColumnsView struct {
	Classification *columns.Classification `json:"classification"`
	Default        columns.Selection       `json:"default"`
	// FilterColumns lists the configured filter columns present in the table
	FilterColumns []string `json:"filter_columns"`
}

// Columns classifies the table's labels
func (s *DashboardService) Columns(tbl *table.Table) (*ColumnsView, error) {
	if tbl == nil {
		return nil, errors.NoData()
	}

	c := s.classifier.Classify(tbl.Headers)
	for _, col := range c.Collisions {
		logger.Warn("Columns %q and %q both display as %s; keeping %q", col.Dropped, col.Kept, col.Display, col.Kept)
	}

	view := &ColumnsView{
		Classification: c,
		Default:        columns.DefaultSelection(c),
		FilterColumns:  make([]string, 0, len(s.options.FilterColumns)),
	}
	for _, name := range s.options.FilterColumns {
		if tbl.HasColumn(name) {
			view.FilterColumns = append(view.FilterColumns, name)
		}
	}
	return view, nil
}

// FilterValues returns the sorted distinct values of a filter column
func (s *DashboardService) FilterValues(tbl *table.Table, column string) ([]string, error) {
	if tbl == nil {
		return nil, errors.NoData()
	}
	return tbl.UniqueValues(column)
}

// FlowRequest asks for one diagram
type FlowRequest struct {
	Selection    columns.Selection
	FilterColumn string
	FilterValue  string
}

// FlowResult is one aggregated diagram and what is needed to render it
type FlowResult struct {
	Title    string        `json:"title"`
	Height   int           `json:"height"`
	Dataset  *flow.Dataset `json:"dataset"`
	Summary  flow.Summary  `json:"summary"`
	Warnings []string      `json:"warnings,omitempty"`
	// ValueColumn is the table header the value selection resolved to
	ValueColumn string `json:"value_column"`
}

// Flow filters the table when a filter is given and aggregates the
// selection. Empty selections fall back to the default picks.
func (s *DashboardService) Flow(tbl *table.Table, req FlowRequest) (*FlowResult, error) {
	if tbl == nil {
		return nil, errors.NoData()
	}

	view, err := s.Columns(tbl)
	if err != nil {
		return nil, err
	}
	sel := mergeSelection(req.Selection, view.Default)
	valueColumn, err := s.resolveValue(tbl, view.Classification, sel.Value)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{sel.Source, sel.Target} {
		if col == "" || !tbl.HasColumn(col) {
			return nil, errors.MissingColumn(col)
		}
	}

	result := &FlowResult{Title: OverallTitle, Height: OverallHeight, ValueColumn: valueColumn}
	rows := tbl
	if req.FilterColumn != "" {
		rows, err = tbl.Filter(req.FilterColumn, req.FilterValue)
		if err != nil {
			return nil, err
		}
		result.Title = "Sankey Diagram for " + req.FilterValue
		result.Height = FilteredHeight
	}

	ds, err := flow.Aggregate(rows, sel.Source, sel.Target, valueColumn)
	if err != nil {
		return nil, err
	}
	result.Dataset = ds
	result.Summary = ds.Summary()
	for _, cycle := range ds.Cycles() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Circular flow between %s cannot be laid out", joinNames(cycle)))
	}

	logger.Debug("Flow %s -> %s by %s (filter %s=%q): %d nodes, %d links",
		sel.Source, sel.Target, valueColumn, req.FilterColumn, req.FilterValue, len(ds.Nodes), len(ds.Links))
	return result, nil
}

// resolveValue maps a display label ("Apr-25") to its header. A real time
// header is accepted as is.
func (s *DashboardService) resolveValue(tbl *table.Table, c *columns.Classification, value string) (string, error) {
	if real, ok := c.Resolve(value); ok {
		return real, nil
	}
	if value != "" && tbl.HasColumn(value) && c.Kinds[value].IsTime() {
		return value, nil
	}
	return "", errors.MissingColumn(value)
}

// FilterPanel is one filtered diagram with its picker state
type FilterPanel struct {
	Column  string      `json:"column"`
	Options []string    `json:"options"`
	Value   string      `json:"value"`
	Flow    *FlowResult `json:"flow,omitempty"`
}

// DashboardView holds the overall diagram and one panel per filter column
type DashboardView struct {
	Columns   *ColumnsView      `json:"columns"`
	Selection columns.Selection `json:"selection"`
	Overall   *FlowResult       `json:"overall"`
	Panels    []*FilterPanel    `json:"panels"`
}

// Dashboard builds the three diagrams of the dashboard view in parallel.
// filters maps a filter column to its chosen value; a missing or unknown
// value selects the column's first option. A cancelled ctx stops diagrams
// that have not started yet.
func (s *DashboardService) Dashboard(ctx context.Context, tbl *table.Table, sel columns.Selection, filters map[string]string) (*DashboardView, error) {
	view, err := s.Columns(tbl)
	if err != nil {
		return nil, err
	}
	sel = mergeSelection(sel, view.Default)

	dash := &DashboardView{Columns: view, Selection: sel}
	for _, column := range view.FilterColumns {
		options, err := tbl.UniqueValues(column)
		if err != nil {
			return nil, err
		}
		panel := &FilterPanel{Column: column, Options: options}
		panel.Value = chooseOption(options, filters[column])
		dash.Panels = append(dash.Panels, panel)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		overall, err := s.Flow(tbl, FlowRequest{Selection: sel})
		dash.Overall = overall
		return err
	})
	for _, panel := range dash.Panels {
		panel := panel
		if panel.Value == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.Flow(tbl, FlowRequest{Selection: sel, FilterColumn: panel.Column, FilterValue: panel.Value})
			panel.Flow = result
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dash, nil
}

// Render draws a flow result with the named renderer, or the default one
// when name is empty
func (s *DashboardService) Render(w io.Writer, rendererName string, result *FlowResult) error {
	if rendererName == "" {
		rendererName = s.options.DefaultRenderer
	}
	renderer, err := s.renderers.Get(rendererName)
	if err != nil {
		return err
	}
	return renderer.Render(w, result.Dataset, ports.RenderOptions{
		Title:       result.Title,
		Height:      result.Height,
		Unit:        s.options.Unit,
		UnitDivisor: s.options.UnitDivisor,
		Warnings:    result.Warnings,
	})
}

func mergeSelection(sel, defaults columns.Selection) columns.Selection {
	if sel.Source == "" {
		sel.Source = defaults.Source
	}
	if sel.Target == "" {
		sel.Target = defaults.Target
	}
	if sel.Value == "" {
		sel.Value = defaults.Value
	}
	return sel
}

func chooseOption(options []string, wanted string) string {
	for _, o := range options {
		if o == wanted {
			return o
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return ""
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	out := ""
	for i, n := range names[:len(names)-1] {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out + " and " + names[len(names)-1]
}
