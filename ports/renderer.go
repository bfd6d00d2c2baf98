package ports

import (
	"io"

	"flowdash/domain/flow"
)

// RenderOptions controls presentation only; the dataset alone decides what
// is drawn
type RenderOptions struct {
	Title string
	// Height of the diagram in pixels
	Height int
	// Unit is appended to node totals in labels, e.g. "MT"
	Unit string
	// UnitDivisor scales node totals for labels (totals / divisor)
	UnitDivisor float64
	// Warnings are shown above the diagram
	Warnings []string
}

// Renderer turns a dataset into a self-contained HTML document. An empty
// dataset must render a "no data" placeholder without error.
type Renderer interface {
	Name() string
	Render(w io.Writer, ds *flow.Dataset, opts RenderOptions) error
}
