package render

import (
	"embed"
	"html/template"
	"io"

	"flowdash/domain/flow"
	"flowdash/internal/errors"
	"flowdash/ports"
)

//go:embed templates/*.html
var templateFiles embed.FS

var d3Template = template.Must(template.ParseFS(templateFiles, "templates/d3_sankey.html"))

// D3Renderer ships the dataset to d3-sankey in the browser. The page lays
// the diagram out client side and offers an SVG export button.
type D3Renderer struct {
	tmpl *template.Template
}

// NewD3Renderer creates the browser-side renderer
func NewD3Renderer() *D3Renderer {
	return &D3Renderer{tmpl: d3Template}
}

// Name implements ports.Renderer
func (r *D3Renderer) Name() string {
	return "d3"
}

type d3Page struct {
	Title    string
	Height   int
	Warnings []string
	Dataset  *flow.Dataset
	Labels   []string
	Colors   []string
}

// Render implements ports.Renderer
func (r *D3Renderer) Render(w io.Writer, ds *flow.Dataset, opts ports.RenderOptions) error {
	if ds.IsEmpty() {
		return writePlaceholder(w, opts)
	}

	colors := make([]string, len(ds.Nodes))
	for i := range ds.Nodes {
		colors[i] = NodeColor(i)
	}

	page := d3Page{
		Title:    opts.Title,
		Height:   height(opts),
		Warnings: opts.Warnings,
		Dataset:  ds,
		Labels:   NodeLabels(ds, opts),
		Colors:   colors,
	}
	if err := r.tmpl.ExecuteTemplate(w, "d3_sankey.html", page); err != nil {
		return errors.Wrap(err, "failed to render d3 sankey")
	}
	return nil
}
