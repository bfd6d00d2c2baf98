// Package render holds the interchangeable Sankey renderers
package render

import (
	"fmt"
	"html/template"
	"io"
	"strconv"

	"flowdash/domain/flow"
	"flowdash/internal/errors"
	"flowdash/ports"

	"github.com/montanaflynn/stats"
)

// Palette is the Plotly qualitative palette; node i gets Palette[i%len]
var Palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// DefaultHeight is used when RenderOptions.Height is unset
const DefaultHeight = 600

// NodeColor returns the palette color for a node index
func NodeColor(i int) string {
	return Palette[i%len(Palette)]
}

// FormatTotal renders a node total scaled by the unit divisor and rounded
// to 3 decimals, e.g. "1.234 MT"
func FormatTotal(total float64, opts ports.RenderOptions) string {
	divisor := opts.UnitDivisor
	if divisor == 0 {
		divisor = 1
	}
	scaled, err := stats.Round(total/divisor, 3)
	if err != nil {
		scaled = total / divisor
	}
	text := strconv.FormatFloat(scaled, 'f', -1, 64)
	if opts.Unit == "" {
		return text
	}
	return text + " " + opts.Unit
}

// NodeLabels returns "name\ntotal unit" for every node
func NodeLabels(ds *flow.Dataset, opts ports.RenderOptions) []string {
	labels := make([]string, len(ds.Nodes))
	for i, n := range ds.Nodes {
		labels[i] = n.Name + "\n" + FormatTotal(n.Total, opts)
	}
	return labels
}

func height(opts ports.RenderOptions) int {
	if opts.Height <= 0 {
		return DefaultHeight
	}
	return opts.Height
}

var placeholderTemplate = template.Must(template.New("placeholder").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif;">
<div class="sankey-empty" style="height: {{.Height}}px; display: flex; align-items: center; justify-content: center; color: #666;">
No data to display{{if .Title}} for {{.Title}}{{end}}
</div>
</body></html>
`))

// writePlaceholder is what every renderer draws for an empty dataset
func writePlaceholder(w io.Writer, opts ports.RenderOptions) error {
	return placeholderTemplate.Execute(w, map[string]interface{}{
		"Title":  opts.Title,
		"Height": height(opts),
	})
}

// Registry looks renderers up by name
type Registry struct {
	renderers map[string]ports.Renderer
	names     []string
}

// NewRegistry registers renderers in the given order
func NewRegistry(renderers ...ports.Renderer) *Registry {
	r := &Registry{renderers: make(map[string]ports.Renderer, len(renderers))}
	for _, renderer := range renderers {
		r.renderers[renderer.Name()] = renderer
		r.names = append(r.names, renderer.Name())
	}
	return r
}

// DefaultRegistry holds the d3 and echarts backends
func DefaultRegistry() *Registry {
	return NewRegistry(NewD3Renderer(), NewEChartsRenderer())
}

// Get returns the named renderer
func (r *Registry) Get(name string) (ports.Renderer, error) {
	renderer, ok := r.renderers[name]
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown renderer %q", name))
	}
	return renderer, nil
}

// Names lists registered renderers in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
