package render

import (
	"fmt"
	"io"
	"strings"

	"flowdash/domain/flow"
	"flowdash/internal/errors"
	"flowdash/ports"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// EChartsRenderer draws the diagram with go-echarts. Layout and colors are
// left to the charting library.
type EChartsRenderer struct{}

// NewEChartsRenderer creates the charting-library renderer
func NewEChartsRenderer() *EChartsRenderer {
	return &EChartsRenderer{}
}

// Name implements ports.Renderer
func (r *EChartsRenderer) Name() string {
	return "echarts"
}

// Render implements ports.Renderer. Links reference nodes by name; node
// totals only appear in the labels so they never affect node heights.
func (r *EChartsRenderer) Render(w io.Writer, ds *flow.Dataset, o ports.RenderOptions) error {
	if ds.IsEmpty() {
		return writePlaceholder(w, o)
	}

	sankey := charts.NewSankey()
	sankey.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			Width:     "100%",
			Height:    fmt.Sprintf("%dpx", height(o)),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.Title,
			Subtitle: strings.Join(o.Warnings, "\n"),
		}),
	)

	nodes := make([]opts.SankeyNode, len(ds.Nodes))
	for i, n := range ds.Nodes {
		nodes[i] = opts.SankeyNode{Name: n.Name}
	}
	// SankeyLink.Value is float32, so magnitudes past ~7 significant digits
	// are rounded in this backend. The d3 backend keeps float64.
	links := make([]opts.SankeyLink, len(ds.Links))
	for i, l := range ds.Links {
		links[i] = opts.SankeyLink{
			Source: ds.Nodes[l.Source].Name,
			Target: ds.Nodes[l.Target].Name,
			Value:  float32(l.Value),
		}
	}

	sankey.AddSeries("flows", nodes, links,
		charts.WithLabelOpts(opts.Label{
			Show:      true,
			Formatter: nodeLabelFormatter(ds, o),
		}),
	)
	if err := sankey.Render(w); err != nil {
		return errors.Wrap(err, "failed to render echarts sankey")
	}
	return nil
}

// jsUnsafe strips characters that cannot sit inside a single-quoted JS
// string once go-echarts has JSON-encoded the formatter source
var jsUnsafe = strings.NewReplacer(`\`, "", `'`, "", `"`, "", "\n", " ", "\r", " ", "<", "", ">", "")

// nodeLabelFormatter returns a JS label formatter printing "name\ntotal unit"
// for each node, looked up by the node's data index
func nodeLabelFormatter(ds *flow.Dataset, o ports.RenderOptions) string {
	totals := make([]string, len(ds.Nodes))
	for i, n := range ds.Nodes {
		totals[i] = "'" + jsUnsafe.Replace(FormatTotal(n.Total, o)) + "'"
	}
	return opts.FuncOpts(fmt.Sprintf(
		"function (p) { var totals = [%s]; if (p.dataType === 'edge') { return ''; } return p.name + String.fromCharCode(10) + totals[p.dataIndex]; }",
		strings.Join(totals, ", "),
	))
}
