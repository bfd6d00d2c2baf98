// Package flow turns a table and a (source, target, value) column choice
// into the node and link structure every Sankey renderer consumes.
package flow

import (
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Node is a distinct source or target value of at least one link
type Node struct {
	Name string `json:"name"`
	// Value is the total incident flow rounded to 3 decimals
	Value float64 `json:"value"`
	// Total keeps the unrounded sum
	Total float64 `json:"-"`
}

// Link is one surviving row: indices into Dataset.Nodes and its magnitude
type Link struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
}

// Dataset is the renderer-independent diagram payload
type Dataset struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Empty returns a dataset with no nodes and no links
func Empty() *Dataset {
	return &Dataset{Nodes: []Node{}, Links: []Link{}}
}

// IsEmpty reports whether there is nothing to draw
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.Links) == 0
}

// NodeIndex returns the index of the named node, or -1
func (d *Dataset) NodeIndex(name string) int {
	for i, n := range d.Nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

// Summary describes a dataset in a few numbers
type Summary struct {
	NodeCount int     `json:"node_count"`
	LinkCount int     `json:"link_count"`
	TotalFlow float64 `json:"total_flow"`
	MaxLink   float64 `json:"max_link"`
	MeanLink  float64 `json:"mean_link"`
}

// Summary computes link statistics. An empty dataset yields zeros.
func (d *Dataset) Summary() Summary {
	s := Summary{NodeCount: len(d.Nodes), LinkCount: len(d.Links)}
	if len(d.Links) == 0 {
		return s
	}

	values := make(stats.Float64Data, len(d.Links))
	for i, l := range d.Links {
		values[i] = l.Value
	}
	s.TotalFlow, _ = values.Sum()
	s.MaxLink, _ = values.Max()
	s.MeanLink, _ = values.Mean()
	s.TotalFlow = round3(s.TotalFlow)
	s.MeanLink = round3(s.MeanLink)
	return s
}

// Cycles returns the groups of nodes that form directed cycles. Layered
// Sankey layouts cannot place such nodes, so renderers warn about them.
// Each group lists node names in index order; groups are ordered by their
// first node.
func (d *Dataset) Cycles() [][]string {
	if d.IsEmpty() {
		return nil
	}

	g := simple.NewDirectedGraph()
	for i := range d.Nodes {
		g.AddNode(simple.Node(i))
	}
	for _, l := range d.Links {
		if l.Source == l.Target || g.HasEdgeFromTo(int64(l.Source), int64(l.Target)) {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(l.Source), simple.Node(l.Target)))
	}

	var groups [][]int
	for _, component := range topo.TarjanSCC(g) {
		if len(component) < 2 {
			continue
		}
		ids := make([]int, len(component))
		for i, n := range component {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)
		groups = append(groups, ids)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	cycles := make([][]string, len(groups))
	for i, ids := range groups {
		names := make([]string, len(ids))
		for j, id := range ids {
			names[j] = d.Nodes[id].Name
		}
		cycles[i] = names
	}
	return cycles
}

func round3(v float64) float64 {
	r, err := stats.Round(v, 3)
	if err != nil {
		return v
	}
	return r
}
