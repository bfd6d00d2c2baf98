package flow

import (
	"flowdash/domain/table"
	"flowdash/internal/errors"
)

// Aggregate builds the diagram dataset for one column choice. All three
// columns must exist in t; value is the table header, not a display label.
//
// Rows whose value coerces to <= 0 (non-numeric cells coerce to 0) and rows
// whose source equals their target are dropped. Nodes are numbered in
// order of first appearance while scanning rows, source before target, and
// links keep row order. An empty table or a fully filtered one yields an
// empty dataset, not an error.
func Aggregate(t *table.Table, source, target, value string) (*Dataset, error) {
	srcIdx, err := columnIndex(t, source)
	if err != nil {
		return nil, err
	}
	tgtIdx, err := columnIndex(t, target)
	if err != nil {
		return nil, err
	}
	valIdx, err := columnIndex(t, value)
	if err != nil {
		return nil, err
	}

	ds := Empty()
	index := make(map[string]int)
	nodeFor := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		i := len(ds.Nodes)
		index[name] = i
		ds.Nodes = append(ds.Nodes, Node{Name: name})
		return i
	}

	for _, row := range t.Rows {
		v := CoerceMagnitude(row[valIdx])
		if v <= 0 {
			continue
		}
		src, tgt := row[srcIdx], row[tgtIdx]
		if src == tgt {
			continue
		}

		s := nodeFor(src)
		d := nodeFor(tgt)
		ds.Nodes[s].Total += v
		ds.Nodes[d].Total += v
		ds.Links = append(ds.Links, Link{Source: s, Target: d, Value: v})
	}

	for i := range ds.Nodes {
		ds.Nodes[i].Value = round3(ds.Nodes[i].Total)
	}

	return ds, nil
}

func columnIndex(t *table.Table, name string) (int, error) {
	if t == nil {
		return -1, errors.NoData()
	}
	idx := t.ColumnIndex(name)
	if name == "" || idx < 0 {
		return -1, errors.MissingColumn(name)
	}
	return idx, nil
}
