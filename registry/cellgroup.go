package registry

import (
	"encoding/json"
	"fmt"
)

// CellGroupKind tags the variant held by a CellGroup.
type CellGroupKind int

const (
	KindIndices CellGroupKind = iota
	KindRange
	KindMulti
)

// CellGroup is a set of EEPROM cells: an explicit index list, a half-open
// range, or a concatenation of groups. Order is significant.
type CellGroup struct {
	Kind    CellGroupKind
	Indices []int
	Start   int
	Stop    int // exclusive
	Groups  []CellGroup
}

// Indices builds an explicit list group.
func Indices(cells ...int) CellGroup {
	return CellGroup{Kind: KindIndices, Indices: append([]int(nil), cells...)}
}

// Range builds the group [start, stop).
func Range(start, stop int) CellGroup {
	return CellGroup{Kind: KindRange, Start: start, Stop: stop}
}

// Multi concatenates groups in order.
func Multi(groups ...CellGroup) CellGroup {
	return CellGroup{Kind: KindMulti, Groups: append([]CellGroup(nil), groups...)}
}

// Cells flattens the group into an ordered index list.
func (g CellGroup) Cells() []int {
	switch g.Kind {
	case KindRange:
		if g.Stop <= g.Start {
			return nil
		}
		out := make([]int, 0, g.Stop-g.Start)
		for c := g.Start; c < g.Stop; c++ {
			out = append(out, c)
		}
		return out
	case KindMulti:
		var out []int
		for _, sub := range g.Groups {
			out = append(out, sub.Cells()...)
		}
		return out
	default:
		return append([]int(nil), g.Indices...)
	}
}

// IsEmpty reports whether the group names no cells.
func (g CellGroup) IsEmpty() bool {
	return len(g.Cells()) == 0
}

// Clone returns a deep copy.
func (g CellGroup) Clone() CellGroup {
	out := CellGroup{Kind: g.Kind, Start: g.Start, Stop: g.Stop}
	if g.Indices != nil {
		out.Indices = append([]int(nil), g.Indices...)
	}
	for _, sub := range g.Groups {
		out.Groups = append(out.Groups, sub.Clone())
	}
	return out
}

// MarshalJSON renders the flattened cell list.
func (g CellGroup) MarshalJSON() ([]byte, error) {
	cells := g.Cells()
	if cells == nil {
		cells = []int{}
	}
	return json.Marshal(cells)
}

// parseCellGroup accepts an int list, a {range = [start, stop]} table, or a
// list mixing ints and range tables.
func parseCellGroup(v any) (CellGroup, error) {
	if m, ok := asMap(v); ok {
		return parseRange(m)
	}

	list, ok := asList(v)
	if !ok {
		if n, ok := toInt(v); ok {
			return Indices(n), nil
		}
		return CellGroup{}, fmt.Errorf("unsupported cell group %T", v)
	}

	var groups []CellGroup
	var run []int
	mixed := false
	for i, item := range list {
		if n, ok := toInt(item); ok {
			if n < 0 {
				return CellGroup{}, fmt.Errorf("negative cell %d at position %d", n, i)
			}
			run = append(run, n)
			continue
		}
		m, ok := asMap(item)
		if !ok {
			return CellGroup{}, fmt.Errorf("unsupported cell group element %T at position %d", item, i)
		}
		r, err := parseRange(m)
		if err != nil {
			return CellGroup{}, err
		}
		mixed = true
		if len(run) > 0 {
			groups = append(groups, Indices(run...))
			run = nil
		}
		groups = append(groups, r)
	}

	if !mixed {
		return Indices(run...), nil
	}
	if len(run) > 0 {
		groups = append(groups, Indices(run...))
	}
	return Multi(groups...), nil
}

func parseRange(m map[string]any) (CellGroup, error) {
	raw, ok := m[KeyRange]
	if !ok {
		return CellGroup{}, fmt.Errorf("cell group table without %q", KeyRange)
	}
	bounds, ok := asList(raw)
	if !ok || len(bounds) != 2 {
		return CellGroup{}, fmt.Errorf("range must be [start, stop]")
	}
	start, ok1 := toInt(bounds[0])
	stop, ok2 := toInt(bounds[1])
	if !ok1 || !ok2 || start < 0 || stop < start {
		return CellGroup{}, fmt.Errorf("invalid range %v", bounds)
	}
	return Range(start, stop), nil
}
