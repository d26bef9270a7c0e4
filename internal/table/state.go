// AngelaMos | 2026
// state.go

package table

import (
	"maps"
)

const DefaultPageSize = 10

type Direction string

const (
	Unsorted   Direction = ""
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

func (d Direction) Valid() bool {
	return d == Unsorted || d == Ascending || d == Descending
}

type Sort struct {
	Column    string
	Direction Direction
}

func (s Sort) Active() bool {
	return s.Column != "" && s.Direction != Unsorted
}

// State is everything a view depends on besides the rows themselves.
// Transitions return a new State and never modify the receiver.
type State struct {
	Search    string
	Filters   map[string]any
	Sort      Sort
	PageIndex int
	PageSize  int
	Selected  map[string]bool
}

func NewState() State {
	return State{PageSize: DefaultPageSize}
}

func (s State) clone() State {
	s.Filters = maps.Clone(s.Filters)
	s.Selected = maps.Clone(s.Selected)
	return s
}

// SetSearch replaces the shared text query and returns to the first page.
func (s State) SetSearch(q string) State {
	s = s.clone()
	s.Search = q
	s.PageIndex = 0
	return s
}

// SetFilter sets the filter value for a column. A nil value clears it.
func (s State) SetFilter(column string, value any) State {
	s = s.clone()
	if value == nil {
		delete(s.Filters, column)
	} else {
		if s.Filters == nil {
			s.Filters = make(map[string]any)
		}
		s.Filters[column] = value
	}
	s.PageIndex = 0
	return s
}

func (s State) ClearFilters() State {
	s = s.clone()
	s.Search = ""
	s.Filters = nil
	s.PageIndex = 0
	return s
}

// ToggleSort cycles column through ascending, descending and unsorted.
// Switching to a different column starts it ascending.
func (s State) ToggleSort(column string) State {
	s = s.clone()
	if s.Sort.Column != column {
		s.Sort = Sort{Column: column, Direction: Ascending}
		return s
	}

	switch s.Sort.Direction {
	case Ascending:
		s.Sort.Direction = Descending
	case Descending:
		s.Sort = Sort{}
	default:
		s.Sort.Direction = Ascending
	}
	return s
}

func (s State) SetSort(column string, dir Direction) State {
	s = s.clone()
	if column == "" || dir == Unsorted {
		s.Sort = Sort{}
	} else {
		s.Sort = Sort{Column: column, Direction: dir}
	}
	return s
}

func (s State) SetPage(index int) State {
	s = s.clone()
	s.PageIndex = max(index, 0)
	return s
}

func (s State) SetPageSize(size int) State {
	s = s.clone()
	s.PageSize = size
	s.PageIndex = 0
	return s
}

func (s State) ToggleRow(id string) State {
	return s.SelectRow(id, !s.Selected[id])
}

func (s State) SelectRow(id string, selected bool) State {
	s = s.clone()
	if selected {
		if s.Selected == nil {
			s.Selected = make(map[string]bool)
		}
		s.Selected[id] = true
	} else {
		delete(s.Selected, id)
	}
	return s
}

// Deselect drops ids from the selection, typically after they were
// deleted.
func (s State) Deselect(ids ...string) State {
	s = s.clone()
	for _, id := range ids {
		delete(s.Selected, id)
	}
	return s
}

func (s State) ClearSelection() State {
	s = s.clone()
	s.Selected = nil
	return s
}

func (s State) IsSelected(id string) bool {
	return s.Selected[id]
}

func (s State) pageSize() int {
	if s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}
