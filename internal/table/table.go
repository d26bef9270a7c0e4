// AngelaMos | 2026
// table.go

// Package table derives the visible rows of a collection from a search
// query, per-column filters, a single sort column, pagination and a row
// selection. Compute is pure: the same rows and State always produce the
// same View.
package table

import (
	"slices"
	"strings"
)

// Column describes one filterable and/or sortable column. A nil Filter or
// Compare disables that capability.
type Column[T any] struct {
	ID      string
	Filter  func(row T, value any) bool
	Compare func(a, b T) int
}

type Table[T any] struct {
	RowID   func(row T) string
	Search  func(row T, query string) bool
	Columns []Column[T]
}

type View[T any] struct {
	Rows      []T
	Filtered  []T
	Selected  []T
	Total     int
	PageIndex int
	PageSize  int
	PageCount int

	AllPageRowsSelected  bool
	SomePageRowsSelected bool
	CanPrevious          bool
	CanNext              bool
}

func (t *Table[T]) Column(id string) (Column[T], bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column[T]{}, false
}

func (t *Table[T]) Sortable(id string) bool {
	c, ok := t.Column(id)
	return ok && c.Compare != nil
}

func (t *Table[T]) Filterable(id string) bool {
	c, ok := t.Column(id)
	return ok && c.Filter != nil
}

// Compute filters, sorts and paginates rows. Filters are conjunctive, so
// the order in which they were set has no effect. Filters on unknown or
// non-filterable columns are ignored.
func (t *Table[T]) Compute(rows []T, s State) View[T] {
	filtered := t.filter(rows, s)
	t.sort(filtered, s.Sort)

	size := s.pageSize()
	pages := max((len(filtered)+size-1)/size, 1)
	index := min(max(s.PageIndex, 0), pages-1)

	lo := min(index*size, len(filtered))
	hi := min(lo+size, len(filtered))
	page := filtered[lo:hi:hi]

	v := View[T]{
		Rows:        page,
		Filtered:    filtered,
		Total:       len(rows),
		PageIndex:   index,
		PageSize:    size,
		PageCount:   pages,
		CanPrevious: index > 0,
		CanNext:     index < pages-1,
	}

	for _, row := range filtered {
		if s.Selected[t.RowID(row)] {
			v.Selected = append(v.Selected, row)
		}
	}

	selectedOnPage := 0
	for _, row := range page {
		if s.Selected[t.RowID(row)] {
			selectedOnPage++
		}
	}
	v.AllPageRowsSelected = len(page) > 0 && selectedOnPage == len(page)
	v.SomePageRowsSelected = selectedOnPage > 0 && !v.AllPageRowsSelected

	return v
}

// ToggleAllPageRows selects or deselects the rows on the current page only.
// Rows on other pages, and rows hidden by filters, keep their selection.
func (t *Table[T]) ToggleAllPageRows(rows []T, s State, selected bool) State {
	v := t.Compute(rows, s)
	for _, row := range v.Rows {
		s = s.SelectRow(t.RowID(row), selected)
	}
	return s
}

// SelectedIDs returns the ids of selected rows that pass the current
// filters, in display order.
func (t *Table[T]) SelectedIDs(rows []T, s State) []string {
	v := t.Compute(rows, s)
	ids := make([]string, 0, len(v.Selected))
	for _, row := range v.Selected {
		ids = append(ids, t.RowID(row))
	}
	return ids
}

func (t *Table[T]) filter(rows []T, s State) []T {
	query := strings.TrimSpace(s.Search)

	type active struct {
		fn    func(T, any) bool
		value any
	}
	var filters []active
	for id, value := range s.Filters {
		if c, ok := t.Column(id); ok && c.Filter != nil {
			filters = append(filters, active{fn: c.Filter, value: value})
		}
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if query != "" && t.Search != nil && !t.Search(row, query) {
			continue
		}
		keep := true
		for _, f := range filters {
			if !f.fn(row, f.value) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

func (t *Table[T]) sort(rows []T, s Sort) {
	if !s.Active() {
		return
	}
	c, ok := t.Column(s.Column)
	if !ok || c.Compare == nil {
		return
	}

	cmp := c.Compare
	if s.Direction == Descending {
		cmp = func(a, b T) int { return c.Compare(b, a) }
	}
	slices.SortStableFunc(rows, cmp)
}
