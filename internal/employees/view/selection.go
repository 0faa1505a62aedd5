package view

import "slices"

// Selection tracks checked rows. It is not safe for concurrent use; the
// ViewModel guards it.
type Selection struct {
	ids         []int64
	allSelected bool
}

// Toggle adds id when absent and removes it when present.
func (s *Selection) Toggle(id int64) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return
	}
	s.ids = append(s.ids, id)
}

// SelectAll checks every id on the current page. When the flag is already
// set it clears the selection instead.
func (s *Selection) SelectAll(pageIDs []int64) {
	if s.allSelected {
		s.Clear()
		return
	}
	s.ids = slices.Clone(pageIDs)
	s.allSelected = true
}

// Clear empties the selection and resets the select-all flag.
func (s *Selection) Clear() {
	s.ids = nil
	s.allSelected = false
}

// IDs returns the selected ids in the order they were selected.
func (s *Selection) IDs() []int64 {
	return append([]int64{}, s.ids...)
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id int64) bool {
	return slices.Contains(s.ids, id)
}

// AllSelected reports the select-all flag.
func (s *Selection) AllSelected() bool {
	return s.allSelected
}
