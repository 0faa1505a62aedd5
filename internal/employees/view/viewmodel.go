package view

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gartstein/employees/internal/employees/cache"
	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/models"
	"go.einride.tech/aip/ordering"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Source supplies cache snapshots.
type Source interface {
	Snapshot() cache.Snapshot
}

// State is the rendered view: the current page, the query that produced it
// and the selection over it.
type State struct {
	Query       Query   `json:"query"`
	Page        Page    `json:"page"`
	Selected    []int64 `json:"selected"`
	AllSelected bool    `json:"allSelected"`
	Version     uint64  `json:"version"`
}

// ViewModel owns the query and selection state over a cache. All methods
// are safe for concurrent use.
type ViewModel struct {
	source Source
	lang   language.Tag
	logger *zap.Logger

	mu        sync.Mutex
	query     Query
	selection Selection
	version   uint64
}

// NewViewModel constructs a ViewModel with an empty query.
func NewViewModel(source Source, lang language.Tag, logger *zap.Logger) *ViewModel {
	return &ViewModel{
		source: source,
		lang:   lang,
		logger: logger.Named("view_model"),
		query:  Query{Direction: Ascending},
	}
}

// State projects the current snapshot.
func (vm *ViewModel) State() State {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stateLocked(snap)
}

// SetSearch replaces the search text and returns to the first page.
func (vm *ViewModel) SetSearch(search string) State {
	return vm.update(func(q *Query) {
		q.Search = search
		q.Page = 0
	})
}

// SortBy sorts by column and returns to the first page. Repeating the
// current column flips the direction; a new column starts ascending.
func (vm *ViewModel) SortBy(column Column) State {
	return vm.update(func(q *Query) {
		q.Page = 0
		if q.Column == column && column != ColumnNone {
			if q.Direction == Ascending {
				q.Direction = Descending
			} else {
				q.Direction = Ascending
			}
			return
		}
		q.Column = column
		q.Direction = Ascending
	})
}

// SetOrder applies an order_by expression such as "salary desc" and returns
// to the first page. Only a single field is supported. An empty expression
// restores fetch order.
func (vm *ViewModel) SetOrder(orderBy string) (State, error) {
	var parsed ordering.OrderBy
	if err := parsed.UnmarshalString(orderBy); err != nil {
		return State{}, fmt.Errorf("%w: order_by %q: %v", e.ErrInvalidInput, orderBy, err)
	}
	if len(parsed.Fields) > 1 {
		return State{}, fmt.Errorf("%w: order_by supports a single field", e.ErrInvalidInput)
	}

	column, dir := ColumnNone, Ascending
	if len(parsed.Fields) == 1 {
		field := parsed.Fields[0]
		c, err := ParseColumn(field.Path)
		if err != nil {
			return State{}, err
		}
		column = c
		if field.Desc {
			dir = Descending
		}
	}

	return vm.update(func(q *Query) {
		q.Column = column
		q.Direction = dir
		q.Page = 0
	}), nil
}

// NextPage advances one page when a next page exists.
func (vm *ViewModel) NextPage() State {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.syncVersion(snap.Version)
	if Project(snap.Employees, vm.query, vm.lang).HasNext {
		vm.query.Page++
		vm.selection.Clear()
	}
	return vm.stateLocked(snap)
}

// PreviousPage goes back one page unless already on the first.
func (vm *ViewModel) PreviousPage() State {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.syncVersion(snap.Version)
	if vm.query.Page > 0 {
		vm.query.Page--
		vm.selection.Clear()
	}
	return vm.stateLocked(snap)
}

// Toggle flips the selection of a row on the current page. Ids that are not
// on the page are rejected with ErrInvalidInput.
func (vm *ViewModel) Toggle(id int64) (State, error) {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	current := vm.stateLocked(snap)
	if !slices.Contains(current.Page.IDs(), id) {
		return current, fmt.Errorf("%w: employee %d is not on the current page", e.ErrInvalidInput, id)
	}
	vm.selection.Toggle(id)
	return vm.stateLocked(snap), nil
}

// SelectAll selects every row on the current page, or clears the selection
// when select-all is already active.
func (vm *ViewModel) SelectAll() State {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.syncVersion(snap.Version)
	page := Project(snap.Employees, vm.query, vm.lang)
	vm.selection.SelectAll(page.IDs())
	return vm.stateLocked(snap)
}

// Selected returns the selected ids in selection order.
func (vm *ViewModel) Selected() []int64 {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.syncVersion(snap.Version)
	return vm.selection.IDs()
}

// ClearSelection empties the selection.
func (vm *ViewModel) ClearSelection() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.selection.Clear()
}

// Ordered returns every row matching the current query, sorted, unpaginated.
func (vm *ViewModel) Ordered() []models.Employee {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	q := vm.query
	vm.mu.Unlock()
	return Ordered(snap.Employees, q, vm.lang)
}

func (vm *ViewModel) update(mutate func(q *Query)) State {
	snap := vm.source.Snapshot()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.syncVersion(snap.Version)
	before := vm.query
	mutate(&vm.query)
	if vm.query != before {
		vm.selection.Clear()
		vm.logger.Debug("View query changed",
			zap.String("search", vm.query.Search),
			zap.String("column", string(vm.query.Column)),
			zap.String("direction", string(vm.query.Direction)),
			zap.Int("page", vm.query.Page),
		)
	}
	return vm.stateLocked(snap)
}

// syncVersion resets the selection when a new snapshot has been applied.
func (vm *ViewModel) syncVersion(version uint64) {
	if version == vm.version {
		return
	}
	vm.version = version
	vm.selection.Clear()
}

func (vm *ViewModel) stateLocked(snap cache.Snapshot) State {
	vm.syncVersion(snap.Version)
	page := Project(snap.Employees, vm.query, vm.lang)
	// A reload can shrink the collection below the current page.
	if page.Index > 0 && len(page.Rows) == 0 {
		vm.query.Page = max((page.TotalFiltered-1)/PageSize, 0)
		vm.selection.Clear()
		page = Project(snap.Employees, vm.query, vm.lang)
	}
	return State{
		Query:       vm.query,
		Page:        page,
		Selected:    vm.selection.IDs(),
		AllSelected: vm.selection.AllSelected(),
		Version:     vm.version,
	}
}
