// Package cache holds the last-fetched employee collection and the state
// lookup list. The employee snapshot is always replaced whole; there are no
// delta updates.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gartstein/employees/internal/employees/models"
	"go.uber.org/zap"
)

// Fetcher retrieves the full employee collection from the remote API.
type Fetcher interface {
	ListEmployees(ctx context.Context) ([]models.Employee, error)
}

// Snapshot is an immutable copy of the cached collection.
type Snapshot struct {
	Employees []models.Employee
	// Version increases every time a fetched collection is applied.
	Version uint64
}

// Cache is the collection cache. Concurrent loads are tagged with sequence
// numbers and a response older than the latest applied one is discarded.
type Cache struct {
	fetcher Fetcher
	logger  *zap.Logger

	issued atomic.Uint64

	mu       sync.RWMutex
	applied  uint64
	version  uint64
	snapshot []models.Employee
}

// New constructs an empty Cache.
func New(fetcher Fetcher, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		logger:  logger.Named("employee_cache"),
	}
}

// Load fetches the collection and replaces the snapshot. Failures are logged
// and leave the previous snapshot in place.
func (c *Cache) Load(ctx context.Context) {
	seq := c.issued.Add(1)

	employees, err := c.fetcher.ListEmployees(ctx)
	if err != nil {
		c.logger.Error("Error loading employees", zap.Error(err), zap.Uint64("seq", seq))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		c.logger.Debug("Discarding stale employee response",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", c.applied),
		)
		return
	}
	c.applied = seq
	c.version++
	c.snapshot = employees
	c.logger.Debug("Employee snapshot applied",
		zap.Uint64("seq", seq),
		zap.Uint64("version", c.version),
		zap.Int("count", len(employees)),
	)
}

// Reload re-fetches the collection after a mutation.
func (c *Cache) Reload(ctx context.Context) {
	c.Load(ctx)
}

// Snapshot returns a copy of the cached collection.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	employees := make([]models.Employee, len(c.snapshot))
	copy(employees, c.snapshot)
	return Snapshot{Employees: employees, Version: c.version}
}

// Find returns the cached record with the given id.
func (c *Cache) Find(id int64) (models.Employee, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, emp := range c.snapshot {
		if emp.ID == id {
			return emp, true
		}
	}
	return models.Employee{}, false
}
