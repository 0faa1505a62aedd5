package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gartstein/employees/internal/employees/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// mockFetcher implements Fetcher and StateFetcher for testing.
type mockFetcher struct {
	listEmployees func(context.Context) ([]models.Employee, error)
	listStates    func(context.Context) ([]models.State, error)
}

func (m *mockFetcher) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	return m.listEmployees(ctx)
}

func (m *mockFetcher) ListStates(ctx context.Context) ([]models.State, error) {
	return m.listStates(ctx)
}

func TestCache_Load(t *testing.T) {
	fetcher := &mockFetcher{
		listEmployees: func(context.Context) ([]models.Employee, error) {
			return []models.Employee{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}}, nil
		},
	}
	c := New(fetcher, zaptest.NewLogger(t))

	assert.Equal(t, uint64(0), c.Snapshot().Version)

	c.Load(context.Background())
	snap := c.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	require.Len(t, snap.Employees, 2)

	found, ok := c.Find(2)
	assert.True(t, ok)
	assert.Equal(t, "Bob", found.Name)
	_, ok = c.Find(3)
	assert.False(t, ok)

	c.Reload(context.Background())
	assert.Equal(t, uint64(2), c.Snapshot().Version)
}

func TestCache_SnapshotIsCopy(t *testing.T) {
	fetcher := &mockFetcher{
		listEmployees: func(context.Context) ([]models.Employee, error) {
			return []models.Employee{{ID: 1, Name: "Alice"}}, nil
		},
	}
	c := New(fetcher, zaptest.NewLogger(t))
	c.Load(context.Background())

	snap := c.Snapshot()
	snap.Employees[0].Name = "Mallory"

	assert.Equal(t, "Alice", c.Snapshot().Employees[0].Name)
}

func TestCache_LoadFailureKeepsSnapshot(t *testing.T) {
	fail := false
	fetcher := &mockFetcher{
		listEmployees: func(context.Context) ([]models.Employee, error) {
			if fail {
				return nil, errors.New("network down")
			}
			return []models.Employee{{ID: 1, Name: "Alice"}}, nil
		},
	}
	core, recorded := observer.New(zap.ErrorLevel)
	c := New(fetcher, zap.New(core))

	c.Load(context.Background())
	fail = true
	c.Load(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	assert.Len(t, snap.Employees, 1)
	assert.Equal(t, 1, recorded.FilterMessage("Error loading employees").Len())
}

func TestCache_DiscardsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	fetcher := &mockFetcher{
		listEmployees: func(context.Context) ([]models.Employee, error) {
			mu.Lock()
			calls++
			call := calls
			mu.Unlock()
			if call == 1 {
				close(started)
				<-release
				return []models.Employee{{ID: 1, Name: "Old"}}, nil
			}
			return []models.Employee{{ID: 1, Name: "New"}}, nil
		},
	}
	core, recorded := observer.New(zap.DebugLevel)
	c := New(fetcher, zap.New(core))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Load(context.Background())
	}()
	<-started

	// The second load is issued later and resolves first.
	c.Load(context.Background())
	close(release)
	<-done

	snap := c.Snapshot()
	assert.Equal(t, "New", snap.Employees[0].Name)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 1, recorded.FilterMessage("Discarding stale employee response").Len())
}

func TestStates_List(t *testing.T) {
	calls := 0
	fetcher := &mockFetcher{
		listStates: func(context.Context) ([]models.State, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("unavailable")
			}
			return []models.State{{ID: 1, StateName: "Kerala"}, {ID: 2, StateName: "Goa"}}, nil
		},
	}
	core, recorded := observer.New(zap.ErrorLevel)
	states := NewStates(fetcher, zap.New(core))
	ctx := context.Background()

	assert.Empty(t, states.List(ctx))
	assert.Equal(t, 1, recorded.FilterMessage("State fetch error").Len())

	assert.Len(t, states.List(ctx), 2)
	assert.Len(t, states.List(ctx), 2)
	assert.Equal(t, 2, calls, "list is fetched once after the first success")

	assert.Equal(t, "Goa", states.Name(ctx, models.StateRef("2")))
	assert.Equal(t, "99", states.Name(ctx, models.StateRef("99")))
	assert.Equal(t, "Atlantis", states.Name(ctx, models.StateRef("Atlantis")))
}
