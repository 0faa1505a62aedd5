package cache

import (
	"context"
	"sync"

	"github.com/gartstein/employees/internal/employees/models"
	"go.uber.org/zap"
)

// StateFetcher retrieves the state lookup list.
type StateFetcher interface {
	ListStates(ctx context.Context) ([]models.State, error)
}

// States is the read-only state directory. The list is fetched once and
// kept after the first successful response.
type States struct {
	fetcher StateFetcher
	logger  *zap.Logger

	mu     sync.Mutex
	loaded bool
	states []models.State
}

// NewStates constructs an empty state directory.
func NewStates(fetcher StateFetcher, logger *zap.Logger) *States {
	return &States{
		fetcher: fetcher,
		logger:  logger.Named("state_directory"),
	}
}

// List returns the state list, fetching it on first use. A failed fetch is
// logged and yields an empty list.
func (s *States) List(ctx context.Context) []models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		states, err := s.fetcher.ListStates(ctx)
		if err != nil {
			s.logger.Error("State fetch error", zap.Error(err))
			return []models.State{}
		}
		s.states = states
		s.loaded = true
	}
	out := make([]models.State, len(s.states))
	copy(out, s.states)
	return out
}

// Name resolves a state reference to its display name. Unknown references
// resolve to the raw reference text.
func (s *States) Name(ctx context.Context, ref models.StateRef) string {
	id, ok := ref.ID()
	if !ok {
		return string(ref)
	}
	for _, st := range s.List(ctx) {
		if st.ID == id {
			return st.StateName
		}
	}
	return string(ref)
}
