package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/models"
	"go.uber.org/zap"
)

// Phase is the state of a form session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
)

// Saver persists a draft.
type Saver interface {
	Save(ctx context.Context, employee *models.Employee) error
}

// FormState is a snapshot of the form session.
type FormState struct {
	Phase  Phase            `json:"phase"`
	Draft  *models.Employee `json:"draft,omitempty"`
	Notice string           `json:"notice,omitempty"`
}

// FormSession is the add/edit form: Idle, then Editing, then Submitting,
// back to Idle on success or to Editing with a notice on failure.
type FormSession struct {
	saver  Saver
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	phase  Phase
	draft  models.Employee
	notice string
}

// NewFormSession returns an idle form session that saves through saver.
func NewFormSession(saver Saver, logger *zap.Logger) *FormSession {
	return &FormSession{
		saver:  saver,
		logger: logger.Named("form_session"),
		now:    time.Now,
		phase:  PhaseIdle,
	}
}

// State returns the current session state.
func (s *FormSession) State() FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Open starts editing a copy of employee, or a blank record when nil.
func (s *FormSession) Open(employee *models.Employee) (FormState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseSubmitting {
		return s.stateLocked(), fmt.Errorf("%w: a submission is in flight", e.ErrSessionState)
	}
	s.draft = models.Employee{}
	if employee != nil {
		s.draft = *employee
	}
	s.draft.RecomputeAge(s.now())
	s.phase = PhaseEditing
	s.notice = ""
	return s.stateLocked(), nil
}

// Edit replaces the draft. The record id is kept from the opened record and
// age is derived from the date of birth.
func (s *FormSession) Edit(draft models.Employee) (FormState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEditing {
		return s.stateLocked(), fmt.Errorf("%w: form is %s", e.ErrSessionState, s.phase)
	}
	draft.ID = s.draft.ID
	draft.RecomputeAge(s.now())
	s.draft = draft
	return s.stateLocked(), nil
}

// Cancel closes the form and drops the draft.
func (s *FormSession) Cancel() (FormState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseSubmitting {
		return s.stateLocked(), fmt.Errorf("%w: a submission is in flight", e.ErrSessionState)
	}
	s.reset()
	return s.stateLocked(), nil
}

// Submit validates the draft and saves it. A validation or save failure
// keeps the form open with a notice.
func (s *FormSession) Submit(ctx context.Context) (FormState, error) {
	s.mu.Lock()
	if s.phase != PhaseEditing {
		defer s.mu.Unlock()
		return s.stateLocked(), fmt.Errorf("%w: form is %s", e.ErrSessionState, s.phase)
	}
	now := s.now()
	s.draft.RecomputeAge(now)
	if err := s.draft.Validate(now); err != nil {
		defer s.mu.Unlock()
		s.notice = err.Error()
		return s.stateLocked(), err
	}
	s.phase = PhaseSubmitting
	s.notice = ""
	draft := s.draft
	s.mu.Unlock()

	err := s.saver.Save(ctx, &draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("Form submission failed", zap.Error(err), zap.Int64("employee_id", draft.ID))
		s.phase = PhaseEditing
		s.notice = err.Error()
		return s.stateLocked(), err
	}
	s.reset()
	return s.stateLocked(), nil
}

func (s *FormSession) reset() {
	s.phase = PhaseIdle
	s.draft = models.Employee{}
	s.notice = ""
}

func (s *FormSession) stateLocked() FormState {
	state := FormState{Phase: s.phase, Notice: s.notice}
	if s.phase != PhaseIdle {
		draft := s.draft
		state.Draft = &draft
	}
	return state
}
