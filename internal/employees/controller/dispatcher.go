// Package controller implements the mutation side of the employee view
// model: writes against the remote API, the single-delete confirmation and
// the edit form session. Every successful write ends in a full cache reload.
package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	dbmodels "github.com/gartstein/employees/internal/employees/db/models"
	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/events"
	"github.com/gartstein/employees/internal/employees/models"
	"go.uber.org/zap"
)

// ReportName is the file name offered for the PDF export.
const ReportName = "EmployeeReport.pdf"

// API is the subset of the remote client the dispatcher writes through.
type API interface {
	CreateEmployee(ctx context.Context, employee *models.Employee) error
	UpdateEmployee(ctx context.Context, employee *models.Employee) error
	DeleteEmployee(ctx context.Context, id int64) error
	DeleteEmployees(ctx context.Context, ids []int64) error
	GeneratePDF(ctx context.Context) (string, error)
}

// Reloader refreshes the collection cache.
type Reloader interface {
	Reload(ctx context.Context)
}

// EventProducer publishes accepted mutations.
type EventProducer interface {
	Produce(eventType events.EventType, ids []int64, employee *models.Employee)
}

// Journal records attempted writes.
type Journal interface {
	RecordMutation(ctx context.Context, record *dbmodels.MutationRecord) error
}

// Report is a downloadable document.
type Report struct {
	Name        string
	ContentType string
	Data        []byte
}

// Dispatcher sends create, update and delete calls to the API and reloads
// the cache after each success. Failures leave the cache untouched.
type Dispatcher struct {
	api      API
	cache    Reloader
	producer EventProducer
	journal  Journal
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending *int64
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(api API, cache Reloader, producer EventProducer, journal Journal, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		api:      api,
		cache:    cache,
		producer: producer,
		journal:  journal,
		logger:   logger.Named("mutation_dispatcher"),
		now:      time.Now,
	}
}

// Create validates the employee and posts it as a new record. Records that
// already carry an id are rejected.
func (d *Dispatcher) Create(ctx context.Context, employee *models.Employee) error {
	if employee.Persisted() {
		return fmt.Errorf("%w: employee %d already exists", e.ErrInvalidInput, employee.ID)
	}
	now := d.now()
	employee.RecomputeAge(now)
	if err := employee.Validate(now); err != nil {
		d.logger.Warn("Rejected employee", zap.Error(err), zap.String("name", employee.Name))
		return err
	}

	if err := d.api.CreateEmployee(ctx, employee); err != nil {
		d.logger.Error("Error saving employee", zap.Error(err), zap.String("name", employee.Name))
		d.record(ctx, dbmodels.KindCreate, nil, employee.Name, err)
		return fmt.Errorf("failed to create employee: %w", err)
	}

	d.record(ctx, dbmodels.KindCreate, nil, employee.Name, nil)
	d.producer.Produce(events.EmployeeCreated, nil, employee)
	d.cache.Reload(ctx)
	return nil
}

// Update validates the employee and replaces the stored record with it.
func (d *Dispatcher) Update(ctx context.Context, employee *models.Employee) error {
	if !employee.Persisted() {
		return fmt.Errorf("%w: employee id is required for update", e.ErrInvalidInput)
	}
	now := d.now()
	employee.RecomputeAge(now)
	if err := employee.Validate(now); err != nil {
		d.logger.Warn("Rejected employee", zap.Error(err), zap.Int64("employee_id", employee.ID))
		return err
	}

	ids := []int64{employee.ID}
	if err := d.api.UpdateEmployee(ctx, employee); err != nil {
		d.logger.Error("Error updating employee", zap.Error(err), zap.Int64("employee_id", employee.ID))
		d.record(ctx, dbmodels.KindUpdate, ids, employee.Name, err)
		return fmt.Errorf("failed to update employee: %w", err)
	}

	d.record(ctx, dbmodels.KindUpdate, ids, employee.Name, nil)
	d.producer.Produce(events.EmployeeUpdated, ids, employee)
	d.cache.Reload(ctx)
	return nil
}

// Save creates the employee when it has no id and updates it otherwise.
func (d *Dispatcher) Save(ctx context.Context, employee *models.Employee) error {
	if employee.Persisted() {
		return d.Update(ctx, employee)
	}
	return d.Create(ctx, employee)
}

// RequestDelete arms the confirmation for deleting id, replacing any
// earlier request.
func (d *Dispatcher) RequestDelete(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid employee id", e.ErrInvalidInput)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = &id
	return nil
}

// PendingDelete returns the armed id, if any.
func (d *Dispatcher) PendingDelete() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return 0, false
	}
	return *d.pending, true
}

// CancelDelete disarms the confirmation without calling the API.
func (d *Dispatcher) CancelDelete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
}

// ConfirmDelete deletes the armed id. On failure the request stays armed
// so it can be confirmed again.
func (d *Dispatcher) ConfirmDelete(ctx context.Context) (int64, error) {
	d.mu.Lock()
	if d.pending == nil {
		d.mu.Unlock()
		return 0, e.ErrNoPendingDelete
	}
	id := *d.pending
	d.pending = nil
	d.mu.Unlock()

	ids := []int64{id}
	if err := d.api.DeleteEmployee(ctx, id); err != nil {
		d.logger.Error("Error deleting employee", zap.Error(err), zap.Int64("employee_id", id))
		d.record(ctx, dbmodels.KindDelete, ids, "", err)
		d.mu.Lock()
		if d.pending == nil {
			d.pending = &id
		}
		d.mu.Unlock()
		return id, fmt.Errorf("failed to delete employee: %w", err)
	}

	d.record(ctx, dbmodels.KindDelete, ids, "", nil)
	d.producer.Produce(events.EmployeeDeleted, ids, nil)
	d.cache.Reload(ctx)
	return id, nil
}

// DeleteMany deletes every id in one batch call. An empty set is a no-op.
func (d *Dispatcher) DeleteMany(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.api.DeleteEmployees(ctx, ids); err != nil {
		d.logger.Error("Error deleting employees", zap.Error(err), zap.Int64s("employee_ids", ids))
		d.record(ctx, dbmodels.KindDeleteMany, ids, "", err)
		return fmt.Errorf("failed to delete employees: %w", err)
	}

	d.record(ctx, dbmodels.KindDeleteMany, ids, "", nil)
	d.producer.Produce(events.EmployeeDeleted, ids, nil)
	d.cache.Reload(ctx)
	return nil
}

// ExportPDF fetches the employee report and decodes it.
func (d *Dispatcher) ExportPDF(ctx context.Context) (*Report, error) {
	encoded, err := d.api.GeneratePDF(ctx)
	if err != nil {
		d.logger.Error("Error generating PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		d.logger.Error("Error decoding PDF", zap.Error(err))
		return nil, fmt.Errorf("%w: report is not valid base64: %v", e.ErrDecode, err)
	}

	return &Report{
		Name:        ReportName,
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func (d *Dispatcher) record(ctx context.Context, kind dbmodels.MutationKind, ids []int64, name string, cause error) {
	entry := &dbmodels.MutationRecord{
		Kind:         kind,
		EmployeeIDs:  ids,
		EmployeeName: name,
		Succeeded:    cause == nil,
		CreatedAt:    d.now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := d.journal.RecordMutation(ctx, entry); err != nil {
		d.logger.Warn("Failed to journal mutation", zap.Error(err), zap.String("kind", string(kind)))
	}
}
