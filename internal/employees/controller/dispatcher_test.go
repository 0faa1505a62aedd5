package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dbmodels "github.com/gartstein/employees/internal/employees/db/models"
	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/events"
	"github.com/gartstein/employees/internal/employees/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

// MockAPI implements the API interface for testing
type MockAPI struct {
	createEmployee  func(context.Context, *models.Employee) error
	updateEmployee  func(context.Context, *models.Employee) error
	deleteEmployee  func(context.Context, int64) error
	deleteEmployees func(context.Context, []int64) error
	generatePDF     func(context.Context) (string, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockAPI) called(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *MockAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAPI) CreateEmployee(ctx context.Context, emp *models.Employee) error {
	m.called("create")
	return m.createEmployee(ctx, emp)
}

func (m *MockAPI) UpdateEmployee(ctx context.Context, emp *models.Employee) error {
	m.called("update")
	return m.updateEmployee(ctx, emp)
}

func (m *MockAPI) DeleteEmployee(ctx context.Context, id int64) error {
	m.called("delete")
	return m.deleteEmployee(ctx, id)
}

func (m *MockAPI) DeleteEmployees(ctx context.Context, ids []int64) error {
	m.called("delete_many")
	return m.deleteEmployees(ctx, ids)
}

func (m *MockAPI) GeneratePDF(ctx context.Context) (string, error) {
	m.called("pdf")
	return m.generatePDF(ctx)
}

// MockReloader counts cache reloads.
type MockReloader struct {
	reloads int
}

func (m *MockReloader) Reload(context.Context) {
	m.reloads++
}

// MockProducer is a test double for the Kafka producer.
type MockProducer struct {
	producedEvents []events.Event
}

func (m *MockProducer) Produce(eventType events.EventType, ids []int64, emp *models.Employee) {
	m.producedEvents = append(m.producedEvents, events.Event{Type: eventType, EmployeeIDs: ids, Employee: emp})
}

// MockJournal records journal entries in memory.
type MockJournal struct {
	records []*dbmodels.MutationRecord
	err     error
}

func (m *MockJournal) RecordMutation(_ context.Context, record *dbmodels.MutationRecord) error {
	m.records = append(m.records, record)
	return m.err
}

type fixture struct {
	api      *MockAPI
	cache    *MockReloader
	producer *MockProducer
	journal  *MockJournal
	service  *Dispatcher
}

func newFixture(t *testing.T, api *MockAPI) *fixture {
	t.Helper()
	f := &fixture{
		api:      api,
		cache:    &MockReloader{},
		producer: &MockProducer{},
		journal:  &MockJournal{},
	}
	f.service = NewDispatcher(f.api, f.cache, f.producer, f.journal, zaptest.NewLogger(t))
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func validEmployee() *models.Employee {
	return &models.Employee{
		Name:        "Alice",
		Designation: "Eng",
		Salary:      50000,
		Gender:      models.Female,
		DateOfBirth: models.NewDate(1990, time.December, 1),
	}
}

func TestDispatcher_Create(t *testing.T) {
	tests := []struct {
		name        string
		input       *models.Employee
		apiErr      error
		wantErr     error
		wantCalls   []string
		wantReloads int
	}{
		{
			name:        "successful creation",
			input:       validEmployee(),
			wantCalls:   []string{"create"},
			wantReloads: 1,
		},
		{
			name: "blank name is blocked before the network",
			input: func() *models.Employee {
				emp := validEmployee()
				emp.Name = ""
				return emp
			}(),
			wantErr:   e.ErrInvalidInput,
			wantCalls: nil,
		},
		{
			name: "non-numeric salary is blocked",
			input: func() *models.Employee {
				emp := validEmployee()
				emp.Salary = models.ParseSalary("abc")
				return emp
			}(),
			wantErr: e.ErrInvalidInput,
		},
		{
			name: "too young",
			input: func() *models.Employee {
				emp := validEmployee()
				emp.DateOfBirth = models.NewDate(2010, time.January, 1)
				return emp
			}(),
			wantErr: e.ErrInvalidInput,
		},
		{
			name: "persisted record is rejected",
			input: func() *models.Employee {
				emp := validEmployee()
				emp.ID = 4
				return emp
			}(),
			wantErr: e.ErrInvalidInput,
		},
		{
			name:      "remote failure leaves the cache alone",
			input:     validEmployee(),
			apiErr:    fmt.Errorf("%w: status 500", e.ErrRemote),
			wantErr:   e.ErrRemote,
			wantCalls: []string{"create"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent *models.Employee
			f := newFixture(t, &MockAPI{
				createEmployee: func(_ context.Context, emp *models.Employee) error {
					sent = emp
					return tt.apiErr
				},
			})

			err := f.service.Create(context.Background(), tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 35, sent.Age, "age is derived before sending")
				require.Len(t, f.producer.producedEvents, 1)
				assert.Equal(t, events.EmployeeCreated, f.producer.producedEvents[0].Type)
			}
			assert.Equal(t, tt.wantCalls, f.api.Calls())
			assert.Equal(t, tt.wantReloads, f.cache.reloads)
		})
	}
}

func TestDispatcher_Update(t *testing.T) {
	t.Run("requires an id", func(t *testing.T) {
		f := newFixture(t, &MockAPI{})
		err := f.service.Update(context.Background(), validEmployee())
		assert.ErrorIs(t, err, e.ErrInvalidInput)
		assert.Empty(t, f.api.Calls())
	})

	t.Run("successful update", func(t *testing.T) {
		f := newFixture(t, &MockAPI{
			updateEmployee: func(context.Context, *models.Employee) error { return nil },
		})
		emp := validEmployee()
		emp.ID = 7

		require.NoError(t, f.service.Update(context.Background(), emp))
		assert.Equal(t, 1, f.cache.reloads)
		require.Len(t, f.journal.records, 1)
		assert.Equal(t, dbmodels.KindUpdate, f.journal.records[0].Kind)
		assert.Equal(t, []int64{7}, f.journal.records[0].EmployeeIDs)
		assert.True(t, f.journal.records[0].Succeeded)
	})
}

func TestDispatcher_Save(t *testing.T) {
	f := newFixture(t, &MockAPI{
		createEmployee: func(context.Context, *models.Employee) error { return nil },
		updateEmployee: func(context.Context, *models.Employee) error { return nil },
	})

	require.NoError(t, f.service.Save(context.Background(), validEmployee()))
	existing := validEmployee()
	existing.ID = 3
	require.NoError(t, f.service.Save(context.Background(), existing))

	assert.Equal(t, []string{"create", "update"}, f.api.Calls())
	assert.Equal(t, 2, f.cache.reloads)
}

func TestDispatcher_DeleteRequiresConfirmation(t *testing.T) {
	var deleted []int64
	f := newFixture(t, &MockAPI{
		deleteEmployee: func(_ context.Context, id int64) error {
			deleted = append(deleted, id)
			return nil
		},
	})
	ctx := context.Background()

	_, err := f.service.ConfirmDelete(ctx)
	assert.ErrorIs(t, err, e.ErrNoPendingDelete)

	require.NoError(t, f.service.RequestDelete(5))
	assert.Empty(t, f.api.Calls(), "requesting does not call the API")

	f.service.CancelDelete()
	_, err = f.service.ConfirmDelete(ctx)
	assert.ErrorIs(t, err, e.ErrNoPendingDelete)
	assert.Empty(t, deleted)

	require.NoError(t, f.service.RequestDelete(5))
	pending, ok := f.service.PendingDelete()
	assert.True(t, ok)
	assert.Equal(t, int64(5), pending)

	id, err := f.service.ConfirmDelete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, []int64{5}, deleted)
	assert.Equal(t, 1, f.cache.reloads)

	_, ok = f.service.PendingDelete()
	assert.False(t, ok)

	assert.ErrorIs(t, f.service.RequestDelete(0), e.ErrInvalidInput)
}

func TestDispatcher_ConfirmDeleteFailureStaysArmed(t *testing.T) {
	f := newFixture(t, &MockAPI{
		deleteEmployee: func(context.Context, int64) error { return e.ErrTransport },
	})

	require.NoError(t, f.service.RequestDelete(9))
	_, err := f.service.ConfirmDelete(context.Background())
	assert.ErrorIs(t, err, e.ErrTransport)

	pending, ok := f.service.PendingDelete()
	assert.True(t, ok)
	assert.Equal(t, int64(9), pending)
	assert.Equal(t, 0, f.cache.reloads)
	require.Len(t, f.journal.records, 1)
	assert.False(t, f.journal.records[0].Succeeded)
}

func TestDispatcher_DeleteMany(t *testing.T) {
	t.Run("empty set makes no call", func(t *testing.T) {
		f := newFixture(t, &MockAPI{})
		require.NoError(t, f.service.DeleteMany(context.Background(), nil))
		require.NoError(t, f.service.DeleteMany(context.Background(), []int64{}))
		assert.Empty(t, f.api.Calls())
		assert.Equal(t, 0, f.cache.reloads)
	})

	t.Run("batch delete", func(t *testing.T) {
		var got []int64
		f := newFixture(t, &MockAPI{
			deleteEmployees: func(_ context.Context, ids []int64) error {
				got = ids
				return nil
			},
		})
		require.NoError(t, f.service.DeleteMany(context.Background(), []int64{2, 4}))
		assert.Equal(t, []int64{2, 4}, got)
		assert.Equal(t, 1, f.cache.reloads)
		require.Len(t, f.producer.producedEvents, 1)
		assert.Equal(t, events.EmployeeDeleted, f.producer.producedEvents[0].Type)
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(t, &MockAPI{
			deleteEmployees: func(context.Context, []int64) error { return e.ErrRemote },
		})
		err := f.service.DeleteMany(context.Background(), []int64{1})
		assert.ErrorIs(t, err, e.ErrRemote)
		assert.Equal(t, 0, f.cache.reloads)
		assert.Empty(t, f.producer.producedEvents)
	})
}

func TestDispatcher_ExportPDF(t *testing.T) {
	pdf := []byte("%PDF-1.7 test")

	t.Run("decodes the report", func(t *testing.T) {
		f := newFixture(t, &MockAPI{
			generatePDF: func(context.Context) (string, error) {
				return base64.StdEncoding.EncodeToString(pdf), nil
			},
		})
		report, err := f.service.ExportPDF(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ReportName, report.Name)
		assert.Equal(t, "application/pdf", report.ContentType)
		assert.Equal(t, pdf, report.Data)
		assert.Equal(t, 0, f.cache.reloads)
	})

	t.Run("invalid base64", func(t *testing.T) {
		f := newFixture(t, &MockAPI{
			generatePDF: func(context.Context) (string, error) { return "not base64!", nil },
		})
		_, err := f.service.ExportPDF(context.Background())
		assert.ErrorIs(t, err, e.ErrDecode)
	})

	t.Run("remote failure", func(t *testing.T) {
		f := newFixture(t, &MockAPI{
			generatePDF: func(context.Context) (string, error) { return "", errors.New("boom") },
		})
		_, err := f.service.ExportPDF(context.Background())
		assert.Error(t, err)
	})
}

func TestDispatcher_JournalFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, &MockAPI{
		createEmployee: func(context.Context, *models.Employee) error { return nil },
	})
	f.journal.err = errors.New("disk full")

	require.NoError(t, f.service.Create(context.Background(), validEmployee()))
	assert.Equal(t, 1, f.cache.reloads)
}
