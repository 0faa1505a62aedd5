package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gartstein/employees/internal/employees/cache"
	"github.com/gartstein/employees/internal/employees/controller"
	dbmodels "github.com/gartstein/employees/internal/employees/db/models"
	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/models"
	"github.com/gartstein/employees/internal/employees/report"
	"github.com/gartstein/employees/internal/employees/view"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const spreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ViewController is the query and selection side of the view model.
type ViewController interface {
	State() view.State
	SetSearch(search string) view.State
	SortBy(column view.Column) view.State
	SetOrder(orderBy string) (view.State, error)
	NextPage() view.State
	PreviousPage() view.State
	Toggle(id int64) (view.State, error)
	SelectAll() view.State
	Selected() []int64
	ClearSelection()
	Ordered() []models.Employee
}

// MutationController sends writes to the remote API.
type MutationController interface {
	DeleteMany(ctx context.Context, ids []int64) error
	RequestDelete(id int64) error
	PendingDelete() (int64, bool)
	ConfirmDelete(ctx context.Context) (int64, error)
	CancelDelete()
	ExportPDF(ctx context.Context) (*controller.Report, error)
}

// FormController is the add/edit form session.
type FormController interface {
	State() controller.FormState
	Open(employee *models.Employee) (controller.FormState, error)
	Edit(draft models.Employee) (controller.FormState, error)
	Cancel() (controller.FormState, error)
	Submit(ctx context.Context) (controller.FormState, error)
}

// CollectionCache is the employee snapshot store.
type CollectionCache interface {
	Reload(ctx context.Context)
	Snapshot() cache.Snapshot
	Find(id int64) (models.Employee, bool)
}

// StateDirectory resolves state references.
type StateDirectory interface {
	List(ctx context.Context) []models.State
	Name(ctx context.Context, ref models.StateRef) string
}

// JournalReader lists recorded mutations.
type JournalReader interface {
	ListMutations(ctx context.Context, limit int) ([]dbmodels.MutationRecord, error)
}

// Dependencies bundles the components served over HTTP.
type Dependencies struct {
	View     ViewController
	Mutation MutationController
	Form     FormController
	Cache    CollectionCache
	States   StateDirectory
	Journal  JournalReader
}

// Options tune report rendering.
type Options struct {
	Language       language.Tag
	CurrencyPrefix string
}

// EmployeeHandler serves the employee view model as JSON over HTTP.
type EmployeeHandler struct {
	deps    Dependencies
	labeler *report.Labeler
	logger  *zap.Logger
}

// NewEmployeeHandler constructs a new EmployeeHandler.
func NewEmployeeHandler(deps Dependencies, opts Options, logger *zap.Logger) *EmployeeHandler {
	return &EmployeeHandler{
		deps:    deps,
		labeler: report.NewLabeler(opts.Language, opts.CurrencyPrefix),
		logger:  logger.Named("http_handler"),
	}
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

func (h *EmployeeHandler) routes() []route {
	return []route{
		{http.MethodGet, "/v1/view", h.getView},
		{http.MethodPost, "/v1/view/reload", h.reload},
		{http.MethodPost, "/v1/view/search", h.search},
		{http.MethodPost, "/v1/view/sort/{column}", h.sort},
		{http.MethodPost, "/v1/view/order", h.order},
		{http.MethodPost, "/v1/view/next", h.nextPage},
		{http.MethodPost, "/v1/view/previous", h.previousPage},
		{http.MethodPost, "/v1/view/selection/{id}", h.toggle},
		{http.MethodPost, "/v1/view/select-all", h.selectAll},
		{http.MethodPost, "/v1/view/delete-selected", h.deleteSelected},

		{http.MethodGet, "/v1/form", h.formState},
		{http.MethodPost, "/v1/form", h.openNew},
		{http.MethodPut, "/v1/form", h.editDraft},
		{http.MethodDelete, "/v1/form", h.cancelForm},
		{http.MethodPost, "/v1/form/{id}", h.formAction},

		{http.MethodGet, "/v1/deletion", h.pendingDeletion},
		{http.MethodPost, "/v1/deletion/{id}", h.deletionAction},
		{http.MethodDelete, "/v1/deletion", h.cancelDeletion},

		{http.MethodGet, "/v1/states", h.listStates},
		{http.MethodGet, "/v1/report/pdf", h.exportPDF},
		{http.MethodGet, "/v1/report/chart", h.chart},
		{http.MethodGet, "/v1/report/chart/png", h.chartPNG},
		{http.MethodGet, "/v1/report/spreadsheet", h.spreadsheet},
		{http.MethodGet, "/v1/journal", h.journal},
	}
}

// Register attaches every route to mux.
func (h *EmployeeHandler) Register(mux *runtime.ServeMux) error {
	for _, rt := range h.routes() {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

func (h *EmployeeHandler) getView(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.deps.View.State())
}

func (h *EmployeeHandler) reload(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.deps.Cache.Reload(r.Context())
	h.writeJSON(w, http.StatusOK, h.deps.View.State())
}

func (h *EmployeeHandler) search(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req searchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.deps.View.SetSearch(req.Search))
}

func (h *EmployeeHandler) sort(w http.ResponseWriter, r *http.Request, params map[string]string) {
	column, err := view.ParseColumn(params["column"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.deps.View.SortBy(column))
}

func (h *EmployeeHandler) order(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req orderRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := h.deps.View.SetOrder(req.OrderBy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *EmployeeHandler) nextPage(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.deps.View.NextPage())
}

func (h *EmployeeHandler) previousPage(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.deps.View.PreviousPage())
}

func (h *EmployeeHandler) toggle(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := h.deps.View.Toggle(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *EmployeeHandler) selectAll(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.deps.View.SelectAll())
}

func (h *EmployeeHandler) deleteSelected(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ids := h.deps.View.Selected()
	if err := h.deps.Mutation.DeleteMany(r.Context(), ids); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(ids) > 0 {
		h.deps.View.ClearSelection()
	}
	h.writeJSON(w, http.StatusOK, h.deps.View.State())
}

func (h *EmployeeHandler) formState(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.deps.Form.State())
}

func (h *EmployeeHandler) openNew(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	state, err := h.deps.Form.Open(nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *EmployeeHandler) editDraft(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var draft models.Employee
	if err := decodeJSON(r, &draft, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := h.deps.Form.Edit(draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *EmployeeHandler) cancelForm(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	state, err := h.deps.Form.Cancel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// formAction serves POST /v1/form/submit and POST /v1/form/{id}, which share
// one pattern.
func (h *EmployeeHandler) formAction(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if params["id"] == "submit" {
		h.submitForm(w, r)
		return
	}
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	employee, ok := h.deps.Cache.Find(id)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: employee %d", e.ErrNotFound, id))
		return
	}
	state, err := h.deps.Form.Open(&employee)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *EmployeeHandler) submitForm(w http.ResponseWriter, r *http.Request) {
	state, err := h.deps.Form.Submit(r.Context())
	if err != nil {
		code := h.mapServiceError(err)
		h.logger.Debug("Form submission rejected", zap.Error(err), zap.Int("status", code))
		h.writeJSON(w, code, state)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *EmployeeHandler) pendingDeletion(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	var resp deletionResponse
	if id, ok := h.deps.Mutation.PendingDelete(); ok {
		resp.PendingID = &id
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// deletionAction serves POST /v1/deletion/confirm and POST /v1/deletion/{id},
// which share one pattern.
func (h *EmployeeHandler) deletionAction(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if params["id"] == "confirm" {
		id, err := h.deps.Mutation.ConfirmDelete(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, deletionResponse{DeletedID: &id})
		return
	}

	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Mutation.RequestDelete(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deletionResponse{PendingID: &id})
}

func (h *EmployeeHandler) cancelDeletion(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.deps.Mutation.CancelDelete()
	h.writeJSON(w, http.StatusOK, deletionResponse{})
}

func (h *EmployeeHandler) listStates(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.deps.States.List(r.Context()))
}

func (h *EmployeeHandler) exportPDF(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	doc, err := h.deps.Mutation.ExportPDF(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeAttachment(w, doc.Name, doc.ContentType, doc.Data)
}

func (h *EmployeeHandler) chartBars() []report.Bar {
	bars := report.SalaryByDesignation(h.deps.Cache.Snapshot().Employees)
	return h.labeler.Label(bars)
}

func (h *EmployeeHandler) chart(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, h.chartBars())
}

func (h *EmployeeHandler) chartPNG(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	width, err := queryInt(r, "width", 640)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	height, err := queryInt(r, "height", 400)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderBarChart(&buf, h.chartBars(), report.ChartOptions{Width: width, Height: height}); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", e.ErrInvalidInput, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *EmployeeHandler) spreadsheet(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ctx := r.Context()
	var buf bytes.Buffer
	err := report.WriteSpreadsheet(&buf, h.deps.View.Ordered(), func(ref models.StateRef) string {
		return h.deps.States.Name(ctx, ref)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeAttachment(w, "EmployeeReport.xlsx", spreadsheetContentType, buf.Bytes())
}

func (h *EmployeeHandler) journal(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.deps.Journal.ListMutations(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}
