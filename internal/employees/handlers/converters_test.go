package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	e "github.com/gartstein/employees/internal/employees/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("expected id 42, got %d", id)
	}

	for _, raw := range []string{"", "abc", "0", "-3", "1.5"} {
		if _, err := parseID(raw); !errors.Is(err, e.ErrInvalidInput) {
			t.Errorf("parseID(%q): expected ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/report/chart/png?width=800&height=-1&depth=x", nil)

	if v, err := queryInt(r, "width", 640); err != nil || v != 800 {
		t.Errorf("expected 800, got %d (%v)", v, err)
	}
	if v, err := queryInt(r, "missing", 640); err != nil || v != 640 {
		t.Errorf("expected fallback 640, got %d (%v)", v, err)
	}
	if _, err := queryInt(r, "height", 400); !errors.Is(err, e.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative value, got %v", err)
	}
	if _, err := queryInt(r, "depth", 1); !errors.Is(err, e.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for non-numeric value, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	// Test valid body.
	r := httptest.NewRequest(http.MethodPost, "/v1/view/search", strings.NewReader(`{"search":"ali"}`))
	var req searchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Search != "ali" {
		t.Errorf("expected search %q, got %q", "ali", req.Search)
	}

	// Test empty body.
	r = httptest.NewRequest(http.MethodPost, "/v1/view/search", nil)
	if err := decodeJSON(r, &req, false); !errors.Is(err, e.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for required body, got %v", err)
	}
	r = httptest.NewRequest(http.MethodPost, "/v1/view/search", nil)
	if err := decodeJSON(r, &req, true); err != nil {
		t.Errorf("expected optional empty body to pass, got %v", err)
	}
	if req.Search != "ali" {
		t.Errorf("empty optional body must leave the value untouched, got %q", req.Search)
	}

	// Test malformed body.
	r = httptest.NewRequest(http.MethodPost, "/v1/view/search", strings.NewReader(`{"search":`))
	if err := decodeJSON(r, &req, false); !errors.Is(err, e.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for malformed JSON, got %v", err)
	}
}

func TestWriteAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAttachment(rec, "EmployeeReport.pdf", "application/pdf", []byte("%PDF"))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="EmployeeReport.pdf"` {
		t.Errorf("unexpected Content-Disposition %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "4" {
		t.Errorf("expected Content-Length 4, got %q", got)
	}
	if rec.Body.String() != "%PDF" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestWriteError_LogLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := NewEmployeeHandler(Dependencies{}, Options{Language: language.English}, zap.New(core))
	r := httptest.NewRequest(http.MethodGet, "/v1/report/pdf", nil)

	h.writeError(httptest.NewRecorder(), r, fmt.Errorf("%w: bad id", e.ErrInvalidInput))
	h.writeError(httptest.NewRecorder(), r, fmt.Errorf("%w: upstream down", e.ErrTransport))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.DebugLevel {
		t.Errorf("expected client errors at debug, got %v", entries[0].Level)
	}
	if entries[1].Level != zap.ErrorLevel || entries[1].Message != "Request failed" {
		t.Errorf("expected gateway errors at error level, got %v %q", entries[1].Level, entries[1].Message)
	}
}
