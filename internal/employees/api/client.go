// Package api implements the HTTP/JSON client for the remote employee API.
// It is the only component that talks to the network; everything above it
// works on decoded models and sentinel errors.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 32 << 20
	tracerName      = "github.com/gartstein/employees/internal/employees/api"
)

// DeleteStyle selects how the single-delete endpoint receives the identifier.
type DeleteStyle string

const (
	// DeleteByPath sends DELETE /Employee/DeleteEmpoyeeById/{id}.
	DeleteByPath DeleteStyle = "path"
	// DeleteByQuery sends DELETE /Employee/DeleteEmpoyeeById/?id={id}.
	DeleteByQuery DeleteStyle = "query"
)

// Config holds the connection settings for the remote API.
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	DeleteStyle        DeleteStyle
}

// Client calls the remote employee API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	deleteStyle DeleteStyle
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewClient constructs a Client for the given configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // development certificates only
	}
	style := cfg.DeleteStyle
	if style == "" {
		style = DeleteByPath
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		deleteStyle: style,
		logger:      logger.Named("api_client"),
		tracer:      otel.Tracer(tracerName),
	}
}

// ListEmployees fetches the full employee collection.
func (c *Client) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	body, err := c.do(ctx, "ListEmployees", http.MethodGet, "/Employee/AllEmployees", nil)
	if err != nil {
		return nil, err
	}
	var employees []models.Employee
	if err := json.Unmarshal(body, &employees); err != nil {
		return nil, fmt.Errorf("%w: employees: %v", e.ErrDecode, err)
	}
	return employees, nil
}

// ListStates fetches the state lookup list.
func (c *Client) ListStates(ctx context.Context) ([]models.State, error) {
	body, err := c.do(ctx, "ListStates", http.MethodGet, "/State/AllStatesList", nil)
	if err != nil {
		return nil, err
	}
	var states []models.State
	if err := json.Unmarshal(body, &states); err != nil {
		return nil, fmt.Errorf("%w: states: %v", e.ErrDecode, err)
	}
	return states, nil
}

// CreateEmployee posts a new, unsaved employee record.
func (c *Client) CreateEmployee(ctx context.Context, employee *models.Employee) error {
	_, err := c.do(ctx, "CreateEmployee", http.MethodPost, "/Employee/AddEmployee", employee)
	return err
}

// UpdateEmployee replaces the record identified by employee.ID.
func (c *Client) UpdateEmployee(ctx context.Context, employee *models.Employee) error {
	path := "/Employee/UpdateEmployee?id=" + url.QueryEscape(strconv.FormatInt(employee.ID, 10))
	_, err := c.do(ctx, "UpdateEmployee", http.MethodPut, path, employee)
	return err
}

// DeleteEmployee removes a single record.
func (c *Client) DeleteEmployee(ctx context.Context, id int64) error {
	idStr := strconv.FormatInt(id, 10)
	path := "/Employee/DeleteEmpoyeeById/" + url.PathEscape(idStr)
	if c.deleteStyle == DeleteByQuery {
		path = "/Employee/DeleteEmpoyeeById/?id=" + url.QueryEscape(idStr)
	}
	_, err := c.do(ctx, "DeleteEmployee", http.MethodDelete, path, nil)
	return err
}

// DeleteEmployees removes every record in ids with one batch request.
func (c *Client) DeleteEmployees(ctx context.Context, ids []int64) error {
	_, err := c.do(ctx, "DeleteEmployees", http.MethodPost, "/Employee/DeleteMultipleEmpoyees", ids)
	return err
}

// GeneratePDF fetches the pre-rendered employee report and returns its
// base64-encoded payload, still encoded.
func (c *Client) GeneratePDF(ctx context.Context) (string, error) {
	body, err := c.do(ctx, "GeneratePdf", http.MethodGet, "/Employee/GeneratePdf", nil)
	if err != nil {
		return "", err
	}
	return extractBase64(body)
}

// extractBase64 accepts {"base64String": "..."}, a JSON string or a raw body.
func extractBase64(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return "", fmt.Errorf("%w: empty report payload", e.ErrDecode)
	case trimmed[0] == '{':
		var payload struct {
			Base64String string `json:"base64String"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return "", fmt.Errorf("%w: report: %v", e.ErrDecode, err)
		}
		if payload.Base64String == "" {
			return "", fmt.Errorf("%w: report has no base64String", e.ErrDecode)
		}
		return payload.Base64String, nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: report: %v", e.ErrDecode, err)
		}
		return s, nil
	default:
		return string(trimmed), nil
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "employees.api/"+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	logger := c.logger.With(
		zap.String("op", op),
		zap.String("request_id", requestID),
	)

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "encode request")
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "build request")
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "transport")
		logger.Debug("API request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", e.ErrTransport, op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "read body")
		return nil, fmt.Errorf("%w: %s: read body: %v", e.ErrTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(otelcodes.Error, resp.Status)
		errorText := strings.TrimSpace(string(body))
		logger.Debug("API returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", errorText),
		)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w: %s returned %d", e.ErrRemote, e.ErrNotFound, op, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s returned %d: %s", e.ErrRemote, op, resp.StatusCode, errorText)
	}
	return body, nil
}
