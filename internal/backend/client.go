package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/comigor/gitmaster-go/internal/config"
)

const instrumentationName = "github.com/comigor/gitmaster-go/internal/backend"

// maxErrorBody bounds how much of a failed response is kept on StatusError.
const maxErrorBody = 4 << 10

// ErrMissingSessionID is returned when create-session succeeds without an id.
var ErrMissingSessionID = errors.New("backend returned no session_id")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status code: %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client is a client for the Analysis Backend API
type Client struct {
	baseURL  string
	client   *http.Client
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewClient creates a new Client
func NewClient(cfg config.BackendConfig) *Client {
	return NewClientWithHTTP(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
}

// NewClientWithHTTP creates a Client on top of an existing http.Client.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		tracer:  otel.Tracer(instrumentationName),
	}
	histogram, err := otel.Meter(instrumentationName).Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Analysis Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err == nil {
		c.duration = histogram
	}
	return c
}

// CreateSession asks the backend for a fresh session id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out CreateSessionResponse
	if err := c.do(ctx, "create_session", http.MethodPost, "/create-session", nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", ErrMissingSessionID
	}
	return out.SessionID, nil
}

// Analyze starts repository ingestion for a session. The response body is ignored.
func (c *Client) Analyze(ctx context.Context, sessionID, githubURL string) error {
	return c.do(ctx, "analyze", http.MethodPost, "/analyze/"+url.PathEscape(sessionID), AnalyzeRequest{GitHubURL: githubURL}, nil)
}

// SessionStatus returns nil when the backend still knows the session.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) error {
	return c.do(ctx, "session_status", http.MethodGet, "/session-status/"+url.PathEscape(sessionID), nil, nil)
}

// Ask sends one question and decodes the answer payload.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (AskResponse, error) {
	var out AskResponse
	err := c.do(ctx, "ask", http.MethodPost, "/ask/"+url.PathEscape(sessionID), AskRequest{Question: question}, &out)
	return out, err
}

// DeleteSession tells the backend to discard a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "delete_session", http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "backend."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()
	defer func() {
		attrs := metric.WithAttributes(attribute.String("op", op))
		if c.duration != nil {
			c.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
