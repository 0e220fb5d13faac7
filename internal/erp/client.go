package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/repository/synclog"
)

const (
	loginPath       = "/Users/Login"
	maxResponseSize = 10 << 20
	logBodyLimit    = 500
)

var (
	clientTracer = otel.Tracer("github.com/Additional-Code/erpsync/erp")
	clientMeter  = otel.Meter("github.com/Additional-Code/erpsync/erp")
)

// LogSink receives audit entries for failed ERP exchanges.
type LogSink interface {
	Add(ctx context.Context, entry *entity.SyncLog) error
}

// Params defines dependencies for constructing Client through Fx.
type Params struct {
	fx.In

	Config config.Config
	Logs   *synclog.Repository
	Logger *zap.Logger
}

// Module provides the ERP client to Fx.
var Module = fx.Provide(func(p Params) *Client {
	return NewClient(p.Config.ERP, p.Logs, p.Logger)
})

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClock replaces the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client talks to the ERP HTTP API and hides token management.
type Client struct {
	baseURL  string
	username string
	password string
	tokenTTL time.Duration
	http     *http.Client
	logs     LogSink
	logger   *zap.Logger
	now      func() time.Time
	requests metric.Int64Counter

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient builds a Client from ERP settings.
func NewClient(cfg config.ERP, logs LogSink, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		tokenTTL: ttl,
		http:     &http.Client{Timeout: timeout},
		logs:     logs,
		logger:   logger.Named("erp"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	counter, err := clientMeter.Int64Counter("erp.requests",
		metric.WithDescription("ERP HTTP requests by method and outcome"),
	)
	if err != nil {
		c.logger.Warn("erp request counter unavailable", zap.Error(err))
	}
	c.requests = counter

	return c
}

// Authenticate makes sure a valid token is cached, logging in when needed.
// Concurrent callers share a single login.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return nil
	}

	ctx, span := clientTracer.Start(ctx, "erp.Authenticate")
	defer span.End()

	payload := map[string]string{"username": c.username, "password": c.password}
	resp, err := c.do(ctx, http.MethodPost, loginPath, payload, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		c.audit(ctx, entity.LogError, "Failed to authenticate with ERP API", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	token, shape, err := DecodeToken(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no token in response")
		c.audit(ctx, entity.LogError, "Failed to authenticate with ERP API", map[string]any{
			"response_kind": resp.Kind.String(),
			"response":      responseForLog(resp),
		})
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	c.token = token
	c.expiresAt = tokenExpiry(token, c.now(), c.tokenTTL)
	c.logger.Debug("erp token acquired", zap.String("shape", string(shape)), zap.Time("expires_at", c.expiresAt))
	return nil
}

// Request performs a call against path. When requireAuth is set the client
// authenticates first and fails closed.
func (c *Client) Request(ctx context.Context, method, path string, payload any, requireAuth bool) (*Response, error) {
	token := ""
	if requireAuth {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		token = c.token
		c.mu.Unlock()
	}
	return c.do(ctx, method, path, payload, token)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, token string) (*Response, error) {
	url := c.url(path)
	ctx, span := clientTracer.Start(ctx, "erp.Request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("erp.path", path),
	))
	defer span.End()

	var body io.Reader
	if payload != nil && hasBody(method) {
		raw, err := json.Marshal(payload)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.count(ctx, method, "transport_error")
		c.audit(ctx, entity.LogError, "API request failed: "+err.Error(), map[string]any{
			"url":    url,
			"method": method,
			"data":   redact(payload),
		})
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, url, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		c.count(ctx, method, "transport_error")
		c.audit(ctx, entity.LogError, "API request failed: "+err.Error(), map[string]any{
			"url":    url,
			"method": method,
		})
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, url, err)
	}

	status := res.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))
	ok := status >= 200 && status < 300

	if len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			c.count(ctx, method, "ok")
			return &Response{StatusCode: status, Kind: KindEmpty}, nil
		}
		c.count(ctx, method, "error_status")
		span.SetStatus(codes.Error, "error status")
		c.audit(ctx, entity.LogError, fmt.Sprintf("API request returned error status with empty body: %d", status), map[string]any{
			"url":         url,
			"method":      method,
			"status_code": status,
		})
		return nil, &StatusError{Method: method, URL: url, StatusCode: status}
	}

	decoded, decodeErr := decodeJSON(raw)
	if decodeErr != nil {
		if ok {
			c.count(ctx, method, "ok")
			return &Response{StatusCode: status, Kind: KindRaw, Raw: raw}, nil
		}
		c.count(ctx, method, "error_status")
		span.SetStatus(codes.Error, "error status")
		c.audit(ctx, entity.LogError, fmt.Sprintf("API request returned error status and invalid JSON: %d", status), map[string]any{
			"url":         url,
			"method":      method,
			"status_code": status,
			"body":        truncate(string(raw), logBodyLimit),
			"json_error":  decodeErr.Error(),
		})
		return nil, &StatusError{Method: method, URL: url, StatusCode: status, Message: ErrorMessage(truncate(string(raw), logBodyLimit), "")}
	}

	if ok {
		c.count(ctx, method, "ok")
		return &Response{StatusCode: status, Kind: KindJSON, Data: decoded, Raw: raw}, nil
	}

	c.count(ctx, method, "error_status")
	span.SetStatus(codes.Error, "error status")
	c.audit(ctx, entity.LogError, fmt.Sprintf("API request returned error status: %d", status), map[string]any{
		"url":         url,
		"method":      method,
		"status_code": status,
		"response":    decoded,
	})
	return nil, &StatusError{Method: method, URL: url, StatusCode: status, Message: ErrorMessage(decoded, "")}
}

const redactedValue = "[redacted]"

// redact masks credential fields in request payloads before they reach the
// sync log, which the admin API serves.
func redact(payload any) any {
	switch p := payload.(type) {
	case map[string]string:
		out := make(map[string]string, len(p))
		for k, v := range p {
			if isSecretKey(k) {
				v = redactedValue
			}
			out[k] = v
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(p))
		for k, v := range p {
			if isSecretKey(k) {
				v = redactedValue
			}
			out[k] = v
		}
		return out
	default:
		return payload
	}
}

func isSecretKey(key string) bool {
	switch strings.ToLower(key) {
	case "password", "token", "accesstoken", "access_token":
		return true
	}
	return false
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) audit(ctx context.Context, kind entity.LogKind, message string, payload map[string]any) {
	c.logger.Warn(message, zap.Any("context", payload))
	if c.logs == nil {
		return
	}
	// The sync attempt may already be cancelled; the entry should still land.
	if err := c.logs.Add(context.WithoutCancel(ctx), &entity.SyncLog{Kind: kind, Message: message, Payload: payload}); err != nil {
		c.logger.Error("write erp log entry", zap.Error(err))
	}
}

func (c *Client) count(ctx context.Context, method, outcome string) {
	if c.requests == nil {
		return
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func responseForLog(resp *Response) any {
	if resp == nil {
		return nil
	}
	switch resp.Kind {
	case KindJSON:
		return resp.Data
	case KindRaw:
		return truncate(string(resp.Raw), logBodyLimit)
	default:
		return nil
	}
}

// IsRemoteFailure reports whether err came from talking to the ERP.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrStatus) ||
		errors.Is(err, ErrUnexpectedResponse)
}
