// Package gateway is the HTTP client for the upstream AI gateway. Every vendor
// is reached through it with the caller's API key as a bearer token.
// It never retries; retry policy belongs to the polling layer.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/infra/metrics"
)

const defaultTimeout = 60 * time.Second

// Config holds the upstream settings read at startup.
type Config struct {
	BaseURL        string
	DefaultTimeout time.Duration
}

// Client sends authenticated requests to the upstream gateway.
type Client struct {
	rc             *resty.Client
	baseURL        string
	defaultTimeout time.Duration
	log            *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (transport, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.rc = resty.NewWithClient(hc)
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New validates the base URL and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got: %q", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL must have a host, got: %q", cfg.BaseURL)
	}

	c := &Client{
		rc:             resty.New(),
		baseURL:        base,
		defaultTimeout: cfg.DefaultTimeout,
		log:            slog.Default(),
	}
	if c.defaultTimeout <= 0 {
		c.defaultTimeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rc.
		SetBaseURL(base).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetLogger(restyLogger{c.log})
	return c, nil
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one upstream call.
type Request struct {
	// Op labels the call in logs and metrics, e.g. "submit_hedra".
	Op      string
	Method  string
	Path    string
	APIKey  string
	Headers map[string]string

	// At most one of JSON and Multipart is used.
	JSON      any
	Multipart *Multipart

	// Timeout bounds the call; zero means the client default.
	// NoTimeout leaves the call bounded only by ctx.
	Timeout   time.Duration
	NoTimeout bool
}

// Multipart is a multipart/form-data body.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// File is one file part of a multipart body.
type File struct {
	Field       string
	Name        string
	ContentType string
	Reader      io.Reader
}

// Response is a 2xx upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Send performs the request. Non-2xx replies return *domain.HTTPError;
// failures to get any reply return *domain.TransportError.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if err := checkPath(req.Path); err != nil {
		return nil, err
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
		if req.JSON != nil || req.Multipart != nil {
			method = http.MethodPost
		}
	}
	op := req.Op
	if op == "" {
		op = strings.ToLower(method)
	}

	ctx, cancel := c.withTimeout(ctx, req)
	defer cancel()

	r := c.rc.R().SetContext(ctx)
	if req.APIKey != "" {
		r.SetAuthToken(req.APIKey)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	switch {
	case req.Multipart != nil:
		if len(req.Multipart.Fields) > 0 {
			r.SetMultipartFormData(req.Multipart.Fields)
		}
		for _, f := range req.Multipart.Files {
			r.SetMultipartField(f.Field, f.Name, f.ContentType, f.Reader)
		}
	case req.JSON != nil:
		r.SetHeader("Content-Type", "application/json").SetBody(req.JSON)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Path)
	elapsed := time.Since(start)
	if err != nil {
		metrics.UpstreamLatency.WithLabelValues(op, "error").Observe(elapsed.Seconds())
		c.log.Debug("upstream request failed", "op", op, "method", method, "path", req.Path, "error", err)
		return nil, &domain.TransportError{Op: method + " " + req.Path, Err: err}
	}

	code := resp.StatusCode()
	metrics.UpstreamLatency.WithLabelValues(op, strconv.Itoa(code)).Observe(elapsed.Seconds())
	c.log.Debug("upstream request", "op", op, "method", method, "path", req.Path,
		"status", code, "duration", elapsed)

	body := resp.Body()
	if !resp.IsSuccess() {
		return nil, &domain.HTTPError{
			StatusCode: code,
			Body:       body,
			Envelope:   ParseErrorEnvelope(body),
		}
	}
	return &Response{StatusCode: code, Body: body, Duration: elapsed}, nil
}

func (c *Client) withTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.NoTimeout {
		return context.WithCancel(ctx)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// checkPath only accepts paths relative to the base URL.
func checkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &domain.ValidationError{Msg: "upstream path is required"}
	}
	if strings.Contains(path, "://") || strings.HasPrefix(path, "//") {
		return &domain.ValidationError{Msg: fmt.Sprintf("upstream path must be relative to the base URL: %q", path)}
	}
	return nil
}

// restyLogger routes resty's own diagnostics into slog.
type restyLogger struct{ l *slog.Logger }

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Debug(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
