// Package webhook posts analysis reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ccollicutt/halog/pkg/config"
	"github.com/ccollicutt/halog/pkg/output"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// EventAnalysis is the event name of every payload.
const EventAnalysis = "halog.analysis"

// maxResponseBody bounds how much of a response is kept.
const maxResponseBody = 1 << 20

// Payload is the JSON body posted to each endpoint.
type Payload struct {
	Event     string         `json:"event"`
	SentAt    time.Time      `json:"sent_at"`
	HasIssues bool           `json:"has_issues"`
	Report    *output.Report `json:"report"`
}

// Client sends analysis reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithLogger sets the logger used by Notify.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a new webhook client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		userAgent:  "halog-webhook",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	Name       string
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts an analysis report to a webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	payload, err := json.Marshal(Payload{
		Event:     EventAnalysis,
		SentAt:    start.UTC(),
		HasIssues: report.HasIssues(),
		Report:    report,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to marshal report: %w", err))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}

// ShouldFire decides whether a webhook with trigger fires for a report.
func ShouldFire(trigger config.WebhookTrigger, hasIssues bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasIssues
	}
}

// Notify sends report to every hook whose trigger fires and returns one
// Response per request made. Failures are logged, never returned, so a
// broken endpoint cannot fail an analysis.
func (c *Client) Notify(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) []*Response {
	var out []*Response
	for _, wh := range hooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		if !ShouldFire(wh.Trigger, report.HasIssues()) {
			c.logger.Debug("webhook skipped", zap.String("webhook", name), zap.String("trigger", string(wh.Trigger)))
			continue
		}

		resp := c.Send(ctx, report, SendOptions{URL: wh.URL, Token: wh.Token, Timeout: wh.Timeout})
		resp.Name = name
		out = append(out, resp)

		if resp.Success() {
			c.logger.Info("webhook sent",
				zap.String("webhook", name),
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", resp.Duration))
		} else {
			c.logger.Warn("webhook failed", zap.String("webhook", name), zap.Error(resp.Error))
		}
	}
	return out
}
