// Package moltbook is the authenticated REST client for the Moltbook
// API. Every read response passes through the content filter before it
// reaches the caller, and every write goes through the local rate
// limiter before it touches the network.
package moltbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/moltguard/internal/config"
	"github.com/harun/moltguard/pkg/audit"
	"github.com/harun/moltguard/pkg/filter"
	"github.com/harun/moltguard/pkg/ratelimit"
)

// bodyPreviewLimit caps how much of an error body is kept for the
// audit trail.
const bodyPreviewLimit = 500

// Client talks to the Moltbook API on behalf of one agent.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	filter  *filter.Service
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// New creates a client from configuration. The filter service is
// required; the limiter may be nil, which disables local write limits.
func New(cfg config.MoltbookConfig, svc *filter.Service, limiter *ratelimit.Limiter, logger zerolog.Logger) (*Client, error) {
	if svc == nil {
		return nil, fmt.Errorf("moltbook: filter service is required")
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		filter:  svc,
		limiter: limiter,
		logger:  logger.With().Str("component", "moltbook").Logger(),
	}, nil
}

// request performs one authenticated API call and decodes the JSON
// response. API-level failures come back as *APIError; error bodies
// are scanned and audited before being surfaced.
func (c *Client) request(ctx context.Context, method, path string, body any, query url.Values) (map[string]any, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("moltbook: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("moltbook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &APIError{Message: "Request to Moltbook API timed out. Try again shortly.", Timeout: true}
		}
		return nil, fmt.Errorf("moltbook: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("moltbook: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.apiError(ctx, method, path, resp.StatusCode, raw)
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("moltbook: decode response: %w", err)
		}
	}
	return decoded, nil
}

// apiError builds the typed error for a failed call. The error body is
// untrusted text like any other and gets the same scan; the audit
// record keeps a sanitised preview.
func (c *Client) apiError(ctx context.Context, method, path string, status int, raw []byte) *APIError {
	detail := string(raw)
	if len(detail) > bodyPreviewLimit {
		detail = detail[:bodyPreviewLimit]
	}

	scan := c.filter.ScanText(ctx, detail)
	preview := scan.Sanitised
	if len(preview) > bodyPreviewLimit {
		preview = preview[:bodyPreviewLimit]
	}

	c.filter.Sink().Log(audit.Event{
		Event: audit.EventAPIError,
		Fields: map[string]any{
			"status_code":  status,
			"path":         path,
			"method":       method,
			"flagged":      !scan.Clean,
			"risk_score":   scan.RiskScore,
			"flags":        scan.Flags,
			"body_preview": preview,
		},
	})
	if m := c.filter.Metrics(); m != nil {
		m.AuditEventsTotal.WithLabelValues(audit.EventAPIError).Inc()
	}

	return &APIError{
		Status:  status,
		Message: statusMessage(status),
		Detail:  preview,
	}
}

// checkLimit consults the local rate limiter for a write action. On
// rejection no network call happens and the limiter error is returned
// as-is so callers can read the retry hint.
func (c *Client) checkLimit(action string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Check(action); err != nil {
		if m := c.filter.Metrics(); m != nil {
			m.RateLimitRejectionsTotal.WithLabelValues(action).Inc()
		}
		return err
	}
	return nil
}
