// Package httpapi reaches the external collaborators over JSON REST.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

const maxErrorBody = 4 << 10

// ClientConfig holds the connection settings of one collaborator
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a small JSON-over-HTTP client whose failures are classified
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new Client instance
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// StatusError is a non-2xx answer
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// ClassifyStatus maps an HTTP status to a failure kind
func ClassifyStatus(code int) domain.ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return domain.ErrorKindAuthentication
	case code == http.StatusTooManyRequests:
		return domain.ErrorKindRateLimited
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return domain.ErrorKindTimeout
	case code == http.StatusBadRequest, code == http.StatusNotFound,
		code == http.StatusConflict, code == http.StatusUnprocessableEntity:
		return domain.ErrorKindInvalidInput
	case code >= 500:
		return domain.ErrorKindTransientNetwork
	}
	return domain.ErrorKindUnknown
}

// do sends in as JSON and decodes the response into out when non-nil
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return ports.NewCollaboratorError(domain.ErrorKindInvalidInput, fmt.Errorf("failed to marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return ports.NewCollaboratorError(domain.ErrorKindInvalidInput, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		kind := domain.ErrorKindTransientNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = domain.ErrorKindTimeout
		}
		return ports.NewCollaboratorError(kind, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	c.logger.Debug("Collaborator call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
		return ports.NewCollaboratorError(ClassifyStatus(resp.StatusCode), statusErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ports.NewCollaboratorError(domain.ErrorKindTransientNetwork, fmt.Errorf("failed to decode %s %s response: %w", method, path, err))
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
