package apiclient

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
	"strconv"
	"strings"
	"time"

	"binder/internal/api"
)

// ErrUnavailable marks failures caused by the daemon API being unreachable
// rather than by a rejected request.
var ErrUnavailable = errors.New("daemon API unavailable")

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for the configured bind address. An empty address
// returns a nil client so callers can treat the API as disabled.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No global timeout; follow-mode log requests block until the
		// caller cancels. Per-call deadlines come from the context.
		http: &http.Client{},
	}, nil
}

// Health probes the unauthenticated liveness endpoint with a short
// deadline, reporting ErrUnavailable when the daemon is not listening.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return ErrUnavailable
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var payload api.HealthResponse
	if err := c.getJSON(probeCtx, "/api/health", nil, &payload); err != nil {
		return err
	}
	if !strings.EqualFold(payload.Status, "ok") {
		return fmt.Errorf("daemon reported health %q", payload.Status)
	}
	return nil
}

// Status retrieves daemon runtime information.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var payload api.DaemonStatus
	if err := c.getJSON(ctx, "/api/status", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// QueueList returns queue items optionally filtered by statuses.
func (c *Client) QueueList(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var payload api.QueueListResponse
	if err := c.getJSON(ctx, "/api/queue", values, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// QueueStats returns queue counts keyed by status.
func (c *Client) QueueStats(ctx context.Context) (map[string]int, error) {
	var payload api.QueueStatsResponse
	if err := c.getJSON(ctx, "/api/queue/stats", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Counts, nil
}

// ReviewList returns the scans waiting for candidate confirmation.
func (c *Client) ReviewList(ctx context.Context) ([]api.QueueItem, error) {
	var payload api.QueueListResponse
	if err := c.getJSON(ctx, "/api/review", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// Describe fetches a single scan, returning nil when the id is unknown.
func (c *Client) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	var payload api.QueueItemResponse
	err := c.getJSON(ctx, scanPath(id), nil, &payload)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payload.Item, nil
}

// SubmitScan uploads an image for identification.
func (c *Client) SubmitScan(ctx context.Context, req api.ScanSubmitRequest) (api.SubmitResult, error) {
	var payload api.SubmitResult
	if err := c.postJSON(ctx, "/api/scans", req, &payload); err != nil {
		return api.SubmitResult{}, err
	}
	return payload, nil
}

// Select confirms a candidate (or the manual path) for a reviewed scan.
func (c *Client) Select(ctx context.Context, id int64, req api.SelectRequest) (api.SelectResult, error) {
	var payload api.SelectResult
	if err := c.postJSON(ctx, scanPath(id)+"/select", req, &payload); err != nil {
		return api.SelectResult{}, err
	}
	return payload, nil
}

// SetPrice records a hand-edited price for a scan.
func (c *Client) SetPrice(ctx context.Context, id int64, req api.PriceRequest) (api.PriceResult, error) {
	var payload api.PriceResult
	if err := c.postJSON(ctx, scanPath(id)+"/price", req, &payload); err != nil {
		return api.PriceResult{}, err
	}
	return payload, nil
}

// Taxonomy returns the attribute vocabulary the daemon resolves against.
func (c *Client) Taxonomy(ctx context.Context) (api.TaxonomyResponse, error) {
	var payload api.TaxonomyResponse
	if err := c.getJSON(ctx, "/api/taxonomy", nil, &payload); err != nil {
		return api.TaxonomyResponse{}, err
	}
	return payload, nil
}

// RefreshTaxonomy forces a snapshot reload and returns the fresh copy.
func (c *Client) RefreshTaxonomy(ctx context.Context) (api.TaxonomyResponse, error) {
	var payload api.TaxonomyResponse
	if err := c.postJSON(ctx, "/api/taxonomy/refresh", nil, &payload); err != nil {
		return api.TaxonomyResponse{}, err
	}
	return payload, nil
}

// RetryItems resets failed scans back to pending. An empty id list retries
// every failed scan.
func (c *Client) RetryItems(ctx context.Context, ids []int64) (int64, error) {
	var payload api.UpdatedResponse
	body := map[string][]int64{"ids": ids}
	if err := c.postJSON(ctx, "/api/queue/retry", body, &payload); err != nil {
		return 0, err
	}
	return payload.Updated, nil
}

// StopItems parks the given scans for review with a user-stop reason.
func (c *Client) StopItems(ctx context.Context, ids []int64) (int64, error) {
	var payload api.UpdatedResponse
	body := map[string][]int64{"ids": ids}
	if err := c.postJSON(ctx, "/api/queue/stop", body, &payload); err != nil {
		return 0, err
	}
	return payload.Updated, nil
}

// ClearQueue removes items by scope: "all", "completed", or "failed".
func (c *Client) ClearQueue(ctx context.Context, scope string) (int64, error) {
	var payload api.RemovedResponse
	body := map[string]string{"scope": scope}
	if err := c.postJSON(ctx, "/api/queue/clear", body, &payload); err != nil {
		return 0, err
	}
	return payload.Removed, nil
}

// RemoveItem deletes one queue entry, reporting whether it existed.
func (c *Client) RemoveItem(ctx context.Context, id int64) (bool, error) {
	var payload api.RemovedResponse
	if err := c.request(ctx, http.MethodDelete, "/api/queue/"+strconv.FormatInt(id, 10), nil, nil, &payload); err != nil {
		return false, err
	}
	return payload.Removed > 0, nil
}

// TailLogs fetches structured log events from the daemon stream.
func (c *Client) TailLogs(ctx context.Context, query url.Values) (api.LogStreamResponse, error) {
	var payload api.LogStreamResponse
	if err := c.getJSON(ctx, "/api/logs/tail", query, &payload); err != nil {
		return api.LogStreamResponse{}, err
	}
	return payload, nil
}

func scanPath(id int64) string {
	return "/api/scans/" + strconv.FormatInt(id, 10)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.request(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError carries the HTTP status of a rejected API request so callers
// can distinguish not-found and auth failures from daemon faults.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon API returned status %d", e.Code)
}

func decodeError(resp *http.Response) error {
	var payload api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err != nil {
		payload.Error = ""
	}
	return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(payload.Error)}
}

func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// IsUnavailable reports whether an error means the daemon API could not be
// reached at all, as opposed to reaching it and being refused.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) ||
		errors.As(err, &opErr) ||
		errors.Is(err, context.DeadlineExceeded)
}
