package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds ordinary resource calls.
	DefaultTimeout = 10 * time.Second
	// DefaultProcessTimeout bounds the synchronous workflow call, which
	// typically runs 8-15 seconds on the service side.
	DefaultProcessTimeout = 90 * time.Second

	maxErrorBodyBytes = 1 << 16
)

// APIError is a non-2xx response from the appeal service. Detail carries the
// structured server message when one was provided.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Detail) != "" {
		return e.Detail
	}
	return fmt.Sprintf("appeal service returned %s", http.StatusText(e.StatusCode))
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient replaces the transport used for ordinary calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides the per-request timeout for ordinary calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithProcessTimeout overrides the timeout for the workflow-processing call.
func WithProcessTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.process.Timeout = d
		}
	}
}

// Client consumes the appeal service REST surface. All methods take a context
// and return either a decoded payload or an error; non-2xx responses surface
// as *APIError.
type Client struct {
	baseURL string
	http    *http.Client
	process *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		process: &http.Client{Timeout: DefaultProcessTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL reports the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateClaim submits a new claim record.
func (c *Client) CreateClaim(ctx context.Context, draft ClaimDraft) (*Claim, error) {
	var claim Claim
	if err := c.do(ctx, c.http, http.MethodPost, "/claims", draft, &claim); err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	return &claim, nil
}

// ProcessClaim runs the generation workflow for an already-created claim.
// The call blocks until the remote workflow completes or fails.
func (c *Client) ProcessClaim(ctx context.Context, claimID string) (*WorkflowResult, error) {
	body := struct {
		ClaimID string `json:"claim_id"`
	}{ClaimID: claimID}
	var result WorkflowResult
	if err := c.do(ctx, c.process, http.MethodPost, "/claims/process", body, &result); err != nil {
		return nil, fmt.Errorf("process claim: %w", err)
	}
	return &result, nil
}

// ListAppeals fetches appeals, optionally scoped to one status.
func (c *Client) ListAppeals(ctx context.Context, statusFilter string) ([]Appeal, error) {
	path := "/appeals"
	if statusFilter != "" {
		path += "?status_filter=" + url.QueryEscape(statusFilter)
	}
	var appeals []Appeal
	if err := c.do(ctx, c.http, http.MethodGet, path, nil, &appeals); err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	return appeals, nil
}

// AppealForClaim fetches the appeal generated for a specific claim.
func (c *Client) AppealForClaim(ctx context.Context, claimID string) (*Appeal, error) {
	var appeal Appeal
	path := "/appeals/claim/" + url.PathEscape(claimID)
	if err := c.do(ctx, c.http, http.MethodGet, path, nil, &appeal); err != nil {
		return nil, fmt.Errorf("appeal for claim %s: %w", claimID, err)
	}
	return &appeal, nil
}

// DecideAppeal records the reviewer decision. Feedback must be nil when
// approving; callers validate rejection feedback before reaching the wire.
func (c *Client) DecideAppeal(ctx context.Context, appealID string, approved bool, feedback *string) error {
	path := "/appeals/" + url.PathEscape(appealID) + "/approve"
	decision := Decision{Approved: approved, Feedback: feedback}
	if err := c.do(ctx, c.http, http.MethodPost, path, decision, nil); err != nil {
		return fmt.Errorf("decide appeal %s: %w", appealID, err)
	}
	return nil
}

// ListAuditEntries fetches up to limit audit entries, scoped to one agent
// when agentName is non-empty.
func (c *Client) ListAuditEntries(ctx context.Context, agentName string, limit int) ([]AuditEntry, error) {
	query := url.Values{}
	query.Set("agent_name", agentName)
	query.Set("limit", strconv.Itoa(limit))
	var entries []AuditEntry
	if err := c.do(ctx, c.http, http.MethodGet, "/audit?"+query.Encode(), nil, &entries); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// AuditTrailForClaim fetches the full execution trace recorded for a claim.
func (c *Client) AuditTrailForClaim(ctx context.Context, claimID string) ([]AuditEntry, error) {
	var entries []AuditEntry
	path := "/audit/claim/" + url.PathEscape(claimID)
	if err := c.do(ctx, c.http, http.MethodGet, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("audit trail for claim %s: %w", claimID, err)
	}
	return entries, nil
}

// ListAgents enumerates agent names for the audit filter control.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.do(ctx, c.http, http.MethodGet, "/audit/agents", nil, &agents); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// Health checks service reachability.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, c.http, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &health, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError extracts the structured detail string when the service
// provided one, otherwise falls back to the status text.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return apiErr
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Detail = strings.TrimSpace(payload.Detail)
	}
	return apiErr
}
