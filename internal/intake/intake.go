// Package intake drives the two-phase claim submission: create the claim
// record, then run the remote generation workflow against it. The phases are
// kept as an explicit tagged state so the console can render "submitting"
// and "processing" as genuinely different moments; the workflow step takes
// several seconds while claim creation is near-instant.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/claimpilot/console/internal/api"
)

// Phase is the observable submission state. Transitions are strictly
// Idle -> Submitting -> Processing -> Succeeded|Failed, with Failed also
// reachable from Submitting when claim creation is rejected. The processing
// phase is never skipped after a successful creation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseProcessing
	PhaseSucceeded
	PhaseFailed
)

// String returns the operator-facing phase label.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseProcessing:
		return "processing"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// ErrInFlight is returned when a new submission begins while another is
// still making network calls.
var ErrInFlight = errors.New("intake: a submission is already in flight")

// workflowClient is the slice of the API client the controller needs.
type workflowClient interface {
	CreateClaim(ctx context.Context, draft api.ClaimDraft) (*api.Claim, error)
	ProcessClaim(ctx context.Context, claimID string) (*api.WorkflowResult, error)
}

// State is a point-in-time snapshot of the controller. Result is set only in
// PhaseSucceeded and Err only in PhaseFailed.
type State struct {
	Phase  Phase
	Draft  api.ClaimDraft
	Result *api.WorkflowResult
	Err    error
}

// Controller owns the submission state machine. Methods are safe to call
// from bubbletea commands running off the update loop.
type Controller struct {
	mu     sync.Mutex
	client workflowClient

	phase  Phase
	draft  api.ClaimDraft
	result *api.WorkflowResult
	err    error
}

// New creates an idle controller backed by the given client.
func New(client workflowClient) *Controller {
	return &Controller{client: client, phase: PhaseIdle}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Phase: c.phase, Draft: c.draft, Result: c.result, Err: c.err}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Begin stages a new submission. Required-field validation happens at the
// calling surface; the controller only refuses to overlap in-flight work.
// A terminal phase (Succeeded or Failed) is re-submittable without an
// explicit Dismiss.
func (c *Controller) Begin(draft api.ClaimDraft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting || c.phase == PhaseProcessing {
		return ErrInFlight
	}
	c.phase = PhaseSubmitting
	c.draft = draft
	c.result = nil
	c.err = nil
	return nil
}

// CreateClaim runs phase one. On success the controller advances to
// PhaseProcessing; on failure it lands in PhaseFailed and the workflow phase
// is never attempted. Claim IDs are treated as idempotent creation keys: a
// resubmission after a partial failure re-issues the same ID and surfaces
// whatever the service says about it.
func (c *Controller) CreateClaim(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseSubmitting {
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("intake: create claim called in phase %s", phase)
	}
	draft := c.draft
	c.mu.Unlock()

	_, err := c.client.CreateClaim(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.phase = PhaseFailed
		c.err = err
		return err
	}
	c.phase = PhaseProcessing
	return nil
}

// Process runs phase two, blocking until the remote workflow finishes. The
// returned result may carry an empty draft text when generation partially
// failed upstream; the appeal still lands in the review queue.
func (c *Controller) Process(ctx context.Context) (*api.WorkflowResult, error) {
	c.mu.Lock()
	if c.phase != PhaseProcessing {
		phase := c.phase
		c.mu.Unlock()
		return nil, fmt.Errorf("intake: process called in phase %s", phase)
	}
	claimID := c.draft.ClaimID
	c.mu.Unlock()

	result, err := c.client.ProcessClaim(ctx, claimID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.phase = PhaseFailed
		c.err = err
		return nil, err
	}
	c.phase = PhaseSucceeded
	c.result = result
	return result, nil
}

// Dismiss clears a terminal result or error back to idle. It is a no-op
// while a submission is in flight.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting || c.phase == PhaseProcessing {
		return
	}
	c.phase = PhaseIdle
	c.draft = api.ClaimDraft{}
	c.result = nil
	c.err = nil
}

// FailureMessage returns the human-readable message for the last failure,
// preferring the structured service detail over the transport error text.
func (c *Controller) FailureMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ""
	}
	var apiErr *api.APIError
	if errors.As(c.err, &apiErr) {
		return apiErr.Error()
	}
	return c.err.Error()
}
