package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/claimpilot/console/internal/api"
)

type fakeWorkflowClient struct {
	createErr   error
	processErr  error
	result      *api.WorkflowResult
	createCalls int
	processed   []string
}

func (f *fakeWorkflowClient) CreateClaim(_ context.Context, draft api.ClaimDraft) (*api.Claim, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.Claim{ID: "srv-1", ClaimID: draft.ClaimID}, nil
}

func (f *fakeWorkflowClient) ProcessClaim(_ context.Context, claimID string) (*api.WorkflowResult, error) {
	f.processed = append(f.processed, claimID)
	if f.processErr != nil {
		return nil, f.processErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &api.WorkflowResult{Success: true, ClaimID: claimID, AppealID: "AP-1"}, nil
}

func sampleDraft() api.ClaimDraft {
	return api.ClaimDraft{
		ClaimID:           "CLM-1",
		DenialCode:        "CO-197",
		DenialDescription: "No prior auth",
		PayerName:         "Acme",
	}
}

func TestSubmissionVisitsPhasesInOrder(t *testing.T) {
	client := &fakeWorkflowClient{
		result: &api.WorkflowResult{Success: true, ClaimID: "CLM-1", AppealID: "AP-1", DraftText: "Dear Acme..."},
	}
	c := New(client)
	var seen []Phase
	seen = append(seen, c.Phase())

	if err := c.Begin(sampleDraft()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	seen = append(seen, c.Phase())

	if err := c.CreateClaim(context.Background()); err != nil {
		t.Fatalf("create claim: %v", err)
	}
	seen = append(seen, c.Phase())

	result, err := c.Process(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	seen = append(seen, c.Phase())

	want := []Phase{PhaseIdle, PhaseSubmitting, PhaseProcessing, PhaseSucceeded}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("phase order = %v, want %v", seen, want)
	}
	if result.AppealID != "AP-1" {
		t.Fatalf("appeal id = %q, want AP-1", result.AppealID)
	}
	if got := c.Snapshot().Result.DraftText; got != "Dear Acme..." {
		t.Fatalf("draft text = %q", got)
	}
}

func TestCreateFailureSkipsProcessing(t *testing.T) {
	client := &fakeWorkflowClient{
		createErr: &api.APIError{StatusCode: 400, Detail: "duplicate claim_id"},
	}
	c := New(client)
	if err := c.Begin(sampleDraft()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.CreateClaim(context.Background()); err == nil {
		t.Fatalf("expected creation error")
	}
	if got := c.Phase(); got != PhaseFailed {
		t.Fatalf("phase = %s, want failed", got)
	}
	if len(client.processed) != 0 {
		t.Fatalf("workflow phase attempted after creation failure: %v", client.processed)
	}
	if got := c.FailureMessage(); got != "duplicate claim_id" {
		t.Fatalf("failure message = %q, want server detail verbatim", got)
	}
}

func TestProcessFailureLandsInFailed(t *testing.T) {
	client := &fakeWorkflowClient{processErr: errors.New("connection reset")}
	c := New(client)
	if err := c.Begin(sampleDraft()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.CreateClaim(context.Background()); err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if _, err := c.Process(context.Background()); err == nil {
		t.Fatalf("expected processing error")
	}
	if got := c.Phase(); got != PhaseFailed {
		t.Fatalf("phase = %s, want failed", got)
	}
	// A failed submission is resubmittable without an explicit dismiss.
	if err := c.Begin(sampleDraft()); err != nil {
		t.Fatalf("begin after failure: %v", err)
	}
	if client.createCalls != 2 {
		t.Fatalf("resubmission did not re-issue claim creation, calls = %d", client.createCalls)
	}
}

func TestBeginRefusesOverlap(t *testing.T) {
	c := New(&fakeWorkflowClient{})
	if err := c.Begin(sampleDraft()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.Begin(sampleDraft()); !errors.Is(err, ErrInFlight) {
		t.Fatalf("overlapping begin = %v, want ErrInFlight", err)
	}
	if err := c.CreateClaim(context.Background()); err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if err := c.Begin(sampleDraft()); !errors.Is(err, ErrInFlight) {
		t.Fatalf("begin during processing = %v, want ErrInFlight", err)
	}
}

func TestPhaseGuards(t *testing.T) {
	c := New(&fakeWorkflowClient{})
	if err := c.CreateClaim(context.Background()); err == nil {
		t.Fatalf("create claim from idle should fail")
	}
	if _, err := c.Process(context.Background()); err == nil {
		t.Fatalf("process from idle should fail")
	}
}

func TestDismissClearsTerminalState(t *testing.T) {
	client := &fakeWorkflowClient{}
	c := New(client)
	if err := c.Begin(sampleDraft()); err != nil {
		t.Fatal(err)
	}
	// Dismiss mid-flight is a no-op.
	c.Dismiss()
	if got := c.Phase(); got != PhaseSubmitting {
		t.Fatalf("dismiss during submission changed phase to %s", got)
	}
	if err := c.CreateClaim(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Dismiss()
	snap := c.Snapshot()
	if snap.Phase != PhaseIdle || snap.Result != nil || snap.Err != nil {
		t.Fatalf("dismiss left state %+v", snap)
	}
}
