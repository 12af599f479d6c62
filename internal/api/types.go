package api

import "time"

// Appeal status values as reported by the appeal service.
const (
	StatusDraft    = "draft"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ClaimDraft carries the fields for a new claim submission.
type ClaimDraft struct {
	ClaimID           string  `json:"claim_id"`
	DenialCode        string  `json:"denial_code"`
	DenialDescription string  `json:"denial_description"`
	PayerName         string  `json:"payer_name"`
	PolicyText        *string `json:"policy_text,omitempty"`
}

// Claim is the service representation of a submitted claim. Claims are
// immutable once created; the server never returns a mutated claim.
type Claim struct {
	ID                string    `json:"id"`
	ClaimID           string    `json:"claim_id"`
	DenialCode        string    `json:"denial_code"`
	DenialDescription string    `json:"denial_description"`
	PayerName         string    `json:"payer_name"`
	PolicyText        *string   `json:"policy_text,omitempty"`
	Category          *string   `json:"category,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Appeal is a generated appeal letter awaiting or past human review.
// ComplianceIssues is an empty (or nil) slice for a clean draft; Feedback is
// only present after a rejection.
type Appeal struct {
	ID               string   `json:"id"`
	ClaimID          string   `json:"claim_id"`
	DraftText        string   `json:"draft_text"`
	PolicyCitations  []string `json:"policy_citations,omitempty"`
	ComplianceIssues []string `json:"compliance_issues,omitempty"`
	Status           string   `json:"status"`
	Feedback         *string  `json:"user_feedback,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
}

// WorkflowResult is the outcome of processing a claim through the remote
// agent workflow. DraftText may be empty when generation partially failed
// upstream; the appeal still exists in draft state.
type WorkflowResult struct {
	Success          bool     `json:"success"`
	ClaimID          string   `json:"claim_id"`
	AppealID         string   `json:"appeal_id"`
	Category         *string  `json:"category,omitempty"`
	DraftText        string   `json:"draft_text"`
	PolicyCitations  []string `json:"policy_citations,omitempty"`
	ComplianceIssues []string `json:"compliance_issues,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// Decision is the approve/reject payload. Feedback is always nil when
// approving and required (enforced client-side) when rejecting.
type Decision struct {
	Approved bool    `json:"approved"`
	Feedback *string `json:"feedback"`
}

// AuditEntry is one immutable record of a backend workflow step. Agent is nil
// for system-level events. Timestamp is kept as the raw wire value so an
// unparseable stamp degrades at render time instead of failing the decode.
type AuditEntry struct {
	ID         string         `json:"id"`
	ClaimID    *string        `json:"claim_id,omitempty"`
	AppealID   *string        `json:"appeal_id,omitempty"`
	Agent      *string        `json:"agent_name,omitempty"`
	Action     *string        `json:"action,omitempty"`
	Timestamp  *string        `json:"timestamp,omitempty"`
	InputData  map[string]any `json:"input_data,omitempty"`
	OutputData map[string]any `json:"output_data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Agent identifies a named backend workflow stage for the audit filter.
type Agent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Executions int    `json:"executions,omitempty"`
}

// Health is the service health report.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}
