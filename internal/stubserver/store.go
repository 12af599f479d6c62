package stubserver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claimpilot/console/internal/api"
)

// The six workflow stages the stub replays, in execution order.
var workflowAgents = []string{
	"IntentRouterAgent",
	"DenialClassifierAgent",
	"PolicyRetrievalAgent",
	"AppealDraftingAgent",
	"ComplianceGuardrailAgent",
	"HumanApprovalAgent",
}

var stubCitations = []string{
	"Outpatient Services Coverage - Section 4.2.1",
	"Medical Necessity Criteria - Section 8.1.3",
	"Provider Network Requirements - Section 2.4",
}

// store holds the stub service's process-lifetime state. Audit entries are
// append-only; claims are immutable once created; appeals mutate exactly
// once, on the reviewer decision.
type store struct {
	mu      sync.Mutex
	clock   func() time.Time
	claims  map[string]api.Claim
	appeals []api.Appeal
	trail   []api.AuditEntry
}

func newStore(clock func() time.Time) *store {
	return &store{clock: clock, claims: map[string]api.Claim{}}
}

func (st *store) createClaim(draft api.ClaimDraft) (api.Claim, error) {
	switch {
	case strings.TrimSpace(draft.ClaimID) == "":
		return api.Claim{}, &requestError{status: 422, detail: "claim_id is required"}
	case strings.TrimSpace(draft.DenialCode) == "":
		return api.Claim{}, &requestError{status: 422, detail: "denial_code is required"}
	case strings.TrimSpace(draft.DenialDescription) == "":
		return api.Claim{}, &requestError{status: 422, detail: "denial_description is required"}
	case strings.TrimSpace(draft.PayerName) == "":
		return api.Claim{}, &requestError{status: 422, detail: "payer_name is required"}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.claims[draft.ClaimID]; exists {
		return api.Claim{}, &requestError{status: 400, detail: "duplicate claim_id"}
	}
	claim := api.Claim{
		ID:                uuid.NewString(),
		ClaimID:           draft.ClaimID,
		DenialCode:        draft.DenialCode,
		DenialDescription: draft.DenialDescription,
		PayerName:         draft.PayerName,
		PolicyText:        draft.PolicyText,
		CreatedAt:         st.clock(),
	}
	st.claims[draft.ClaimID] = claim
	return claim, nil
}

// runWorkflow replays the agent pipeline for a claim: one audit entry per
// stage, then a draft appeal ready for review.
func (st *store) runWorkflow(claimID string) (api.WorkflowResult, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	claim, ok := st.claims[claimID]
	if !ok {
		return api.WorkflowResult{}, &requestError{status: 404, detail: fmt.Sprintf("Claim %s not found", claimID)}
	}

	category := "Coverage"
	appealID := "AP-" + strings.ToUpper(uuid.NewString()[:8])
	draftText := draftLetter(claim)
	citations := append([]string(nil), stubCitations...)
	var issues []string
	if claim.PolicyText == nil || strings.TrimSpace(*claim.PolicyText) == "" {
		issues = append(issues, "No payer policy excerpt on file; citations rely on retrieved sections only")
	}

	for i, agent := range workflowAgents {
		st.appendEntryLocked(agent, agentAction(agent), claim, map[string]any{
			"step":     i + 1,
			"category": category,
		})
	}

	appeal := api.Appeal{
		ID:               appealID,
		ClaimID:          claim.ClaimID,
		DraftText:        draftText,
		PolicyCitations:  citations,
		ComplianceIssues: issues,
		Status:           api.StatusDraft,
		CreatedAt:        st.clock().Format(time.RFC3339),
	}
	st.appeals = append(st.appeals, appeal)

	return api.WorkflowResult{
		Success:          true,
		ClaimID:          claim.ClaimID,
		AppealID:         appealID,
		Category:         &category,
		DraftText:        draftText,
		PolicyCitations:  citations,
		ComplianceIssues: issues,
		Message:          "Appeal draft generated; awaiting human review",
	}, nil
}

func (st *store) listAppeals(statusFilter string) []api.Appeal {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []api.Appeal
	for _, appeal := range st.appeals {
		if statusFilter == "" || appeal.Status == statusFilter {
			out = append(out, appeal)
		}
	}
	return out
}

func (st *store) appealForClaim(claimID string) (api.Appeal, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := len(st.appeals) - 1; i >= 0; i-- {
		if st.appeals[i].ClaimID == claimID {
			return st.appeals[i], nil
		}
	}
	return api.Appeal{}, &requestError{status: 404, detail: fmt.Sprintf("No appeal for claim %s", claimID)}
}

func (st *store) decideAppeal(appealID string, decision api.Decision) (api.Appeal, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.appeals {
		if st.appeals[i].ID != appealID {
			continue
		}
		if st.appeals[i].Status != api.StatusDraft {
			return api.Appeal{}, &requestError{status: 409, detail: "appeal already decided"}
		}
		if decision.Approved {
			st.appeals[i].Status = api.StatusApproved
		} else {
			if decision.Feedback == nil || strings.TrimSpace(*decision.Feedback) == "" {
				return api.Appeal{}, &requestError{status: 422, detail: "feedback is required when rejecting"}
			}
			st.appeals[i].Status = api.StatusRejected
			st.appeals[i].Feedback = decision.Feedback
		}
		st.appendEntryLocked("", "appeal_decision", api.Claim{ClaimID: st.appeals[i].ClaimID}, map[string]any{
			"appeal_id": appealID,
			"approved":  decision.Approved,
		})
		return st.appeals[i], nil
	}
	return api.Appeal{}, &requestError{status: 404, detail: fmt.Sprintf("Appeal %s not found", appealID)}
}

// listTrail returns entries newest first, scoped and capped like the real
// service.
func (st *store) listTrail(agentName string, limit int) []api.AuditEntry {
	st.mu.Lock()
	defer st.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []api.AuditEntry
	for i := len(st.trail) - 1; i >= 0 && len(out) < limit; i-- {
		entry := st.trail[i]
		if agentName != "" && (entry.Agent == nil || *entry.Agent != agentName) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (st *store) trailForClaim(claimID string) ([]api.AuditEntry, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.claims[claimID]; !ok {
		return nil, &requestError{status: 404, detail: fmt.Sprintf("Claim %s not found", claimID)}
	}
	var out []api.AuditEntry
	for _, entry := range st.trail {
		if entry.ClaimID != nil && *entry.ClaimID == claimID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (st *store) listAgents() []api.Agent {
	st.mu.Lock()
	defer st.mu.Unlock()
	counts := map[string]int{}
	for _, entry := range st.trail {
		if entry.Agent != nil {
			counts[*entry.Agent]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	agents := make([]api.Agent, 0, len(names))
	for i, name := range names {
		agents = append(agents, api.Agent{
			ID:         fmt.Sprintf("%d", i+1),
			Name:       name,
			Executions: counts[name],
		})
	}
	return agents
}

func (st *store) appendEntryLocked(agent, action string, claim api.Claim, output map[string]any) {
	stamp := st.clock().Format(time.RFC3339)
	entry := api.AuditEntry{
		ID:        uuid.NewString(),
		Action:    &action,
		Timestamp: &stamp,
		InputData: map[string]any{
			"claim_id":    claim.ClaimID,
			"denial_code": claim.DenialCode,
		},
		OutputData: output,
	}
	if claim.ClaimID != "" {
		claimID := claim.ClaimID
		entry.ClaimID = &claimID
	}
	if agent != "" {
		name := agent
		entry.Agent = &name
	}
	st.trail = append(st.trail, entry)
}

func agentAction(agent string) string {
	switch agent {
	case "IntentRouterAgent":
		return "route_intent"
	case "DenialClassifierAgent":
		return "classify_denial"
	case "PolicyRetrievalAgent":
		return "retrieve_policies"
	case "AppealDraftingAgent":
		return "draft_appeal"
	case "ComplianceGuardrailAgent":
		return "check_compliance"
	case "HumanApprovalAgent":
		return "queue_for_review"
	}
	return "execute"
}

func draftLetter(claim api.Claim) string {
	return fmt.Sprintf(`Dear %s Appeals Committee,

Re: Appeal for Claim ID %s

We are writing to formally appeal the denial of the above-referenced claim
(denial code %s). Our review identified applicable policy provisions that
support coverage for the services rendered.

DENIAL ANALYSIS:
%s

POLICY EVIDENCE:
1. %s
2. %s
3. %s

REQUEST FOR RECONSIDERATION:
Based on the evidence presented and the applicable policy language, we
respectfully request that you reconsider this denial and approve payment.

Sincerely,
Provider Billing Department`,
		claim.PayerName, claim.ClaimID, claim.DenialCode, claim.DenialDescription,
		stubCitations[0], stubCitations[1], stubCitations[2])
}
