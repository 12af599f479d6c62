package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/claimpilot/console/internal/api"
)

type fakeTrailClient struct {
	entries   []api.AuditEntry
	agents    []api.Agent
	listErr   error
	agentsErr error
	queries   []string
	limits    []int
}

func (f *fakeTrailClient) ListAuditEntries(_ context.Context, agentName string, limit int) ([]api.AuditEntry, error) {
	f.queries = append(f.queries, agentName)
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []api.AuditEntry
	for _, entry := range f.entries {
		if agentName == "" || (entry.Agent != nil && *entry.Agent == agentName) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeTrailClient) ListAgents(_ context.Context) ([]api.Agent, error) {
	if f.agentsErr != nil {
		return nil, f.agentsErr
	}
	return f.agents, nil
}

func strptr(s string) *string { return &s }

func trailEntries() []api.AuditEntry {
	var entries []api.AuditEntry
	for i := 0; i < 3; i++ {
		entries = append(entries, api.AuditEntry{
			ID:        fmt.Sprintf("log-pr-%d", i),
			Agent:     strptr("PolicyRetrieval"),
			Action:    strptr("retrieve_policies"),
			Timestamp: strptr("2026-08-30T11:04:05Z"),
		})
	}
	entries = append(entries, api.AuditEntry{ID: "log-sys"})
	return entries
}

func TestFilterChangeTriggersScopedFetch(t *testing.T) {
	client := &fakeTrailClient{entries: trailEntries()}
	viewer := NewViewer(client, 50)

	if _, err := viewer.Fetch(context.Background()); err != nil {
		t.Fatalf("initial fetch: %v", err)
	}
	if !viewer.SetFilter("PolicyRetrieval") {
		t.Fatalf("filter change not reported")
	}
	entries, err := viewer.Fetch(context.Background())
	if err != nil {
		t.Fatalf("scoped fetch: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("scoped entries = %d, want 3", len(entries))
	}
	for _, entry := range entries {
		if AgentLabel(entry) != "PolicyRetrieval" {
			t.Fatalf("entry agent label = %q", AgentLabel(entry))
		}
	}
	if len(client.queries) != 2 || client.queries[1] != "PolicyRetrieval" {
		t.Fatalf("queries = %v, want exactly one scoped re-fetch", client.queries)
	}
	if client.limits[1] != 50 {
		t.Fatalf("limit = %d, want 50", client.limits[1])
	}
}

func TestReselectingSameFilterIsStable(t *testing.T) {
	client := &fakeTrailClient{entries: trailEntries()}
	viewer := NewViewer(client, 50)
	viewer.SetFilter("PolicyRetrieval")

	first, err := viewer.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if viewer.SetFilter("PolicyRetrieval") {
		t.Fatalf("unchanged filter reported as changed")
	}
	second, err := viewer.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("same filter yielded different sets:\n%v\n%v", first, second)
	}
}

func TestFetchCapsAtPageLimit(t *testing.T) {
	client := &fakeTrailClient{}
	for i := 0; i < 80; i++ {
		client.entries = append(client.entries, api.AuditEntry{ID: fmt.Sprintf("log-%d", i)})
	}
	viewer := NewViewer(client, 50)
	entries, err := viewer.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 50 {
		t.Fatalf("displayed entries = %d, want cap of 50", len(entries))
	}
	if len(viewer.Entries()) != 50 {
		t.Fatalf("retained entries = %d, want 50", len(viewer.Entries()))
	}
}

func TestFetchFailureDowngradesToEmpty(t *testing.T) {
	client := &fakeTrailClient{entries: trailEntries()}
	viewer := NewViewer(client, 50)
	if _, err := viewer.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(viewer.Entries()) == 0 {
		t.Fatalf("expected populated trail before failure")
	}
	client.listErr = errors.New("connection refused")
	entries, err := viewer.Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected fetch error for journaling")
	}
	if len(entries) != 0 || len(viewer.Entries()) != 0 {
		t.Fatalf("failed fetch did not clear the displayed set")
	}
}

func TestPayloadSectionsOmitAbsentBlocks(t *testing.T) {
	entry := api.AuditEntry{ID: "log-1"}
	if sections := PayloadSections(entry); len(sections) != 0 {
		t.Fatalf("empty entry rendered %d payload sections", len(sections))
	}
	entry.OutputData = map[string]any{"category": "Coverage"}
	entry.Metadata = map[string]any{"duration_ms": 412}
	sections := PayloadSections(entry)
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if sections[0].Title != "Output Data" || sections[1].Title != "Metadata" {
		t.Fatalf("section order = %q, %q", sections[0].Title, sections[1].Title)
	}
}

func TestRenderFallbacks(t *testing.T) {
	entry := api.AuditEntry{ID: "log-1"}
	if got := AgentLabel(entry); got != FallbackAgent {
		t.Fatalf("agent label = %q, want %q", got, FallbackAgent)
	}
	if got := ActionLabel(entry); got != FallbackAction {
		t.Fatalf("action label = %q, want %q", got, FallbackAction)
	}
	if got := TimestampLabel(entry); got != FallbackTimestamp {
		t.Fatalf("timestamp label = %q, want %q", got, FallbackTimestamp)
	}

	entry.Agent = strptr("AppealDraftingAgent")
	if got := AgentLabel(entry); got != "AppealDrafting" {
		t.Fatalf("agent label = %q, want suffix trimmed", got)
	}
	entry.Timestamp = strptr("not-a-time")
	if got := TimestampLabel(entry); got != FallbackTimestamp {
		t.Fatalf("unparseable timestamp label = %q", got)
	}
	entry.Timestamp = strptr("2026-08-30T11:04:05Z")
	if got := TimestampLabel(entry); got == FallbackTimestamp {
		t.Fatalf("valid timestamp fell back to %q", got)
	}
}

func TestAgentsFailureReturnsEmpty(t *testing.T) {
	client := &fakeTrailClient{agentsErr: errors.New("boom")}
	viewer := NewViewer(client, 50)
	agents, err := viewer.Agents(context.Background())
	if err == nil {
		t.Fatalf("expected agents error for journaling")
	}
	if len(agents) != 0 {
		t.Fatalf("agents = %v, want empty on failure", agents)
	}
}
