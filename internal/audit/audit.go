// Package audit reconstructs the backend execution trace for the viewer
// screen: a bounded, agent-filterable slice of immutable log entries with
// well-defined fallbacks for every optional field. Fetch failures downgrade
// to an empty trail so the page shell stays available.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/claimpilot/console/internal/api"
)

// DefaultPageLimit caps a single audit fetch when no limit is configured.
const DefaultPageLimit = 50

// Fallback labels for absent entry fields.
const (
	FallbackAgent     = "System"
	FallbackAction    = "Execution"
	FallbackTimestamp = "Unknown time"
)

// trailClient is the slice of the API client the viewer needs.
type trailClient interface {
	ListAuditEntries(ctx context.Context, agentName string, limit int) ([]api.AuditEntry, error)
	ListAgents(ctx context.Context) ([]api.Agent, error)
}

// Viewer owns the filter value and the currently displayed entry set.
type Viewer struct {
	mu     sync.Mutex
	client trailClient
	limit  int

	agentFilter string
	entries     []api.AuditEntry
	fetches     int
}

// NewViewer creates a viewer capped at pageLimit entries per fetch.
func NewViewer(client trailClient, pageLimit int) *Viewer {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Viewer{client: client, limit: pageLimit}
}

// SetFilter changes the agent scope. It reports whether the value changed;
// the caller re-fetches on change rather than filtering client-side, since
// the true entry universe may exceed the page size.
func (v *Viewer) SetFilter(agentName string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	agentName = strings.TrimSpace(agentName)
	if v.agentFilter == agentName {
		return false
	}
	v.agentFilter = agentName
	return true
}

// Filter returns the current agent scope, empty meaning all agents.
func (v *Viewer) Filter() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.agentFilter
}

// Fetch re-issues the query for the current filter. On failure the displayed
// set becomes empty and the error is returned for journaling only; the
// viewer never surfaces it to the operator beyond the empty state.
func (v *Viewer) Fetch(ctx context.Context) ([]api.AuditEntry, error) {
	v.mu.Lock()
	filter := v.agentFilter
	limit := v.limit
	v.fetches++
	v.mu.Unlock()

	entries, err := v.client.ListAuditEntries(ctx, filter, limit)
	if err != nil {
		entries = nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	v.mu.Lock()
	v.entries = entries
	v.mu.Unlock()
	return entries, err
}

// Entries returns the currently displayed set.
func (v *Viewer) Entries() []api.AuditEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]api.AuditEntry, len(v.entries))
	copy(out, v.entries)
	return out
}

// FetchCount reports how many fetches the viewer has issued.
func (v *Viewer) FetchCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fetches
}

// Agents enumerates agent names for the filter control. Failure degrades to
// an empty list, same as entry fetches.
func (v *Viewer) Agents(ctx context.Context) ([]api.Agent, error) {
	agents, err := v.client.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// Section is one expandable payload block of an entry. Absent blocks are
// never rendered as empty sections.
type Section struct {
	Title string
	Data  map[string]any
}

// PayloadSections returns the entry's present payload blocks in input,
// output, metadata order.
func PayloadSections(entry api.AuditEntry) []Section {
	var sections []Section
	if len(entry.InputData) > 0 {
		sections = append(sections, Section{Title: "Input Data", Data: entry.InputData})
	}
	if len(entry.OutputData) > 0 {
		sections = append(sections, Section{Title: "Output Data", Data: entry.OutputData})
	}
	if len(entry.Metadata) > 0 {
		sections = append(sections, Section{Title: "Metadata", Data: entry.Metadata})
	}
	return sections
}

// AgentLabel renders the originating agent, trimming the conventional
// "Agent" suffix and falling back to "System" for system-level events.
func AgentLabel(entry api.AuditEntry) string {
	if entry.Agent == nil {
		return FallbackAgent
	}
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(*entry.Agent), "Agent"))
	if name == "" {
		return FallbackAgent
	}
	return name
}

// ActionLabel renders the recorded action.
func ActionLabel(entry api.AuditEntry) string {
	if entry.Action == nil || strings.TrimSpace(*entry.Action) == "" {
		return FallbackAction
	}
	return strings.TrimSpace(*entry.Action)
}

// TimestampLabel renders the entry time in the local zone. Absent or
// unparseable stamps degrade to a fixed label instead of an error.
func TimestampLabel(entry api.AuditEntry) string {
	if entry.Timestamp == nil {
		return FallbackTimestamp
	}
	raw := strings.TrimSpace(*entry.Timestamp)
	if raw == "" {
		return FallbackTimestamp
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Local().Format("2006-01-02 15:04:05")
		}
	}
	return FallbackTimestamp
}
