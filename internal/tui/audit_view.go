package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/claimpilot/console/internal/api"
	"github.com/claimpilot/console/internal/audit"
)

type auditFetchDoneMsg struct {
	entries []api.AuditEntry
	err     error
}

type auditAgentsDoneMsg struct {
	agents []api.Agent
	err    error
}

// auditView renders the execution trail: collapsed one-line rows, expandable
// in place, scoped by a cycling agent filter.
type auditView struct {
	app *App

	agents   []string
	agentIdx int // 0 means all agents
	cursor   int
	expanded map[string]bool
	loading  bool
	width    int
}

func newAuditView(app *App) *auditView {
	return &auditView{app: app, expanded: make(map[string]bool)}
}

func (v *auditView) Init() tea.Cmd {
	return tea.Batch(v.fetchCmd(), v.agentsCmd())
}

func (v *auditView) resize(width, height int) {
	v.width = width
}

func (v *auditView) fetchCmd() tea.Cmd {
	v.loading = true
	ctl := v.app.auditCtl
	return func() tea.Msg {
		entries, err := ctl.Fetch(context.Background())
		return auditFetchDoneMsg{entries: entries, err: err}
	}
}

func (v *auditView) agentsCmd() tea.Cmd {
	ctl := v.app.auditCtl
	return func() tea.Msg {
		agents, err := ctl.Agents(context.Background())
		return auditAgentsDoneMsg{agents: agents, err: err}
	}
}

func (v *auditView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case auditFetchDoneMsg:
		return v.handleFetchDone(msg)
	case auditAgentsDoneMsg:
		return v.handleAgentsDone(msg)
	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return nil
}

func (v *auditView) handleFetchDone(msg auditFetchDoneMsg) tea.Cmd {
	v.loading = false
	if msg.err != nil {
		// Degraded, not broken: the trail shows empty and the journal keeps
		// the reason.
		v.app.logWarn("Audit · fetch failed, showing empty trail: %v", msg.err)
		v.app.setStatus("Audit trail unavailable")
	} else {
		scope := v.app.auditCtl.Filter()
		if scope == "" {
			scope = "all agents"
		}
		v.app.setStatus(fmt.Sprintf("%d audit entr(ies) · %s", len(msg.entries), scope))
	}
	if v.cursor >= len(msg.entries) {
		v.cursor = max(0, len(msg.entries)-1)
	}
	return nil
}

func (v *auditView) handleAgentsDone(msg auditAgentsDoneMsg) tea.Cmd {
	if msg.err != nil {
		v.app.logWarn("Audit · agent list unavailable: %v", msg.err)
		return nil
	}
	names := make([]string, 0, len(msg.agents))
	for _, agent := range msg.agents {
		names = append(names, agent.Name)
	}
	v.agents = names
	return nil
}

func (v *auditView) handleKey(msg tea.KeyMsg) tea.Cmd {
	entries := v.app.auditCtl.Entries()
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(entries)-1 {
			v.cursor++
		}
	case "enter", " ":
		if v.cursor < len(entries) {
			id := entries[v.cursor].ID
			v.expanded[id] = !v.expanded[id]
		}
	case "tab":
		return v.cycleFilter(1)
	case "shift+tab":
		return v.cycleFilter(-1)
	case "ctrl+r":
		return v.fetchCmd()
	}
	return nil
}

// cycleFilter steps through "all agents" plus each known agent. A changed
// scope always re-queries the service; the page cap makes client-side
// narrowing unsound.
func (v *auditView) cycleFilter(step int) tea.Cmd {
	if len(v.agents) == 0 {
		return nil
	}
	span := len(v.agents) + 1
	v.agentIdx = (v.agentIdx + step + span) % span
	filter := ""
	if v.agentIdx > 0 {
		filter = v.agents[v.agentIdx-1]
	}
	if !v.app.auditCtl.SetFilter(filter) {
		return nil
	}
	v.cursor = 0
	return v.fetchCmd()
}

func (v *auditView) View() string {
	if v.loading {
		return "Loading audit trail..."
	}
	entries := v.app.auditCtl.Entries()

	scope := "All Agents"
	if filter := v.app.auditCtl.Filter(); filter != "" {
		scope = filter
	}
	header := lipgloss.NewStyle().Bold(true).Render("Audit Trail") +
		mutedTextStyle.Render("  ·  filter: "+scope)

	if len(entries) == 0 {
		return header + "\n\nNo audit entries to display\n\n" +
			mutedTextStyle.Render("tab → cycle agent filter    ctrl+r → refresh    esc → menu")
	}

	var rows []string
	for i, entry := range entries {
		rows = append(rows, v.renderEntry(entry, i == v.cursor))
	}
	hint := "↑/↓ → select    enter → expand/collapse    tab → cycle agent filter    ctrl+r → refresh    esc → menu"
	return header + "\n\n" + strings.Join(rows, "\n") + "\n\n" + mutedTextStyle.Render(hint)
}

func (v *auditView) renderEntry(entry api.AuditEntry, active bool) string {
	marker := "  "
	caret := "▸"
	if v.expanded[entry.ID] {
		caret = "▾"
	}
	line := fmt.Sprintf("%s %s · %s · %s",
		caret,
		audit.AgentLabel(entry),
		audit.ActionLabel(entry),
		audit.TimestampLabel(entry))
	if active {
		marker = "▸ "
		line = lipgloss.NewStyle().Bold(true).Render(line)
	}
	out := marker + line
	if !v.expanded[entry.ID] {
		return out
	}

	sections := audit.PayloadSections(entry)
	if len(sections) == 0 {
		return out + "\n" + mutedTextStyle.Render("    (no payload recorded)")
	}
	var blocks []string
	for _, section := range sections {
		blocks = append(blocks, "    "+section.Title+":\n"+indentJSON(section.Data, "      "))
	}
	return out + "\n" + strings.Join(blocks, "\n")
}

func indentJSON(data map[string]any, prefix string) string {
	raw, err := json.MarshalIndent(data, prefix, "  ")
	if err != nil {
		return prefix + fmt.Sprintf("%v", data)
	}
	return prefix + string(raw)
}
