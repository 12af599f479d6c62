package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/claimpilot/console/internal/api"
	"github.com/claimpilot/console/internal/review"
)

type reviewRefreshDoneMsg struct {
	err error
}

type reviewDecisionDoneMsg struct {
	appealID string
	approved bool
	err      error
}

// reviewView shows the pending appeal queue next to the selected draft and
// collects the reviewer's decision.
type reviewView struct {
	app *App

	feedback      textarea.Model
	cursor        int
	editing       bool
	loading       bool
	deciding      bool
	validationMsg string
	width         int
}

func newReviewView(app *App) *reviewView {
	feedback := textarea.New()
	feedback.Placeholder = "Feedback for the drafting agents (required when rejecting)"
	feedback.SetHeight(3)
	return &reviewView{app: app, feedback: feedback}
}

func (v *reviewView) Init() tea.Cmd {
	return v.refreshCmd()
}

func (v *reviewView) resize(width, height int) {
	v.width = width
	v.feedback.SetWidth(max(30, width-10))
}

func (v *reviewView) refreshCmd() tea.Cmd {
	v.loading = true
	ctl := v.app.reviewCtl
	return func() tea.Msg {
		return reviewRefreshDoneMsg{err: ctl.Refresh(context.Background())}
	}
}

func (v *reviewView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case reviewRefreshDoneMsg:
		return v.handleRefreshDone(msg)
	case reviewDecisionDoneMsg:
		return v.handleDecisionDone(msg)
	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	if v.editing {
		var cmd tea.Cmd
		v.feedback, cmd = v.feedback.Update(msg)
		v.app.reviewCtl.SetFeedback(v.feedback.Value())
		return cmd
	}
	return nil
}

func (v *reviewView) handleRefreshDone(msg reviewRefreshDoneMsg) tea.Cmd {
	v.loading = false
	if msg.err != nil {
		v.app.logError("Review · refresh failed: %v", msg.err)
		v.app.setStatus("Could not load pending appeals: " + msg.err.Error())
		return nil
	}
	appeals := v.app.reviewCtl.Appeals()
	if v.cursor >= len(appeals) {
		v.cursor = max(0, len(appeals)-1)
	}
	v.syncSelection(appeals)
	v.app.setStatus(fmt.Sprintf("%d appeal(s) pending review", len(appeals)))
	return nil
}

// syncSelection keeps the controller's selection pointed at the cursor row.
func (v *reviewView) syncSelection(appeals []api.Appeal) {
	if len(appeals) == 0 {
		return
	}
	target := appeals[v.cursor].ID
	if current, ok := v.app.reviewCtl.Selected(); ok && current.ID == target {
		return
	}
	if err := v.app.reviewCtl.Select(target); err == nil {
		v.feedback.SetValue(v.app.reviewCtl.Feedback())
	}
}

func (v *reviewView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.deciding {
		return nil
	}
	if v.editing {
		switch msg.String() {
		case "esc", "ctrl+f":
			v.editing = false
			v.feedback.Blur()
			return nil
		default:
			var cmd tea.Cmd
			v.feedback, cmd = v.feedback.Update(msg)
			v.app.reviewCtl.SetFeedback(v.feedback.Value())
			return cmd
		}
	}

	appeals := v.app.reviewCtl.Appeals()
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
			v.syncSelection(appeals)
		}
	case "down", "j":
		if v.cursor < len(appeals)-1 {
			v.cursor++
			v.syncSelection(appeals)
		}
	case "ctrl+f", "f":
		if len(appeals) > 0 {
			v.editing = true
			v.feedback.Focus()
			return textarea.Blink
		}
	case "ctrl+r":
		return v.refreshCmd()
	case "a":
		return v.decideCmd(true)
	case "r":
		return v.decideCmd(false)
	}
	return nil
}

func (v *reviewView) decideCmd(approved bool) tea.Cmd {
	selected, ok := v.app.reviewCtl.Selected()
	if !ok {
		v.app.setStatus("Select an appeal first")
		return nil
	}
	if !approved && strings.TrimSpace(v.app.reviewCtl.Feedback()) == "" {
		// Caught locally; nothing goes over the wire without feedback.
		v.validationMsg = "Rejection requires feedback for the drafting agents"
		v.app.setStatus("Enter feedback (press f) before rejecting")
		return nil
	}
	v.validationMsg = ""
	v.deciding = true
	verb := "Approving"
	if !approved {
		verb = "Rejecting"
	}
	v.app.setStatus(fmt.Sprintf("%s appeal %s...", verb, selected.ID))
	ctl := v.app.reviewCtl
	appealID := selected.ID
	return func() tea.Msg {
		var err error
		if approved {
			err = ctl.Approve(context.Background())
		} else {
			err = ctl.Reject(context.Background())
		}
		return reviewDecisionDoneMsg{appealID: appealID, approved: approved, err: err}
	}
}

func (v *reviewView) handleDecisionDone(msg reviewDecisionDoneMsg) tea.Cmd {
	v.deciding = false
	if msg.err != nil {
		if errors.Is(msg.err, review.ErrFeedbackRequired) {
			v.validationMsg = "Rejection requires feedback for the drafting agents"
			return nil
		}
		detail := msg.err.Error()
		var apiErr *api.APIError
		if errors.As(msg.err, &apiErr) {
			detail = apiErr.Detail
		}
		v.app.logError("Review · decision on %s failed: %s", msg.appealID, detail)
		v.app.setStatus("Decision failed: " + detail)
		// The service state may have moved (e.g. already decided elsewhere),
		// so pull a fresh list rather than trusting the local copy.
		return v.refreshCmd()
	}
	outcome := "rejected"
	if msg.approved {
		outcome = "approved"
	}
	v.app.logInfo("Review · appeal %s %s", msg.appealID, outcome)
	v.app.setStatus(fmt.Sprintf("Appeal %s %s", msg.appealID, outcome))
	v.feedback.SetValue("")
	appeals := v.app.reviewCtl.Appeals()
	if v.cursor >= len(appeals) {
		v.cursor = max(0, len(appeals)-1)
	}
	v.syncSelection(appeals)
	return nil
}

func (v *reviewView) View() string {
	if v.loading {
		return "Loading pending appeals..."
	}
	appeals := v.app.reviewCtl.Appeals()
	if len(appeals) == 0 {
		return "No appeals pending review\n\n" +
			mutedTextStyle.Render("ctrl+r → refresh    esc → menu")
	}

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Pending Appeals (%d)", len(appeals))))
	for i, appeal := range appeals {
		marker := "  "
		line := fmt.Sprintf("%s · claim %s", appeal.ID, appeal.ClaimID)
		if len(appeal.ComplianceIssues) > 0 {
			line += errorTextStyle.Render(fmt.Sprintf("  ⚠ %d", len(appeal.ComplianceIssues)))
		}
		if i == v.cursor {
			marker = "▸ "
			line = lipgloss.NewStyle().Bold(true).Render(line)
		}
		rows = append(rows, marker+line)
	}

	sections := []string{strings.Join(rows, "\n")}
	if selected, ok := v.app.reviewCtl.Selected(); ok {
		sections = append(sections, v.renderDetail(selected))
	}
	if v.validationMsg != "" {
		sections = append(sections, errorTextStyle.Render("⚠ "+v.validationMsg))
	}
	hint := "↑/↓ → select    a → approve    r → reject    f → feedback    ctrl+r → refresh    esc → menu"
	if v.editing {
		hint = "esc → stop editing feedback"
	}
	sections = append(sections, mutedTextStyle.Render(hint))
	return strings.Join(sections, "\n\n")
}

func (v *reviewView) renderDetail(appeal api.Appeal) string {
	var parts []string
	draft := appeal.DraftText
	lines := strings.Split(draft, "\n")
	if len(lines) > 14 {
		lines = append(lines[:14], "...")
	}
	parts = append(parts, boxStyle.Render(strings.Join(lines, "\n")))

	if len(appeal.PolicyCitations) > 0 {
		cites := make([]string, 0, len(appeal.PolicyCitations))
		for _, c := range appeal.PolicyCitations {
			cites = append(cites, "  • "+c)
		}
		parts = append(parts, "Policy Citations:\n"+strings.Join(cites, "\n"))
	}
	if len(appeal.ComplianceIssues) > 0 {
		issues := make([]string, 0, len(appeal.ComplianceIssues))
		for _, issue := range appeal.ComplianceIssues {
			issues = append(issues, errorTextStyle.Render("  ⚠ "+issue))
		}
		parts = append(parts, "Compliance Issues:\n"+strings.Join(issues, "\n"))
	}
	parts = append(parts, "Feedback:\n"+v.feedback.View())
	return strings.Join(parts, "\n\n")
}
