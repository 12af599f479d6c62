package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/claimpilot/console/internal/api"
	"github.com/claimpilot/console/internal/intake"
)

const (
	fieldClaimID = iota
	fieldDenialCode
	fieldPayerName
	fieldDenialDescription
	fieldPolicyText
	fieldCount
)

var requiredFieldLabels = map[int]string{
	fieldClaimID:           "Claim ID",
	fieldDenialCode:        "Denial Code",
	fieldPayerName:         "Payer Name",
	fieldDenialDescription: "Denial Description",
}

type intakeCreateDoneMsg struct {
	err error
}

type intakeProcessDoneMsg struct {
	result *api.WorkflowResult
	err    error
}

// intakeView renders the claim submission form and drives the two-phase
// submission through the intake controller.
type intakeView struct {
	app *App

	claimID     textinput.Model
	denialCode  textinput.Model
	payerName   textinput.Model
	description textarea.Model
	policyText  textarea.Model

	focus         int
	validationMsg string
	width         int
}

func newIntakeView(app *App) *intakeView {
	claimID := textinput.New()
	claimID.Placeholder = "CLM-2026-001"
	claimID.CharLimit = 100
	claimID.Focus()

	denialCode := textinput.New()
	denialCode.Placeholder = "CO-197"
	denialCode.CharLimit = 50

	payerName := textinput.New()
	payerName.Placeholder = "Blue Cross Blue Shield"
	payerName.CharLimit = 200

	description := textarea.New()
	description.Placeholder = "Precertification/authorization absent. Service not authorized..."
	description.SetHeight(4)

	policyText := textarea.New()
	policyText.Placeholder = "Section 5.2: All specialist consultations require prior authorization... (optional)"
	policyText.SetHeight(3)

	return &intakeView{
		app:         app,
		claimID:     claimID,
		denialCode:  denialCode,
		payerName:   payerName,
		description: description,
		policyText:  policyText,
	}
}

func (v *intakeView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *intakeView) resize(width, height int) {
	v.width = width
	inner := max(30, width-10)
	v.claimID.Width = inner
	v.denialCode.Width = inner
	v.payerName.Width = inner
	v.description.SetWidth(inner)
	v.policyText.SetWidth(inner)
}

func (v *intakeView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case intakeCreateDoneMsg:
		return v.handleCreateDone(msg)
	case intakeProcessDoneMsg:
		return v.handleProcessDone(msg)
	case tea.KeyMsg:
		if cmd, handled := v.handleKey(msg); handled {
			return cmd
		}
	}
	return v.updateFocusedField(msg)
}

func (v *intakeView) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "tab", "shift+tab":
		if v.inFlight() {
			return nil, true
		}
		if msg.String() == "tab" {
			v.setFocus((v.focus + 1) % fieldCount)
		} else {
			v.setFocus((v.focus + fieldCount - 1) % fieldCount)
		}
		return nil, true
	case "ctrl+g":
		if v.inFlight() {
			return nil, true
		}
		generated := "CLM-" + strings.ToUpper(uuid.NewString()[:8])
		v.claimID.SetValue(generated)
		v.app.logInfo("Intake · generated claim ID %s", generated)
		return nil, true
	case "ctrl+s":
		return v.submit(), true
	case "enter":
		// Enter advances through the single-line inputs; textareas keep it.
		if v.focus == fieldClaimID || v.focus == fieldDenialCode || v.focus == fieldPayerName {
			v.setFocus(v.focus + 1)
			return nil, true
		}
	case "ctrl+d":
		phase := v.app.intakeCtl.Phase()
		if phase == intake.PhaseSucceeded || phase == intake.PhaseFailed {
			v.app.intakeCtl.Dismiss()
			v.app.setStatus("Ready for the next claim")
			return nil, true
		}
	}
	return nil, false
}

func (v *intakeView) updateFocusedField(msg tea.Msg) tea.Cmd {
	if v.inFlight() {
		return nil
	}
	var cmd tea.Cmd
	switch v.focus {
	case fieldClaimID:
		v.claimID, cmd = v.claimID.Update(msg)
	case fieldDenialCode:
		v.denialCode, cmd = v.denialCode.Update(msg)
	case fieldPayerName:
		v.payerName, cmd = v.payerName.Update(msg)
	case fieldDenialDescription:
		v.description, cmd = v.description.Update(msg)
	case fieldPolicyText:
		v.policyText, cmd = v.policyText.Update(msg)
	}
	return cmd
}

func (v *intakeView) setFocus(focus int) {
	v.focus = focus
	v.claimID.Blur()
	v.denialCode.Blur()
	v.payerName.Blur()
	v.description.Blur()
	v.policyText.Blur()
	switch focus {
	case fieldClaimID:
		v.claimID.Focus()
	case fieldDenialCode:
		v.denialCode.Focus()
	case fieldPayerName:
		v.payerName.Focus()
	case fieldDenialDescription:
		v.description.Focus()
	case fieldPolicyText:
		v.policyText.Focus()
	}
}

func (v *intakeView) inFlight() bool {
	phase := v.app.intakeCtl.Phase()
	return phase == intake.PhaseSubmitting || phase == intake.PhaseProcessing
}

// submit validates the required fields locally, then starts phase one. The
// submit affordance stays disabled for the whole two-phase call.
func (v *intakeView) submit() tea.Cmd {
	if v.inFlight() {
		return nil
	}
	missing := v.missingFields()
	if len(missing) > 0 {
		v.validationMsg = "Required: " + strings.Join(missing, ", ")
		v.app.setStatus("Fix the highlighted fields before submitting")
		return nil
	}
	v.validationMsg = ""

	draft := api.ClaimDraft{
		ClaimID:           strings.TrimSpace(v.claimID.Value()),
		DenialCode:        strings.TrimSpace(v.denialCode.Value()),
		DenialDescription: strings.TrimSpace(v.description.Value()),
		PayerName:         strings.TrimSpace(v.payerName.Value()),
	}
	if text := strings.TrimSpace(v.policyText.Value()); text != "" {
		draft.PolicyText = &text
	}
	if err := v.app.intakeCtl.Begin(draft); err != nil {
		v.app.setStatus(err.Error())
		return nil
	}
	v.app.logInfo("Intake · submitting claim %s", draft.ClaimID)
	v.app.setStatus("Submitting claim...")
	ctl := v.app.intakeCtl
	return func() tea.Msg {
		return intakeCreateDoneMsg{err: ctl.CreateClaim(context.Background())}
	}
}

func (v *intakeView) missingFields() []string {
	values := map[int]string{
		fieldClaimID:           v.claimID.Value(),
		fieldDenialCode:        v.denialCode.Value(),
		fieldPayerName:         v.payerName.Value(),
		fieldDenialDescription: v.description.Value(),
	}
	var missing []string
	for _, field := range []int{fieldClaimID, fieldDenialCode, fieldPayerName, fieldDenialDescription} {
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, requiredFieldLabels[field])
		}
	}
	return missing
}

func (v *intakeView) handleCreateDone(msg intakeCreateDoneMsg) tea.Cmd {
	if msg.err != nil {
		message := v.app.intakeCtl.FailureMessage()
		v.app.logError("Intake · claim creation failed: %s", message)
		v.app.setStatus("Submission failed: " + message)
		return nil
	}
	// The workflow step takes materially longer than claim creation, so the
	// operator sees a distinct processing message.
	v.app.logInfo("Intake · claim created, workflow running")
	v.app.setStatus("Processing through agent workflow (typically 8-15s)...")
	ctl := v.app.intakeCtl
	return func() tea.Msg {
		result, err := ctl.Process(context.Background())
		return intakeProcessDoneMsg{result: result, err: err}
	}
}

func (v *intakeView) handleProcessDone(msg intakeProcessDoneMsg) tea.Cmd {
	if msg.err != nil {
		message := v.app.intakeCtl.FailureMessage()
		v.app.logError("Intake · workflow failed: %s", message)
		v.app.setStatus("Processing failed: " + message)
		return nil
	}
	v.app.logInfo("Intake · appeal %s drafted", msg.result.AppealID)
	v.app.setStatus(fmt.Sprintf("Appeal %s generated · ctrl+d to submit another", msg.result.AppealID))
	v.resetForm()
	return nil
}

func (v *intakeView) resetForm() {
	v.claimID.SetValue("")
	v.denialCode.SetValue("")
	v.payerName.SetValue("")
	v.description.SetValue("")
	v.policyText.SetValue("")
	v.setFocus(fieldClaimID)
}

func (v *intakeView) View() string {
	snap := v.app.intakeCtl.Snapshot()
	switch snap.Phase {
	case intake.PhaseSucceeded:
		return v.renderResult(snap.Result)
	case intake.PhaseSubmitting:
		return v.renderForm("⏳ Submitting claim...")
	case intake.PhaseProcessing:
		return v.renderForm("⏳ Processing through agent workflow (typically 8-15s)...")
	case intake.PhaseFailed:
		return v.renderForm(errorTextStyle.Render("✗ " + v.app.intakeCtl.FailureMessage()))
	}
	return v.renderForm("")
}

func (v *intakeView) renderForm(banner string) string {
	title := lipgloss.NewStyle().Bold(true).Render("Submit Claim for Appeal")
	var sections []string
	sections = append(sections, title)
	if banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections,
		v.renderField(fieldClaimID, "Claim ID *", v.claimID.View()),
		v.renderField(fieldDenialCode, "Denial Code *", v.denialCode.View()),
		v.renderField(fieldPayerName, "Payer Name *", v.payerName.View()),
		v.renderField(fieldDenialDescription, "Denial Description *", v.description.View()),
		v.renderField(fieldPolicyText, "Policy Text (optional)", v.policyText.View()),
	)
	if v.validationMsg != "" {
		sections = append(sections, errorTextStyle.Render("⚠ "+v.validationMsg))
	}
	hint := "tab → next field    ctrl+g → generate claim ID    ctrl+s → submit    esc → menu"
	sections = append(sections, mutedTextStyle.Render(hint))
	return strings.Join(sections, "\n\n")
}

func (v *intakeView) renderField(field int, label, input string) string {
	style := mutedTextStyle
	if field == v.focus {
		style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	}
	return style.Render(label) + "\n" + input
}

func (v *intakeView) renderResult(result *api.WorkflowResult) string {
	if result == nil {
		return "No result to display"
	}
	title := okTextStyle.Render("✓ Appeal Generated Successfully")
	idLine := fmt.Sprintf("Appeal ID: %s", result.AppealID)
	preview := result.DraftText
	if preview == "" {
		preview = "(draft text pending generation)"
	}
	lines := strings.Split(preview, "\n")
	if len(lines) > 12 {
		lines = append(lines[:12], "...")
	}
	draftBox := boxStyle.Render(strings.Join(lines, "\n"))

	var extras []string
	if len(result.PolicyCitations) > 0 {
		extras = append(extras, fmt.Sprintf("%d policy citation(s)", len(result.PolicyCitations)))
	}
	if len(result.ComplianceIssues) > 0 {
		extras = append(extras, errorTextStyle.Render(fmt.Sprintf("⚠ %d compliance issue(s)", len(result.ComplianceIssues))))
	}
	sections := []string{title, idLine, draftBox}
	if len(extras) > 0 {
		sections = append(sections, strings.Join(extras, " · "))
	}
	sections = append(sections, mutedTextStyle.Render("Review the draft in the Appeals screen · ctrl+d → submit another claim"))
	return strings.Join(sections, "\n\n")
}
