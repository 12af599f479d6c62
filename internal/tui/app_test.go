package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/claimpilot/console/internal/api"
	"github.com/claimpilot/console/internal/config"
	"github.com/claimpilot/console/internal/intake"
	"github.com/claimpilot/console/internal/stubserver"
)

func newTestApp(t *testing.T) (*App, *api.Client) {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitConsoleDir(projectDir); err != nil {
		t.Fatalf("init console dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	settings := stubserver.Settings{Host: "127.0.0.1", Port: 0}
	srv := stubserver.NewServer(settings)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start stub: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})

	client := api.New(srv.BaseURL())
	return NewApp(cfg, client, nil), client
}

// runCommands executes pending tea.Cmds and feeds the console's own messages
// back into Update until the pipeline settles. Framework chatter (cursor
// blinks, ticks) is dropped so the loop terminates.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		switch msg.(type) {
		case intakeCreateDoneMsg, intakeProcessDoneMsg,
			reviewRefreshDoneMsg, reviewDecisionDoneMsg,
			auditFetchDoneMsg, auditAgentsDoneMsg:
			var followUp tea.Cmd
			model, followUp = model.Update(msg)
			queue = append(queue, followUp)
		}
	}
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("model is %T, want *App", model)
	}
	return app
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func fillIntakeForm(app *App, claimID string) {
	app.intakeView.claimID.SetValue(claimID)
	app.intakeView.denialCode.SetValue("CO-197")
	app.intakeView.payerName.SetValue("Acme Health")
	app.intakeView.description.SetValue("No prior authorization on file")
}

func submitThroughConsole(t *testing.T, app *App, claimID string) *App {
	t.Helper()
	model, cmd := app.openIntake()
	app = runCommands(t, model, cmd)
	fillIntakeForm(app, claimID)
	model, cmd = app.Update(keyMsg("ctrl+s"))
	return runCommands(t, model, cmd)
}

func TestSubmitClaimEndToEnd(t *testing.T) {
	app, _ := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")

	snap := app.intakeCtl.Snapshot()
	if snap.Phase != intake.PhaseSucceeded {
		t.Fatalf("phase = %s, want succeeded", snap.Phase)
	}
	if snap.Result == nil || snap.Result.AppealID == "" {
		t.Fatalf("result = %+v", snap.Result)
	}
	if app.intakeView.claimID.Value() != "" {
		t.Fatalf("form should reset after success")
	}
	view := app.View()
	if !strings.Contains(view, snap.Result.AppealID) {
		t.Fatalf("success view should name the appeal, got:\n%s", view)
	}
}

func TestDuplicateSubmissionSurfacesDetail(t *testing.T) {
	app, _ := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")
	model, cmd := app.Update(keyMsg("ctrl+d"))
	app = runCommands(t, model, cmd)

	fillIntakeForm(app, "CLM-100")
	model, cmd = app.Update(keyMsg("ctrl+s"))
	app = runCommands(t, model, cmd)

	if phase := app.intakeCtl.Phase(); phase != intake.PhaseFailed {
		t.Fatalf("phase = %s, want failed", phase)
	}
	if !strings.Contains(app.View(), "duplicate claim_id") {
		t.Fatalf("service detail missing from view")
	}
	if app.intakeView.claimID.Value() != "CLM-100" {
		t.Fatalf("form data must survive a failed submission")
	}
}

func TestSubmitWithMissingFieldsStaysLocal(t *testing.T) {
	app, _ := newTestApp(t)
	model, cmd := app.openIntake()
	app = runCommands(t, model, cmd)

	app.intakeView.claimID.SetValue("CLM-1")
	model, cmd = app.Update(keyMsg("ctrl+s"))
	app = runCommands(t, model, cmd)

	if phase := app.intakeCtl.Phase(); phase != intake.PhaseIdle {
		t.Fatalf("phase = %s, want idle (no wire call)", phase)
	}
	if !strings.Contains(app.View(), "Denial Code") {
		t.Fatalf("validation should name the missing fields")
	}
}

func TestEscBlockedWhileSubmitting(t *testing.T) {
	app, _ := newTestApp(t)
	model, cmd := app.openIntake()
	app = runCommands(t, model, cmd)
	if err := app.intakeCtl.Begin(api.ClaimDraft{
		ClaimID: "CLM-1", DenialCode: "CO-197",
		DenialDescription: "x", PayerName: "Acme",
	}); err != nil {
		t.Fatal(err)
	}

	model, _ = app.Update(keyMsg("esc"))
	app = model.(*App)
	if app.state != stateIntake {
		t.Fatalf("esc must not leave the intake screen mid-submission")
	}
}

func TestRejectWithoutFeedbackIsCaughtLocally(t *testing.T) {
	app, _ := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")

	model, cmd := app.openReview()
	app = runCommands(t, model, cmd)
	if got := len(app.reviewCtl.Appeals()); got != 1 {
		t.Fatalf("pending appeals = %d, want 1", got)
	}

	model, cmd = app.Update(keyMsg("r"))
	app = runCommands(t, model, cmd)
	if got := len(app.reviewCtl.Appeals()); got != 1 {
		t.Fatalf("appeal must stay pending after local validation, got %d", got)
	}
	if !strings.Contains(app.View(), "requires feedback") {
		t.Fatalf("validation message missing from view")
	}
}

func TestApproveRemovesAppealFromQueue(t *testing.T) {
	app, client := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")

	model, cmd := app.openReview()
	app = runCommands(t, model, cmd)
	model, cmd = app.Update(keyMsg("a"))
	app = runCommands(t, model, cmd)

	if got := len(app.reviewCtl.Appeals()); got != 0 {
		t.Fatalf("queue should be empty after approval, got %d", got)
	}
	appeal, err := client.AppealForClaim(context.Background(), "CLM-100")
	if err != nil {
		t.Fatal(err)
	}
	if appeal.Status != api.StatusApproved {
		t.Fatalf("status = %s, want approved", appeal.Status)
	}
}

func TestRejectCarriesFeedback(t *testing.T) {
	app, client := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")

	model, cmd := app.openReview()
	app = runCommands(t, model, cmd)
	app.reviewCtl.SetFeedback("Cite the prior auth exception")
	model, cmd = app.Update(keyMsg("r"))
	app = runCommands(t, model, cmd)

	appeal, err := client.AppealForClaim(context.Background(), "CLM-100")
	if err != nil {
		t.Fatal(err)
	}
	if appeal.Status != api.StatusRejected {
		t.Fatalf("status = %s, want rejected", appeal.Status)
	}
	if appeal.Feedback == nil || *appeal.Feedback != "Cite the prior auth exception" {
		t.Fatalf("feedback = %v", appeal.Feedback)
	}
}

func TestAuditFilterCycleRefetches(t *testing.T) {
	app, _ := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")

	model, cmd := app.openAudit()
	app = runCommands(t, model, cmd)
	if got := app.auditCtl.FetchCount(); got != 1 {
		t.Fatalf("fetches after open = %d, want 1", got)
	}
	if len(app.auditView.agents) == 0 {
		t.Fatalf("agent list should be populated")
	}

	model, cmd = app.Update(keyMsg("tab"))
	app = runCommands(t, model, cmd)
	if got := app.auditCtl.FetchCount(); got != 2 {
		t.Fatalf("fetches after filter change = %d, want 2", got)
	}
	if app.auditCtl.Filter() == "" {
		t.Fatalf("filter should be scoped to an agent after tab")
	}
	for _, entry := range app.auditCtl.Entries() {
		if entry.Agent == nil || *entry.Agent != app.auditCtl.Filter() {
			t.Fatalf("entry outside filter scope: %+v", entry)
		}
	}
}

func TestAuditEntryExpansion(t *testing.T) {
	app, _ := newTestApp(t)
	app = submitThroughConsole(t, app, "CLM-100")

	model, cmd := app.openAudit()
	app = runCommands(t, model, cmd)
	entries := app.auditCtl.Entries()
	if len(entries) == 0 {
		t.Fatalf("no entries to expand")
	}

	model, cmd = app.Update(keyMsg("enter"))
	app = runCommands(t, model, cmd)
	if !app.auditView.expanded[entries[0].ID] {
		t.Fatalf("enter should expand the selected entry")
	}
	if !strings.Contains(app.View(), "claim_id") {
		t.Fatalf("expanded entry should show payload keys")
	}

	model, cmd = app.Update(keyMsg("enter"))
	app = runCommands(t, model, cmd)
	if app.auditView.expanded[entries[0].ID] {
		t.Fatalf("second enter should collapse the entry")
	}
}

func TestAuditUnavailableServiceShowsEmptyTrail(t *testing.T) {
	projectDir := t.TempDir()
	if err := config.InitConsoleDir(projectDir); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	client := api.New("http://127.0.0.1:1", api.WithTimeout(200*time.Millisecond))
	app := NewApp(cfg, client, nil)

	model, cmd := app.openAudit()
	app = runCommands(t, model, cmd)
	if got := len(app.auditCtl.Entries()); got != 0 {
		t.Fatalf("entries = %d, want 0 when the service is down", got)
	}
	if !strings.Contains(app.View(), "No audit entries") {
		t.Fatalf("empty-trail shell missing from view")
	}
}

func TestMainMenuNavigation(t *testing.T) {
	app, _ := newTestApp(t)
	model, cmd := app.handleMainMenuSelection()
	app = runCommands(t, model, cmd)
	if app.state != stateIntake {
		t.Fatalf("state = %d, want intake from first menu item", app.state)
	}
	model, _ = app.Update(keyMsg("esc"))
	app = model.(*App)
	if app.state != stateMainMenu {
		t.Fatalf("esc should return to the menu")
	}
}
