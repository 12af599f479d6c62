// internal/tui/app.go
//
// This is the main TUI for the ClaimPilot review console.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/claimpilot/console/internal/api"
	"github.com/claimpilot/console/internal/audit"
	"github.com/claimpilot/console/internal/config"
	"github.com/claimpilot/console/internal/intake"
	"github.com/claimpilot/console/internal/logbook"
	"github.com/claimpilot/console/internal/review"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu appState = iota // Main menu with the three consoles
	stateIntake                   // Claim submission form
	stateReview                   // Pending appeal review
	stateAudit                    // Audit trail viewer
)

const logPanelLines = 6

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")).
			MarginBottom(1)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)
	errorTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	okTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	mutedTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

// menuItem implements list.Item for the main menu entries.
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	client  *api.Client
	logbook *logbook.Logbook

	intakeCtl *intake.Controller
	reviewCtl *review.Controller
	auditCtl  *audit.Viewer

	intakeView *intakeView
	reviewView *reviewView
	auditView  *auditView

	mainMenu  list.Model
	statusMsg string

	width  int
	height int
}

// NewApp creates the console model. The API client carries the service
// endpoint from config; the logbook may be nil when journaling is
// unavailable.
func NewApp(cfg *config.Config, client *api.Client, book *logbook.Logbook) *App {
	items := []list.Item{
		menuItem{title: "Submit Claim", desc: "Send a denied claim through the appeal workflow"},
		menuItem{title: "Review Appeals", desc: "Approve or reject pending appeal drafts"},
		menuItem{title: "Audit Trail", desc: "Inspect the backend execution log"},
		menuItem{title: "Exit", desc: "Quit the console"},
	}
	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "⬡ CLAIMPILOT CONSOLE"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)

	app := &App{
		state:     stateMainMenu,
		config:    cfg,
		client:    client,
		logbook:   book,
		intakeCtl: intake.New(client),
		reviewCtl: review.New(client),
		auditCtl:  audit.NewViewer(client, cfg.AuditPageLimit()),
		mainMenu:  mainMenu,
		statusMsg: fmt.Sprintf("Connected to %s", client.BaseURL()),
	}
	app.logInfo("Session started against %s", client.BaseURL())
	return app
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Info(format, args...)
	}
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Warn(format, args...)
	}
}

func (a *App) logError(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Error(format, args...)
	}
}

func (a *App) setStatus(msg string) {
	a.statusMsg = msg
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		if a.intakeView != nil {
			a.intakeView.resize(msg.Width, msg.Height)
		}
		if a.reviewView != nil {
			a.reviewView.resize(msg.Width, msg.Height)
		}
		if a.auditView != nil {
			a.auditView.resize(msg.Width, msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu {
				return a, tea.Quit
			}
		case "esc":
			if a.state != stateMainMenu && a.canLeaveScreen() {
				return a.returnToMainMenu()
			}
		case "enter":
			if a.state == stateMainMenu {
				return a.handleMainMenuSelection()
			}
		}
	}

	var cmds []tea.Cmd
	switch a.state {
	case stateMainMenu:
		var menuCmd tea.Cmd
		a.mainMenu, menuCmd = a.mainMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateIntake:
		if a.intakeView != nil {
			if cmd := a.intakeView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	case stateReview:
		if a.reviewView != nil {
			if cmd := a.reviewView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	case stateAudit:
		if a.auditView != nil {
			if cmd := a.auditView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	return a, tea.Batch(cmds...)
}

// canLeaveScreen blocks esc while the intake submission is mid-flight so the
// operator cannot fire a second two-phase call against the same claim ID.
func (a *App) canLeaveScreen() bool {
	if a.state != stateIntake {
		return true
	}
	phase := a.intakeCtl.Phase()
	return phase != intake.PhaseSubmitting && phase != intake.PhaseProcessing
}

// handleMainMenuSelection processes menu item selection
func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.title {
	case "Submit Claim":
		a.logInfo("Menu · Submit Claim selected")
		return a.openIntake()
	case "Review Appeals":
		a.logInfo("Menu · Review Appeals selected")
		return a.openReview()
	case "Audit Trail":
		a.logInfo("Menu · Audit Trail selected")
		return a.openAudit()
	case "Exit":
		a.logInfo("Menu · Exit selected")
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) openIntake() (tea.Model, tea.Cmd) {
	a.state = stateIntake
	if a.intakeView == nil {
		a.intakeView = newIntakeView(a)
		a.intakeView.resize(a.width, a.height)
	}
	a.setStatus("Fill the denial details and press ctrl+s to submit")
	return a, a.intakeView.Init()
}

func (a *App) openReview() (tea.Model, tea.Cmd) {
	a.state = stateReview
	if a.reviewView == nil {
		a.reviewView = newReviewView(a)
		a.reviewView.resize(a.width, a.height)
	}
	a.setStatus("Loading pending appeals...")
	return a, a.reviewView.Init()
}

func (a *App) openAudit() (tea.Model, tea.Cmd) {
	a.state = stateAudit
	if a.auditView == nil {
		a.auditView = newAuditView(a)
		a.auditView.resize(a.width, a.height)
	}
	a.setStatus("Loading audit trail...")
	return a, a.auditView.Init()
}

// returnToMainMenu transitions back to the main menu
func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.state = stateMainMenu
	a.setStatus("")
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateIntake:
		content = a.intakeView.View()
	case stateReview:
		content = a.reviewView.View()
	case stateAudit:
		content = a.auditView.View()
	}

	header := headerStyle.Render("⬡ CLAIMPILOT")
	body := boxStyle.Width(max(40, width-2)).Render(content)
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, footerStyle.Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("LOG")
	body := mutedTextStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
