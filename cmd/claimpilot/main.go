// cmd/claimpilot/main.go
//
// This is the entry point for the ClaimPilot review console.
//
// Flow:
// 1. Parse flags (-api overrides the service URL, -serve-stub runs the
//    local stand-in service instead of the TUI)
// 2. Initialize the .claimpilot folder in the working directory
// 3. Open the session journal and launch the TUI

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/claimpilot/console/internal/api"
	"github.com/claimpilot/console/internal/config"
	"github.com/claimpilot/console/internal/logbook"
	"github.com/claimpilot/console/internal/stubserver"
	"github.com/claimpilot/console/internal/tui"
)

func main() {
	serveStub := flag.Bool("serve-stub", false, "run the local stub appeal service instead of the console")
	apiURL := flag.String("api", "", "appeal service base URL (overrides config and CLAIMPILOT_API_URL)")
	flag.Parse()

	if *serveStub {
		runStub()
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitConsoleDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .claimpilot directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		if err := cfg.SetBaseURL(*apiURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying -api: %v\n", err)
			os.Exit(1)
		}
	}

	// The journal is best-effort: a console without a logbook still works.
	logPath := filepath.Join(cfg.LogsDir(), "session-"+time.Now().Format("2006-01-02")+".log")
	book, err := logbook.New(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session journal unavailable: %v\n", err)
		book = nil
	}
	defer book.Close()

	client := api.New(cfg.BaseURL(),
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithProcessTimeout(cfg.ProcessTimeout()),
	)

	p := tea.NewProgram(
		tui.NewApp(cfg, client, book),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running console: %v\n", err)
		os.Exit(1)
	}
}

// runStub serves the in-memory appeal service until interrupted. It exists so
// the console can be exercised end to end without the real agent pipeline.
func runStub() {
	settings := stubserver.DefaultSettings()
	srv := stubserver.NewServer(settings, stubserver.WithLogger(stderrLogger{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting stub service: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Stub appeal service listening at %s (ctrl+c to stop)\n", srv.BaseURL())

	<-ctx.Done()
	if err := srv.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error shutting down: %v\n", err)
		os.Exit(1)
	}
}

// stderrLogger adapts the stub server's log lines to standard error for the
// headless mode.
type stderrLogger struct{}

func (stderrLogger) Info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "INFO  "+format+"\n", args...)
}

func (stderrLogger) Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR "+format+"\n", args...)
}
