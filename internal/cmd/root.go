package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"reqflow/internal/config"
	"reqflow/internal/logging"
	"reqflow/internal/server"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Serve    ServeCmd    `cmd:"serve" help:"Start the workflow HTTP server"`
	Act      ActCmd      `cmd:"act" help:"Execute one workflow action against a session"`
	Sessions SessionsCmd `cmd:"sessions" help:"List sessions"`
	History  HistoryCmd  `cmd:"history" help:"Show the audit trail for a session"`
	Feedback FeedbackCmd `cmd:"feedback" help:"Show the feedback analytics report for a session"`
	Context  ContextCmd  `cmd:"context" help:"Show the full session context (session, requirements, test cases)"`
	Suite    SuiteCmd    `cmd:"suite" help:"Export the generated test suite for a session"`
	Purge    PurgeCmd    `cmd:"purge" help:"Delete a session and all its data"`
	Settings SettingsCmd `cmd:"settings" help:"Show or change settings"`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings.json > defaults
	if c.settings != nil {
		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("REQFLOW_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}
		if !c.Debug {
			if _, hasEnv := os.LookupEnv("REQFLOW_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}
	}

	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	if c.Debug || c.DebugFile != "" {
		os.Setenv("REQFLOW_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("REQFLOW_DEBUG_FILE", logFilePath)
		}
	}

	// Create container AFTER logging is initialized so storage and cache
	// adapters log through the configured logger.
	container, err := NewContainer(c.settings)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}

// ServeCmd runs the HTTP server until interrupted
type ServeCmd struct {
	Addr string `help:"Listen address" default:":8080"`
}

func (cmd *ServeCmd) Run(cli *CLI) error {
	addr := cmd.Addr
	if cli.settings != nil && cli.settings.ListenAddr != "" && addr == ":8080" {
		addr = cli.settings.ListenAddr
	}

	srv := server.New(addr, cli.Container.Engine, cli.Container.Persistence, cli.Container.Tracker)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// ActCmd executes one workflow action
type ActCmd struct {
	Action    string `arg:"" help:"Workflow action (start, refine, enhance, review, edited, approved, rejected)"`
	SessionID string `arg:"" help:"Session ID"`
	Input     string `arg:"" optional:"" help:"Action payload"`
}

func (cmd *ActCmd) Run(cli *CLI) error {
	result, err := cli.Container.Engine.Execute(context.Background(), cmd.Action, cmd.Input, cmd.SessionID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// SessionsCmd lists sessions
type SessionsCmd struct {
	UserID string `help:"Filter by user ID"`
}

func (cmd *SessionsCmd) Run(cli *CLI) error {
	sessions, err := cli.Container.Persistence.ListSessions(context.Background(), cmd.UserID)
	if err != nil {
		return err
	}
	return printJSON(sessions)
}

// HistoryCmd prints a session's audit trail
type HistoryCmd struct {
	SessionID string `arg:"" help:"Session ID"`
}

func (cmd *HistoryCmd) Run(cli *CLI) error {
	entries, source, err := cli.Container.Persistence.History(context.Background(), cmd.SessionID)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"session_id": cmd.SessionID,
		"history":    entries,
		"source":     source,
	})
}

// FeedbackCmd prints a session's feedback analytics report
type FeedbackCmd struct {
	SessionID string `arg:"" help:"Session ID"`
}

func (cmd *FeedbackCmd) Run(cli *CLI) error {
	report, err := cli.Container.Tracker.Report(context.Background(), cmd.SessionID)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// ContextCmd prints a session's full context
type ContextCmd struct {
	SessionID string `arg:"" help:"Session ID"`
}

func (cmd *ContextCmd) Run(cli *CLI) error {
	sc, err := cli.Container.Persistence.SessionContext(context.Background(), cmd.SessionID)
	if err != nil {
		return err
	}
	return printJSON(sc)
}

// SuiteCmd exports the generated test suite
type SuiteCmd struct {
	SessionID string `arg:"" help:"Session ID"`
	Format    string `help:"Output format: json or csv" default:"json" enum:"json,csv"`
}

func (cmd *SuiteCmd) Run(cli *CLI) error {
	suite, err := cli.Container.Persistence.Suite(context.Background(), cmd.SessionID)
	if err != nil {
		return err
	}
	if cmd.Format == "csv" {
		csvData, err := suite.ToCSV()
		if err != nil {
			return err
		}
		fmt.Print(csvData)
		return nil
	}
	return printJSON(suite)
}

// PurgeCmd deletes a session and everything attached to it
type PurgeCmd struct {
	SessionID string `arg:"" help:"Session ID"`
}

func (cmd *PurgeCmd) Run(cli *CLI) error {
	if err := cli.Container.Persistence.Purge(context.Background(), cmd.SessionID); err != nil {
		return err
	}
	fmt.Printf("session %s purged\n", cmd.SessionID)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
