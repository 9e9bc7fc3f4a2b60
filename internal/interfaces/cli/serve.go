package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gardi.app/cli/internal/infrastructure/config"
	"gardi.app/cli/internal/infrastructure/server"
)

// ServeFlags holds command-line flags for the serve command
type ServeFlags struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeCommand creates the serve command
func NewServeCommand(container *CLIContainer) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [wtt-file summary-file]",
		Short: "Serve the interactive timetable visualization",
		Long: `Start the HTTP server hosting the rake-link visualization UI.

When workbook paths are given (or configured via wtt_path/summary_path)
they are parsed at startup; otherwise workbooks can be uploaded through
the UI. With --watch the given files are re-parsed whenever they change
on disk.

Examples:
  gardi serve wtt.xlsx summary.xlsx
  gardi serve wtt.xlsx summary.xlsx --watch
  gardi serve --host 0.0.0.0 --port 9000`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return &usageError{cmd: cmd, err: fmt.Errorf("expected no arguments or a wtt and summary file, got %d", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, container, flags, args)
		},
	}

	// Add command-line flags
	cmd.Flags().StringVar(&flags.Host, "host", "127.0.0.1", "Address to bind")
	cmd.Flags().IntVar(&flags.Port, "port", 8051, "Port to listen on")
	cmd.Flags().BoolVar(&flags.Watch, "watch", false, "Reload workbooks when the files change")

	return cmd
}

// runServe starts the HTTP server, optionally with a file watcher, and
// blocks until the context is cancelled by SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, container *CLIContainer, flags *ServeFlags, args []string) error {
	cfg := container.Config
	if cmd.Flags().Changed("host") {
		if err := cfg.Set("host", "flag", "--host", flags.Host, config.PriorityFlag); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("port") {
		if err := cfg.Set("port", "flag", "--port", flags.Port, config.PriorityFlag); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("watch") {
		if err := cfg.Set("watch", "flag", "--watch", flags.Watch, config.PriorityFlag); err != nil {
			return err
		}
	}

	wttPath, summaryPath := cfg.WTTPath, cfg.SummaryPath
	if len(args) == 2 {
		wttPath, summaryPath = args[0], args[1]
	}
	if wttPath != "" {
		if err := container.Workbench.LoadFiles(wttPath, summaryPath); err != nil {
			return fmt.Errorf("failed to load workbooks: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		if wttPath == "" {
			return fmt.Errorf("--watch requires workbook files to watch")
		}
		watcher, err := server.NewWatcher(container.Workbench, wttPath, summaryPath)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error("file watcher stopped", "error", err)
			}
		}()
	}

	cmd.Printf("Serving on http://%s\n", cfg.Addr())
	return server.New(cfg, container.Workbench).Run(ctx)
}
