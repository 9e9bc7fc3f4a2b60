package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gardi.app/cli/internal/application/services"
	"gardi.app/cli/internal/infrastructure/config"
	"gardi.app/cli/internal/infrastructure/export"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitRuntime = 1
	ExitUsage   = 2
)

// CLIContainer holds the dependencies shared by all commands.
type CLIContainer struct {
	Config    *config.Config
	Workbench *services.Workbench
}

// NewCLIContainer builds a container with default configuration and an
// empty workbench. The real configuration is resolved once the root
// command parses its persistent flags.
func NewCLIContainer() *CLIContainer {
	return &CLIContainer{
		Config:    config.Default(),
		Workbench: services.NewWorkbench(),
	}
}

// usageError marks an error as a misuse of the command line rather than a
// runtime failure, so Run can map it to the usage exit code.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// exactArgs is cobra.ExactArgs with arity mistakes classed as usage errors.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{cmd: cmd, err: err}
		}
		return nil
	}
}

// NewRootCommand RootCommand represents the base command when called without any subcommands
func NewRootCommand(container *CLIContainer) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "gardi",
		Short: "Gardi - Western Railway working timetable workbench",
		Long: `Gardi parses Western Railway working-timetable (WTT) and rake-link summary
workbooks, reconstructs the rake cycles that move trainsets through the
operating day, and serves an interactive space-time visualization of the
Churchgate-Virar corridor.

Point it at a pair of xlsx workbooks with 'gardi serve' and open the
printed address in a browser, or use the inspect, export, gaps and
convert-ac commands for one-shot batch work.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeConfiguration(cmd, container)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			printOverview(cmd)
			return nil
		},
	}

	// Set custom version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{cmd: cmd, err: err}
	})

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default is $HOME/.config/gardi/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewServeCommand(container))
	rootCmd.AddCommand(NewInspectCommand(container))
	rootCmd.AddCommand(NewExportCommand(container))
	rootCmd.AddCommand(NewGapsCommand(container))
	rootCmd.AddCommand(NewConvertACCommand(container))
	rootCmd.AddCommand(NewDashboardCommand(container))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// initializeConfiguration resolves the layered configuration (defaults,
// config file, environment, flags) and applies the logging level before any
// command runs.
func initializeConfiguration(cmd *cobra.Command, container *CLIContainer) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("debug") {
		enabled, _ := cmd.Flags().GetBool("debug")
		if err := cfg.Set("debug", "flag", "--debug", enabled, config.PriorityFlag); err != nil {
			return err
		}
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	container.Config = cfg
	log.Debug("configuration resolved",
		"config", path, "debug", cfg.Debug, "log_level", cfg.LogLevel)
	return nil
}

// printOverview prints the bare-invocation summary.
func printOverview(cmd *cobra.Command) {
	cmd.Println("gardi - Western Railway working timetable workbench")
	cmd.Println()
	cmd.Println("Serve an interactive rake-link visualization:")
	cmd.Println("  gardi serve <wtt.xlsx> <summary.xlsx>")
	cmd.Println()
	cmd.Println("Run 'gardi --help' for the full command list.")
}

// loadWorkbooks loads the WTT and summary workbooks named by args and runs
// rake-cycle generation so every command sees a fully built timetable.
func loadWorkbooks(container *CLIContainer, args []string) error {
	if err := container.Workbench.LoadFiles(args[0], args[1]); err != nil {
		return err
	}
	if _, err := container.Workbench.BuildFigure(); err != nil {
		return err
	}
	return nil
}

func printSummary(cmd *cobra.Command, s export.Summary) {
	for _, line := range s.Lines() {
		cmd.Println(line)
	}
}

// Execute runs the root command and exits the process with the resulting
// code: 0 on success, 2 for command-line misuse, 1 for everything else.
func Execute(container *CLIContainer) {
	os.Exit(Run(container, os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the CLI against the given arguments and streams, returning
// the process exit code. Usage errors print the offending command's usage
// on stderr.
func Run(container *CLIContainer, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand(container)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", uerr.err, uerr.cmd.UsageString())
		return ExitUsage
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, rootCmd.UsageString())
		return ExitUsage
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitRuntime
}
