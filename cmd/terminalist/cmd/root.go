// Package cmd wires the terminalist CLI: the bare command starts the TUI,
// subcommands cover one-shot sync, quick capture, credentials and config.
package cmd

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dapp-whisperer/terminalist/internal/runner"
	"github.com/dapp-whisperer/terminalist/internal/tui"
	"github.com/dapp-whisperer/terminalist/internal/utils"
	"github.com/dapp-whisperer/terminalist/internal/watcher"
)

// Version is set at build time.
var Version = "dev"

// Execute runs the CLI with the given arguments and IO writers.
func Execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRoot(stdout, stderr)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRoot creates the root command with injectable IO.
func NewRoot(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "terminalist",
		Short:   "A terminal client for your task manager",
		Long:    "terminalist keeps a local cache of your tasks and reconciles every change with the remote service.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			utils.SetVerboseMode(verbose)

			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(app.instanceIDs) == 0 {
				return utils.ErrNoBackendsAvailable()
			}
			instanceID := app.instanceIDs[0]

			run := runner.New(app.svc, app.cfg.Sync.Workers)
			defer run.Stop()

			if app.cfg.Sync.OnStart {
				run.Sync(instanceID)
			}

			var w *watcher.Watcher
			if app.cfg.Sync.WatchDatabase && app.dbPath != "" {
				wcfg := watcher.DefaultConfig(func() {
					run.LoadTasks(instanceID, initialView(app.cfg.UI.DefaultView), uuid.Nil)
				})
				wcfg.Paths = []string{app.dbPath}
				if w, err = watcher.New(wcfg); err == nil {
					if err := w.Start(); err != nil {
						utils.Warnf("database watcher disabled: %v", err)
					}
					defer w.Stop()
				}
			}

			model := tui.New(run, app.svc, instanceID, initialView(app.cfg.UI.DefaultView))
			program := tea.NewProgram(model, tea.WithAltScreen())
			_, err = program.Run()
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("db", "", "Path to the local cache database (overrides config)")

	cmd.AddCommand(newSyncCmd(stdout))
	cmd.AddCommand(newAddCmd(stdout))
	cmd.AddCommand(newListCmd(stdout))
	cmd.AddCommand(newCredentialsCmd(stdout))
	cmd.AddCommand(newConfigCmd(stdout))

	return cmd
}

func initialView(name string) runner.View {
	switch name {
	case "tomorrow":
		return runner.ViewTomorrow
	case "upcoming":
		return runner.ViewUpcoming
	case "all":
		return runner.ViewAll
	default:
		return runner.ViewToday
	}
}
