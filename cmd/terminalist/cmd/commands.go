package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/config"
	"github.com/dapp-whisperer/terminalist/internal/credentials"
	"github.com/dapp-whisperer/terminalist/internal/storage"
	tasksync "github.com/dapp-whisperer/terminalist/internal/sync"
	"github.com/dapp-whisperer/terminalist/internal/utils"
)

// newSyncCmd performs a one-shot full sync of every enabled instance.
func newSyncCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync all enabled backends and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(app.instanceIDs) == 0 {
				return utils.ErrNoBackendsAvailable()
			}

			ctx := context.Background()
			for _, instanceID := range app.instanceIDs {
				stats, err := app.svc.FullSync(ctx, instanceID)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%s: %d projects, %d sections, %d labels, %d tasks\n",
					instanceID, stats.Projects, stats.Sections, stats.Labels, stats.Tasks)
			}
			return nil
		},
	}
}

// newAddCmd captures a task from the shell without opening the TUI.
func newAddCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a task without opening the TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := tasksync.CreateTaskInput{Content: args[0]}

			if due, _ := cmd.Flags().GetString("due"); due != "" {
				if !utils.ValidDate(due) {
					return utils.ErrInvalidDate(due)
				}
				in.DueDate = &due
			}
			if dueString, _ := cmd.Flags().GetString("due-string"); dueString != "" {
				in.DueString = &dueString
			}
			if priority, _ := cmd.Flags().GetInt("priority"); priority != 0 {
				if err := utils.ValidatePriority(priority); err != nil {
					return err
				}
				in.Priority = &priority
			}

			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(app.instanceIDs) == 0 {
				return utils.ErrNoBackendsAvailable()
			}
			instanceID := app.instanceIDs[0]
			ctx := context.Background()

			if projectName, _ := cmd.Flags().GetString("project"); projectName != "" {
				projects, err := app.svc.Projects(ctx, instanceID)
				if err != nil {
					return err
				}
				found := false
				for _, p := range projects {
					if p.Name == projectName {
						id := p.UUID
						in.ProjectUUID = &id
						found = true
						break
					}
				}
				if !found {
					return utils.WrapWithSuggestion(
						fmt.Errorf("no project named %q in the local cache", projectName),
						"Run 'terminalist sync' first, or check the project name")
				}
			}

			task, err := app.svc.CreateTask(ctx, instanceID, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "added %q (%s)\n", task.Content, task.RemoteID)
			return nil
		},
	}

	cmd.Flags().StringP("project", "P", "", "Project name (defaults to the inbox)")
	cmd.Flags().StringP("due", "d", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().String("due-string", "", "Natural-language due date (e.g. 'every friday')")
	cmd.Flags().IntP("priority", "p", 0, "Priority 1-4 (4 = highest)")
	return cmd
}

// newListCmd prints tasks from the local cache. It never talks to a backend,
// so it works offline and needs no token.
func newListCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached tasks without opening the TUI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			utils.SetVerboseMode(cfg.Logging.Verbose || flagBool(cmd, "verbose"))

			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				if dbPath, err = cfg.DatabasePath(); err != nil {
					return err
				}
			}
			store, err := storage.Open(dbPath)
			if err != nil {
				return fmt.Errorf("cannot open database %s: %w", dbPath, err)
			}
			defer store.Close()

			ctx := context.Background()
			instances, err := storage.GetBackendInstances(ctx, store.DB())
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				return utils.WrapWithSuggestion(
					fmt.Errorf("the local cache is empty"),
					"Run 'terminalist sync' first")
			}
			instanceID := instances[0].UUID

			svc := tasksync.NewService(store, backend.NewRegistry())

			var tasks []storage.Task
			if query, _ := cmd.Flags().GetString("search"); query != "" {
				tasks, err = svc.SearchTasks(ctx, instanceID, query)
			} else if projectName, _ := cmd.Flags().GetString("project"); projectName != "" {
				projects, perr := svc.Projects(ctx, instanceID)
				if perr != nil {
					return perr
				}
				found := false
				for _, p := range projects {
					if p.Name == projectName {
						tasks, err = svc.TasksForProject(ctx, p.UUID)
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("no project named %q in the local cache", projectName)
				}
			} else {
				view, _ := cmd.Flags().GetString("view")
				switch view {
				case "today":
					tasks, err = svc.TodayTasks(ctx, instanceID)
				case "tomorrow":
					tasks, err = svc.TomorrowTasks(ctx, instanceID)
				case "upcoming":
					tasks, err = svc.UpcomingTasks(ctx, instanceID)
				case "all":
					tasks, err = svc.AllTasks(ctx, instanceID)
				default:
					return fmt.Errorf("unknown view %q (today, tomorrow, upcoming, all)", view)
				}
			}
			if err != nil {
				return err
			}

			for _, t := range tasks {
				mark := " "
				if t.IsCompleted {
					mark = "x"
				}
				due := ""
				if t.DueDate != nil {
					due = "  " + *t.DueDate
				}
				fmt.Fprintf(stdout, "[%s] p%d %s%s\n", mark, t.Priority, t.Content, due)
			}
			return nil
		},
	}

	cmd.Flags().StringP("view", "w", "today", "View to list: today, tomorrow, upcoming, all")
	cmd.Flags().StringP("project", "P", "", "List one project by name instead of a view")
	cmd.Flags().StringP("search", "s", "", "List tasks matching a substring instead of a view")
	return cmd
}

// newCredentialsCmd manages API tokens in the system keyring.
func newCredentialsCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage backend API tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <backend-name>",
		Short: "Store an API token in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := credentials.PromptToken(fmt.Sprintf("API token for %s: ", args[0]))
			if err != nil {
				return err
			}
			if err := credentials.NewManager().SetToken(args[0], token); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "token stored for %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <backend-name>",
		Short: "Remove a stored API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.NewManager().DeleteToken(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "token removed for %s\n", args[0])
			return nil
		},
	})

	return cmd
}

// newConfigCmd inspects and bootstraps the config file.
func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented sample config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, path)
			return nil
		},
	})

	return cmd
}
