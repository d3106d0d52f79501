package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/output"
)

// Execute runs the ralph CLI.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "ralph",
		Short:         "Autonomous coding-agent orchestrator: task DAG, journal, knowledge, and feature pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}
			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override database path")
	root.PersistentFlags().String("agent", "", "Agent CLI command (default: $RALPH_AGENT or .ralph.toml agent.command)")
	root.Flags().BoolP("version", "v", false, "version for ralph")

	root.AddCommand(NewInitCmd())
	root.AddCommand(NewTaskCmd())
	root.AddCommand(NewDepsCmd())
	root.AddCommand(NewFeatureCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewAuthCmd())
	root.AddCommand(NewSchemaCmd())
	root.AddCommand(NewUpgradeCmd())

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Default().Error("command failed", "error", err.Error())
		}
	}
	return err
}
