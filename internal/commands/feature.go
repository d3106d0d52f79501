package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/feature"
	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// NewFeatureCmd creates the feature command group driving the
// spec -> plan -> build pipeline.
func NewFeatureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Drive a feature through the spec, plan, and build phases",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newFeatureListCmd())
	cmd.AddCommand(newFeatureSpecCmd())
	cmd.AddCommand(newFeaturePlanCmd())
	cmd.AddCommand(newFeatureBuildCmd())
	return cmd
}

func newFeatureListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all features",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var features []*models.Feature
			if err := withDB(func(db *DB) error {
				fs, err := store.ListFeatures(context.Background(), db)
				if err != nil {
					return err
				}
				features = fs
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(features)
		},
	}
}

func agentCommandFlag(cmd *cobra.Command) (string, error) {
	agent, _ := cmd.Flags().GetString("agent")
	if agent != "" {
		return agent, nil
	}
	if envAgent := os.Getenv("RALPH_AGENT"); envAgent != "" {
		return envAgent, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	cfg, err := app.LoadConfig(cwd)
	if err != nil {
		return "", err
	}
	return cfg.Agent.Command, nil
}

func newFeatureSpecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec <name>",
		Short: "Run the spec phase: agent drafts the feature's spec.md",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			prompt, _ := cmd.Flags().GetString("prompt")
			if prompt == "" {
				return cmdErr(errors.New("--prompt is required (the feature request to turn into a spec)"))
			}
			agentCmd, err := agentCommandFlag(cmd)
			if err != nil {
				return cmdErr(err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return cmdErr(err)
			}
			paths := app.ResolvePaths(cwd)

			var f *models.Feature
			if err := withDB(func(db *DB) error {
				existing, err := store.GetFeatureByName(context.Background(), db, name)
				if err == nil {
					f = existing
					return nil
				}
				created, err := store.CreateFeature(context.Background(), db, name, "", "")
				if err != nil {
					return err
				}
				f = created
				return nil
			}); err != nil {
				return err
			}

			docPaths := feature.PathsFor(paths.Root, name)
			specPrompt := fmt.Sprintf(
				"Draft a spec for the feature %q at %s describing behavior and acceptance criteria.\n\nRequest:\n%s\n\nEmit <phase-complete>spec</phase-complete> once the spec file is written.",
				name, docPaths.SpecPath, prompt,
			)

			if err := withDB(func(db *DB) error {
				return feature.RunSpecPhase(context.Background(), db, f, agentCmd, cwd, docPaths, specPrompt, slog.Default())
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"feature_id": f.ID, "name": name, "spec_path": docPaths.SpecPath})
		},
	}
	cmd.Flags().String("prompt", "", "Feature request text")
	return cmd
}

func newFeaturePlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <name>",
		Short: "Run the plan phase: agent drafts the feature's plan.md from its spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			agentCmd, err := agentCommandFlag(cmd)
			if err != nil {
				return cmdErr(err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return cmdErr(err)
			}
			paths := app.ResolvePaths(cwd)
			docPaths := feature.PathsFor(paths.Root, name)

			specBytes, err := os.ReadFile(docPaths.SpecPath) //nolint:gosec // G304: project-local feature doc path
			if err != nil {
				return cmdErr(fmt.Errorf("read spec for feature %s: %w", name, err))
			}

			var f *models.Feature
			if err := withDB(func(db *DB) error {
				found, err := store.GetFeatureByName(context.Background(), db, name)
				if err != nil {
					return err
				}
				f = found
				return nil
			}); err != nil {
				return err
			}

			planPrompt := fmt.Sprintf(
				"Draft a plan at %s that breaks the spec below into an executable task subtree.\n\nSpec:\n%s\n\nEmit <phase-complete>plan</phase-complete> once the plan file is written.",
				docPaths.PlanPath, string(specBytes),
			)

			if err := withDB(func(db *DB) error {
				return feature.RunPlanPhase(context.Background(), db, f, agentCmd, cwd, docPaths, planPrompt, slog.Default())
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"feature_id": f.ID, "name": name, "plan_path": docPaths.PlanPath})
		},
	}
	return cmd
}

func newFeatureBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <name>",
		Short: "Run the build phase: agent materializes the task subtree from the plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			agentCmd, err := agentCommandFlag(cmd)
			if err != nil {
				return cmdErr(err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return cmdErr(err)
			}
			paths := app.ResolvePaths(cwd)
			docPaths := feature.PathsFor(paths.Root, name)

			planBytes, err := os.ReadFile(docPaths.PlanPath) //nolint:gosec // G304: project-local feature doc path
			if err != nil {
				return cmdErr(fmt.Errorf("read plan for feature %s: %w", name, err))
			}

			var f *models.Feature
			if err := withDB(func(db *DB) error {
				found, err := store.GetFeatureByName(context.Background(), db, name)
				if err != nil {
					return err
				}
				f = found
				return nil
			}); err != nil {
				return err
			}

			buildPrompt := fmt.Sprintf(
				"Using `ralph task add`/`ralph deps add`, materialize the task subtree described by the plan below for feature %s (id %s).\n\nPlan:\n%s\n\nEmit <phase-complete>build</phase-complete> once the subtree exists.",
				name, f.ID, string(planBytes),
			)

			if err := withDB(func(db *DB) error {
				return feature.RunBuildPhase(context.Background(), db, f, agentCmd, cwd, buildPrompt, slog.Default())
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"feature_id": f.ID, "name": name})
		},
	}
	return cmd
}
