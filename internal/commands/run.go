package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/loop"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/strategy"
)

// NewRunCmd creates the run command: the long-lived iteration loop.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the iteration loop against the ready task set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			once, _ := cmd.Flags().GetBool("once")
			limit, _ := cmd.Flags().GetInt("limit")
			strategyFlag, _ := cmd.Flags().GetString("model-strategy")
			model, _ := cmd.Flags().GetString("model")
			featureID, _ := cmd.Flags().GetString("feature")
			maxRetries, _ := cmd.Flags().GetInt("max-retries")
			noVerify, _ := cmd.Flags().GetBool("no-verify")

			agentCmd, err := agentCommandFlag(cmd)
			if err != nil {
				return cmdErr(err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return cmdErr(err)
			}
			cfg, err := app.LoadConfig(cwd)
			if err != nil {
				return cmdErr(err)
			}
			if strategyFlag == "" {
				strategyFlag = cfg.Run.DefaultModelStrategy
			}
			if maxRetries <= 0 {
				maxRetries = cfg.Run.MaxRetries
			}
			_ = maxRetries // not passed to the loop: retries use each task's stored max_retries

			kind := strategy.Kind(strategyFlag)
			if kind != strategy.Fixed && kind != strategy.CostOptimized && kind != strategy.Escalate && kind != strategy.PlanThenExecute {
				return cmdErr(fmt.Errorf("unknown model strategy %q", strategyFlag))
			}
			if kind == strategy.Fixed && model == "" {
				return cmdErr(errors.New("--model is required with --model-strategy=fixed"))
			}

			maxIterations := 0
			if once {
				maxIterations = 1
			} else if limit > 0 {
				maxIterations = limit
			}

			paths := app.ResolvePaths(cwd)
			log := slog.Default()

			// A second SIGINT/SIGTERM means the operator wants out now;
			// the first is handled cooperatively via FeedbackOnInterrupt.
			interrupt := app.NewInterrupt(func() {
				os.Exit(130)
			})

			var result loop.Result
			if err := withDB(func(db *DB) error {
				r, err := loop.Run(context.Background(), loop.Options{
					DB:                   db,
					RunID:                uuid.NewString(),
					FeatureID:            featureID,
					AgentCommand:         agentCmd,
					WorkingDir:           cwd,
					StrategyKind:         kind,
					ConfiguredModel:      model,
					MaxIterations:        maxIterations,
					VerifyEnabled:        !noVerify,
					KnowledgeDir:         paths.KnowledgeDir,
					FeedbackOnInterrupt:  promptForInterruptFeedback,
					Interrupt:            interrupt,
					Log:                  log,
				})
				if err != nil {
					return err
				}
				result = r
				return nil
			}); err != nil {
				return err
			}
			if err := output.PrintSuccess(map[string]any{"outcome": string(result.Outcome), "iterations": result.Iterations}); err != nil {
				return err
			}
			if result.Outcome == loop.OutcomeFailure {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().Bool("once", false, "Run a single iteration then stop")
	cmd.Flags().Int("limit", 0, "Stop after N iterations (0 = unbounded)")
	cmd.Flags().String("model-strategy", "", "Model selection strategy (fixed|cost_optimized|escalate|plan_then_execute)")
	cmd.Flags().String("model", "", "Model name, required when --model-strategy=fixed")
	cmd.Flags().String("feature", "", "Restrict the run to one feature's task subtree")
	cmd.Flags().Int("max-retries", 0, "Accepted but has no effect: the loop uses each task's stored max_retries")
	cmd.Flags().Bool("no-verify", false, "Skip the verification session after a task completes")
	return cmd
}

// promptForInterruptFeedback asks an operator at the terminal whether to
// fold feedback into the claimed task and continue, or stop the run.
func promptForInterruptFeedback() (string, bool) {
	fmt.Fprint(os.Stderr, "\ninterrupted: enter feedback to continue, or leave blank and press enter to stop\n> ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", false
	}
	if line == "\n" || line == "" {
		return "", false
	}
	return line, true
}
