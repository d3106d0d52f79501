package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/acp"
	"github.com/dotcommander/ralph/internal/output"
)

// NewAuthCmd creates the auth command: initialize plus the optional
// authenticate handshake step (spec.md §4.6), run standalone without ever
// opening a session.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Run the agent's authenticate handshake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			methodID, _ := cmd.Flags().GetString("method")
			agentCmd, err := agentCommandFlag(cmd)
			if err != nil {
				return cmdErr(err)
			}
			authenticated, err := acp.RunAuthenticate(context.Background(), agentCmd, methodID, slog.Default())
			if err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(map[string]bool{"authenticated": authenticated})
		},
	}
	cmd.Flags().String("method", "", "Authentication method id to request")
	return cmd
}
