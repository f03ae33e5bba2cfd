package cli

import (
	"github.com/spf13/cobra"
)

var voteCmd = &cobra.Command{
	Use:   "vote <post|comment> <id> <up|down>",
	Short: "Vote on a post or comment",
	Args:  cobra.ExactArgs(3),
	RunE:  runVote,
}

func init() {
	rootCmd.AddCommand(voteCmd)
}

func runVote(cmd *cobra.Command, args []string) error {
	client, svc, err := buildClient()
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := client.Vote(cmd.Context(), args[1], args[0], args[2])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
