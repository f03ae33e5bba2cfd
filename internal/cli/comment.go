package cli

import (
	"github.com/spf13/cobra"
)

var commentReplyTo string

var commentCmd = &cobra.Command{
	Use:   "comment <post-id> <content>",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(2),
	RunE:  runComment,
}

func init() {
	commentCmd.Flags().StringVar(&commentReplyTo, "reply-to", "", "parent comment id for threaded replies")
	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	client, svc, err := buildClient()
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := client.Comment(cmd.Context(), args[0], args[1], commentReplyTo)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
