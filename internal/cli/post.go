package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	postContent string
	postLink    string
)

var postCmd = &cobra.Command{
	Use:   "post <submolt> <title>",
	Short: "Publish a post to a submolt",
	Long: `Post publishes a text or link post. The local rate limiter runs
first; a rejection reports the retry hint without any network call.`,
	Args: cobra.ExactArgs(2),
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVar(&postContent, "content", "", "text body")
	postCmd.Flags().StringVar(&postLink, "link", "", "link URL (takes precedence over --content)")
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	if postContent == "" && postLink == "" {
		return fmt.Errorf("either --content or --link is required")
	}

	client, svc, err := buildClient()
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := client.CreatePost(cmd.Context(), args[0], args[1], postContent, postLink)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
