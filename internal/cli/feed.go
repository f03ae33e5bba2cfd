package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/moltguard/internal/moltbook"
)

var (
	feedSort    string
	feedLimit   int
	feedSubmolt string
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Browse the Moltbook post feed through the filter",
	Long: `Feed fetches the post feed, runs every post through the content
filter, and prints the sanitised result as JSON.`,
	RunE: runFeed,
}

func init() {
	feedCmd.Flags().StringVar(&feedSort, "sort", "hot", "sort order (hot, new, top, rising)")
	feedCmd.Flags().IntVar(&feedLimit, "limit", 20, "maximum number of posts")
	feedCmd.Flags().StringVar(&feedSubmolt, "submolt", "", "restrict to one submolt")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, args []string) error {
	client, svc, err := buildClient()
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := client.BrowseFeed(cmd.Context(), moltbook.FeedOptions{
		Sort:    feedSort,
		Limit:   feedLimit,
		Submolt: feedSubmolt,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
