package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/moltguard/internal/config"
	"github.com/harun/moltguard/internal/logger"
	"github.com/harun/moltguard/pkg/audit"
	"github.com/harun/moltguard/pkg/reputation"
)

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Inspect and edit the blocked-authors list",
}

var blocklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the blocked authors as JSON",
	RunE:  runBlocklistList,
}

var blocklistUnblockCmd = &cobra.Command{
	Use:   "unblock <author>",
	Short: "Remove an author from the blocklist",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlocklistUnblock,
}

func init() {
	blocklistCmd.AddCommand(blocklistListCmd)
	blocklistCmd.AddCommand(blocklistUnblockCmd)
	rootCmd.AddCommand(blocklistCmd)
}

func runBlocklistList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: "error", Console: true})
	if err != nil {
		return err
	}
	defer log.Close()

	store := reputation.NewStore(cfg.Reputation.BlocklistPath, log.GetZerolog())
	entries := store.Load()
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No blocked authors.")
		return nil
	}

	authors := make([]string, 0, len(entries))
	for author := range entries {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	ordered := make([]map[string]any, 0, len(authors))
	for _, author := range authors {
		e := entries[author]
		ordered = append(ordered, map[string]any{
			"author":     author,
			"blocked_at": e.BlockedAt,
			"expires_at": e.ExpiresAt,
			"reason":     e.Reason,
			"flag_count": e.FlagCount,
		})
	}
	out, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runBlocklistUnblock(cmd *cobra.Command, args []string) error {
	author := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: "error", Console: true})
	if err != nil {
		return err
	}
	defer log.Close()
	zl := log.GetZerolog()

	sink, err := audit.NewSink(cfg.Audit.Path, zl)
	if err != nil {
		return fmt.Errorf("audit sink: %w", err)
	}
	defer sink.Close()

	store := reputation.NewStore(cfg.Reputation.BlocklistPath, zl)
	tracker := reputation.NewTracker(reputation.Config{
		Threshold:     cfg.Reputation.FlagThreshold,
		BlockDuration: time.Duration(cfg.Reputation.BlockDuration) * time.Second,
	}, store, sink, zl)

	if !tracker.Unblock(author) {
		return fmt.Errorf("author %q is not blocked", author)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unblocked %s\n", author)
	return nil
}
