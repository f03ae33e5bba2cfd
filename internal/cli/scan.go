package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/moltguard/internal/config"
	"github.com/harun/moltguard/internal/logger"
)

var scanNoClassifier bool

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Scan a piece of text through the filter pipeline",
	Long: `Scan runs one text through the full filter pipeline and prints the
result as JSON. Text is taken from the argument, or from stdin when no
argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanNoClassifier, "no-classifier", false, "skip the learned classifier, rules only")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return fmt.Errorf("nothing to scan")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if scanNoClassifier {
		cfg.Classifier.Enabled = false
	}

	// One-shot invocation, keep the console quiet.
	log, err := logger.New(logger.Config{Level: "error", Console: true})
	if err != nil {
		return err
	}
	defer log.Close()

	svc, _, err := buildPipeline(cfg, log.GetZerolog())
	if err != nil {
		return err
	}
	defer svc.Close()

	result := svc.ScanText(context.Background(), text)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
