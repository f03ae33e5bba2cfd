package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harun/moltguard/internal/config"
	"github.com/harun/moltguard/internal/logger"
	"github.com/harun/moltguard/internal/moltbook"
	"github.com/harun/moltguard/pkg/filter"
)

// buildClient assembles the filter pipeline and the Moltbook client
// for one-shot API commands. The caller must Close the returned
// service.
func buildClient() (*moltbook.Client, *filter.Service, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(logger.Config{Level: "error", Console: true})
	if err != nil {
		return nil, nil, err
	}
	defer log.Close()
	zl := log.GetZerolog()

	svc, limiter, err := buildPipeline(cfg, zl)
	if err != nil {
		return nil, nil, err
	}

	client, err := moltbook.New(cfg.Moltbook, svc, limiter, zl)
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	return client, svc, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
