package main

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tucsky/aggr-ingest/internal/catalog"
	"github.com/tucsky/aggr-ingest/internal/config"
)

// loadConfig resolves the layered config for cmd, using that command's own
// flag set so viper binds exactly the flags it defines.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), flagConfig, flagNoConfig)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openCatalog opens the catalog database at cfg.DBPath.
func openCatalog(cfg config.Config) (*catalog.DB, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("aggrbin: no --db / dbPath configured")
	}
	return catalog.Open(cfg.DBPath)
}

// realFs is the afero filesystem used by every subcommand; a package var so
// it can be swapped in process-level tests if ever needed.
var realFs afero.Fs = afero.NewOsFs()

// splitRetryStatuses flattens repeatable --retry-status flags, each of
// which may itself be a comma list (e.g. --retry-status=a,b --retry-status=c).
func splitRetryStatuses(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
