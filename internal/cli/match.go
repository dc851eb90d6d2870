package cli

import (
	"fmt"
	"os"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/matching"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/spf13/cobra"
)

type matchOptions struct {
	scanPath    string
	tiers       []string
	origin      string
	maxDistance int
	workers     int
}

// NewMatchCmd creates the match command
func NewMatchCmd() *cobra.Command {
	var opts matchOptions

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a scanned codebase against the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.scanPath == "" {
				return fmt.Errorf("--scan is required")
			}
			return runMatch(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.scanPath, "scan", "s", "", "Path to the scan JSON document")
	cmd.Flags().StringSliceVar(&opts.tiers, "tiers", nil, "Match types to run (default all)")
	cmd.Flags().StringVar(&opts.origin, "origin", "", "Package id the scan belongs to; its own entries are not reported")
	cmd.Flags().IntVar(&opts.maxDistance, "max-distance", index.DefaultMaxDistance, "Largest Hamming distance reported by approximate tiers")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Match workers (default from CPU count)")

	return cmd
}

func runMatch(cmd *cobra.Command, opts *matchOptions) error {
	var matchOpts []matching.Option
	if len(opts.tiers) > 0 {
		var kinds []models.IndexKind
		for _, name := range opts.tiers {
			kind, ok := models.KindByMatchType(name)
			if !ok {
				return fmt.Errorf("unknown tier %q", name)
			}
			kinds = append(kinds, kind)
		}
		matchOpts = append(matchOpts, matching.WithTiers(kinds...))
	}
	if opts.origin != "" {
		matchOpts = append(matchOpts, matching.WithOrigin(opts.origin))
	}

	f, err := os.Open(opts.scanPath)
	if err != nil {
		return fmt.Errorf("failed to open scan: %w", err)
	}
	defer f.Close()
	cb, err := codebase.Load(f)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	pool := matching.NewWorkerPool(ctx, opts.workers)
	defer pool.Close()

	registry := index.NewRegistry(store, index.WithMaxDistance(opts.maxDistance))
	results, err := matching.NewMatcher(registry, pool, matchOpts...).Match(ctx, cb)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), models.MatchResponse{Results: results.Resources(cb)})
}
