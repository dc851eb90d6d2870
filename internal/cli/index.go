package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/ingest"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type indexOptions struct {
	packagePath string
	scanPath    string
	scanURL     string
}

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a package and its scan",
		Long: `Registers the package described by --package and indexes the archive
digest, file digests and directory and file fingerprints of its scan.
Malformed fingerprints are recorded on the package and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.packagePath == "" {
				return fmt.Errorf("--package is required")
			}
			if (opts.scanPath == "") == (opts.scanURL == "") {
				return fmt.Errorf("exactly one of --scan or --scan-url is required")
			}
			return runIndex(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.packagePath, "package", "p", "", "Path to the package JSON document")
	cmd.Flags().StringVarP(&opts.scanPath, "scan", "s", "", "Path to the scan JSON document")
	cmd.Flags().StringVar(&opts.scanURL, "scan-url", "", "URL of the scan JSON document")

	return cmd
}

func runIndex(cmd *cobra.Command, opts *indexOptions) error {
	raw, err := os.ReadFile(opts.packagePath)
	if err != nil {
		return fmt.Errorf("failed to read package: %w", err)
	}
	var pkg models.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return fmt.Errorf("failed to decode package: %w", err)
	}

	req := &models.IndexRequest{Package: &pkg, ScanURL: opts.scanURL}
	if opts.scanPath != "" {
		scan, err := os.ReadFile(opts.scanPath)
		if err != nil {
			return fmt.Errorf("failed to read scan: %w", err)
		}
		req.Scan = scan
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := ingest.NewService(ingest.NewScanClient(0), index.NewIndexer(index.NewRegistry(store)), nil, 0)
	summary, err := svc.ProcessRequest(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, msg := range pkg.IndexErrors {
		log.Warn().Str("package_id", pkg.ID).Msg(msg)
	}
	return writeJSON(cmd.OutOrStdout(), summary)
}
