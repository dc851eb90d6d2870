// Package cli implements the matchctl command line tool over an embedded
// bolt index store.
package cli

import (
	"encoding/json"
	"io"

	"github.com/RishiKendai/matchcode/internal/logger"
	"github.com/RishiKendai/matchcode/internal/repository/boltdb"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "matchctl",
		Short: "Index packages and match scanned codebases against them",
		Long: `matchctl maintains a local fingerprint index of known packages and
reports which packages the resources of a scanned codebase come from.

Matching tries, in order:
  - exact-package-archive (archive sha1)
  - exact-file (file sha1)
  - approximate-directory-structure
  - approximate-directory-content
  - approximate-resource-content (halo1)`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "info"
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = "debug"
			}
			logger.Init(level, "console")
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("db", "matchcode.db", "Path to the bolt index database")

	rootCmd.AddCommand(NewIndexCmd())
	rootCmd.AddCommand(NewMatchCmd())

	return rootCmd
}

func openStore(cmd *cobra.Command) (*boltdb.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	return boltdb.Open(path)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
