package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/pkg/indexer"
)

func newClassifyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "classify <path>",
		Short: "Classify a path into its partition and authority score",
		Long: `Report the partition_id, authority_score, and matching reason for a
repository-relative path. Classification is a pure function of the path
string and does not require the path to have been indexed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ix, err := indexer.Open(cmd.Context(), root, cfg)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer ix.Close()

			result := ix.ClassifyPath(args[0])

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"partition_id":    result.PartitionID,
					"authority_score": result.AuthorityScore,
					"reason":          result.Reason,
				})
			}

			fmt.Fprintf(out, "%s  authority=%.2f  (%s)\n", result.PartitionID, result.AuthorityScore, result.Reason)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the classification as JSON")

	return cmd
}
