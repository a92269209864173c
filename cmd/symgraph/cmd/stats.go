package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/pkg/indexer"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Display per-status file counts and lexical index size for the current project's index.`,
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

			statuses, lexStats, err := ix.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"by_status":       statuses,
					"document_count":  lexStats.DocumentCount,
					"term_count":      lexStats.TermCount,
					"avg_doc_length":  lexStats.AvgDocLength,
				})
			}

			out := cmd.OutOrStdout()
			for status, count := range statuses {
				fmt.Fprintf(out, "%-10s %d\n", status, count)
			}
			fmt.Fprintf(out, "lexical index: %d documents, %d terms, avg length %.1f\n",
				lexStats.DocumentCount, lexStats.TermCount, lexStats.AvgDocLength)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output stats as JSON")

	return cmd
}
