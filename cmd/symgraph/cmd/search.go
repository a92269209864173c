package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/pkg/searcher"
)

func newSearchCmd() *cobra.Command {
	var (
		mode        string
		limit       int
		partitionID string
		language    string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed repository",
		Long: `Search runs a query against the hybrid search engine.

--mode selects which side of the engine answers the query:
  hybrid    fuse semantic and lexical scores, weighted by partition authority (default)
  semantic  rank by vector similarity alone
  keyword   rank by BM25 score alone`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			root, err := projectRoot()
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			sr, err := searcher.Open(cmd.Context(), root, cfg)
			if err != nil {
				return fmt.Errorf("open search engine: %w", err)
			}
			defer sr.Close()

			opts := searcher.Options{
				Limit:       limit,
				PartitionID: partitionID,
				Language:    language,
			}

			var results []*searcher.Result
			switch mode {
			case "", "hybrid":
				results, err = sr.SearchHybrid(cmd.Context(), query, opts)
			case "semantic":
				results, err = sr.SearchSemantic(cmd.Context(), query, opts)
			case "keyword":
				results, err = sr.SearchKeyword(cmd.Context(), query, opts)
			default:
				return fmt.Errorf("unknown search mode %q: want hybrid, semantic, or keyword", mode)
			}
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			return printResults(cmd, results, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, semantic, or keyword")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVar(&partitionID, "partition", "", "filter to an exact partition id")
	cmd.Flags().StringVar(&language, "language", "", "filter to an exact language")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output results as JSON")

	return cmd
}

func printResults(cmd *cobra.Command, results []*searcher.Result, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	color := isTTY(out)
	for i, r := range results {
		suffix := ""
		if r.Partial {
			suffix = "  [partial: one search source timed out]"
		}
		fmt.Fprintf(out, "%d. %s  (score=%.4f semantic=%.4f lexical=%.4f authority=%.4f)%s\n",
			i+1, bold(r.Path, color), r.Score, r.SemanticScore, r.LexicalScore, r.AuthorityScore, suffix)
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
	}
	return nil
}
