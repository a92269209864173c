package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/internal/metrics"
	"github.com/codeindex/symgraph/pkg/searcher"
)

// judgmentsFile is the on-disk shape of a labelled query set: a list of
// queries, each with a handful of graded relevance judgments.
type judgmentsFile struct {
	K       int                  `yaml:"k"`
	Queries []judgmentsFileQuery `yaml:"queries"`
}

type judgmentsFileQuery struct {
	Query     string                `yaml:"query"`
	Judgments []judgmentsFileJudged `yaml:"judgments"`
}

type judgmentsFileJudged struct {
	File      string `yaml:"file"`
	Relevance int    `yaml:"relevance"`
}

func newEvaluateCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "evaluate <judgments.yaml>",
		Short: "Score search quality against a labelled query set",
		Long: `Evaluate runs every query in a labelled query set against the indexed
repository and reports Recall@k, MRR, nDCG@k, Precision@k, and Average
Precision averaged across queries.

The judgments file is YAML:

  k: 10
  queries:
    - query: "rate limiter"
      judgments:
        - file: "internal/ratelimit/bucket.go"
          relevance: 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read judgments file: %w", err)
			}
			var jf judgmentsFile
			if err := yaml.Unmarshal(data, &jf); err != nil {
				return fmt.Errorf("parse judgments file: %w", err)
			}
			if jf.K <= 0 {
				jf.K = 10
			}

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

			queries := make([]metrics.LabelledQuery, len(jf.Queries))
			resultsByQuery := make([][]metrics.RankedResult, len(jf.Queries))
			for i, q := range jf.Queries {
				judgments := make([]metrics.Judgment, len(q.Judgments))
				for j, jm := range q.Judgments {
					judgments[j] = metrics.Judgment{File: jm.File, Relevance: metrics.Relevance(jm.Relevance)}
				}
				queries[i] = metrics.LabelledQuery{Query: q.Query, Judgments: judgments}

				var hits []*searcher.Result
				switch mode {
				case "", "hybrid":
					hits, err = sr.SearchHybrid(cmd.Context(), q.Query, searcher.Options{Limit: jf.K})
				case "semantic":
					hits, err = sr.SearchSemantic(cmd.Context(), q.Query, searcher.Options{Limit: jf.K})
				case "keyword":
					hits, err = sr.SearchKeyword(cmd.Context(), q.Query, searcher.Options{Limit: jf.K})
				default:
					return fmt.Errorf("unknown search mode %q: want hybrid, semantic, or keyword", mode)
				}
				if err != nil {
					return fmt.Errorf("search %q: %w", q.Query, err)
				}

				ranked := make([]metrics.RankedResult, len(hits))
				for k, h := range hits {
					ranked[k] = metrics.RankedResult{File: h.Path}
				}
				resultsByQuery[i] = ranked
			}

			report := metrics.EvaluateAll(queries, resultsByQuery, jf.K)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode to evaluate: hybrid, semantic, or keyword")

	return cmd
}
