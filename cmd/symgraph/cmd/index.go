package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/pkg/indexer"
)

func newIndexCmd() *cobra.Command {
	var (
		forceClean bool
		maxWorkers int
	)

	cmd := &cobra.Command{
		Use:   "index [path...]",
		Short: "Index a repository's symbol graph",
		Long: `Index walks a repository (or an explicit set of files), extracts
symbols, builds embedding text, classifies each file's partition, and
writes the metadata, vector, and lexical stores under .symgraph/.

With no arguments it indexes the whole project. With one or more file
paths it indexes only those files, without cascade-deleting anything
else tracked in the index.`,
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

			opts := indexer.Options{
				Include:        cfg.Paths.Include,
				Exclude:        cfg.Paths.Exclude,
				ForceClean:     forceClean || cfg.Indexing.ForceClean,
				MaxWorkers:     maxWorkers,
				EmbedBatchSize: cfg.Indexing.EmbedBatchSize,
			}

			var stats *indexer.Stats
			if len(args) == 0 {
				stats, err = ix.IndexRepository(cmd.Context(), opts)
			} else {
				paths, rerr := relativeToRoot(root, args)
				if rerr != nil {
					return rerr
				}
				stats, err = ix.IndexFiles(cmd.Context(), paths, opts)
			}
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			printIndexStats(cmd, stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceClean, "force-clean", false, "truncate and rebuild the metadata, vector, and lexical stores")
	cmd.Flags().IntVar(&maxWorkers, "workers", 0, "extraction worker count (0 = auto)")

	return cmd
}

func printIndexStats(cmd *cobra.Command, stats *indexer.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s [%s]: %d total, %d fresh, %d stale, %d unchanged, %d embedded, %d deleted (%s)\n",
		stats.RunID, stats.Outcome, stats.Total, stats.Fresh, stats.Stale, stats.Unchanged, stats.Embedded, stats.Deleted, stats.Duration)
	for _, e := range stats.Errors {
		fmt.Fprintf(out, "  error: %s: %s\n", e.Path, e.Error)
	}
}

// projectRoot locates the nearest .symgraph.yaml/.git ancestor of the
// current directory, falling back to the current directory itself.
func projectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		return cwd, nil
	}
	return root, nil
}

// relativeToRoot converts a list of (possibly relative or absolute) CLI
// arguments into paths relative to root, matching the scanner's glob
// contract for an explicit file list.
func relativeToRoot(root string, args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolve path %s: %w", a, err)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return nil, fmt.Errorf("path %s is not under project root %s: %w", a, root, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}
