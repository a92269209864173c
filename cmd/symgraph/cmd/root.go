package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codeindex/symgraph/internal/logging"
)

var (
	debug     bool
	logCancel func()
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the symgraph command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "symgraph",
		Short: "Symbol graph indexer and hybrid search engine",
		Long: `symgraph indexes a repository's symbol graph and serves hybrid
(semantic + lexical) search over it.

Run "symgraph index" once to build the index under .symgraph/, then
"symgraph search <query>" to query it.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := logging.DefaultConfig()
			if debug {
				logCfg = logging.DebugConfig()
			}
			logCfg.WriteToStderr = false
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				// Logging is not critical to any command's correctness.
				return nil
			}
			slog.SetDefault(logger)
			logCancel = cleanup
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCancel != nil {
				logCancel()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "write verbose structured logs to ~/.symgraph/logs/symgraph.log")

	root.AddCommand(newInitCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newVersionCmd())

	return root
}
