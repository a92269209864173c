// Package logging provides structured, rotating file logging built on
// log/slog. The CLI writes JSON logs to ~/.symgraph/logs/symgraph.log on
// every run: at info level by default, and at debug level when the --debug
// flag is set.
//
// The CLI turns off the stderr copy, so its logs go to the file only.
package logging
