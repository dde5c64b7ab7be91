package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/repl"
)

var consoleCmd = &cobra.Command{
	Use:     "console",
	Aliases: []string{"repl"},
	Short:   "Start the interactive review console",
	Long: `Start an interactive console for reviewing pending duplicates.

The console shows the first page straight away. Use 'show #N' to compare
the two records of row N, 'merge #N' or 'ignore #N' to decide, and
'next'/'prev'/'sort'/'filter' to move around the queue.

Type 'help' in the console for available commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		a, err := newApp(ctx, repl.NewNotifier(os.Stdout))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		r, err := repl.New(&repl.Config{
			Browser:     a.browser,
			Resolver:    a.resolver,
			Sessions:    a.auth,
			Audit:       store,
			Customers:   a.client,
			HistoryFile: filepath.Join(filepath.Dir(cfg.Storage.Path), "console_history"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create console: %v\n", err)
			os.Exit(1)
		}

		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
