package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/repl"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent merge/ignore decisions from the local audit trail",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := store.ListResolutions(context.Background(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load history: %v\n", err)
			os.Exit(1)
		}
		repl.RenderHistory(os.Stdout, recs)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of decisions to show")
	rootCmd.AddCommand(historyCmd)
}
