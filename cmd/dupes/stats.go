package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/repl"
)

var statsOpts listOptions

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the pending queue by score band",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		statsOpts.minScoreSet = cmd.Flags().Changed("min-score")

		a, err := newApp(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := statsOpts.apply(a.browser.Controller()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		s, err := a.browser.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", sessionHint(err))
			os.Exit(1)
		}
		repl.RenderStats(os.Stdout, s, a.browser.Controller().State().MinScore)
	},
}

func init() {
	statsCmd.Flags().Float64Var(&statsOpts.minScore, "min-score", 0, "Only count matches scoring at least this (default from config)")
	rootCmd.AddCommand(statsCmd)
}
