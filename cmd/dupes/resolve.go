package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/repl"
	"github.com/steveyegge/dupes/internal/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <merge|ignore> <match-id>...",
	Short: "Merge or ignore one or more duplicate matches",
	Long: `Submit a merge or ignore decision for each match id.

Several ids are resolved concurrently (review.resolve_concurrency in the
config). Every decision is recorded in the local audit trail, see
'dupes history'. The command exits non-zero if any decision failed.

Examples:
  dupes resolve merge a0X5e000001
  dupes resolve ignore a0X5e000002 a0X5e000003`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		action, err := types.ParseAction(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		runResolve(action, args[1:])
	},
}

func newActionCmd(action types.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <match-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runResolve(action, args)
		},
	}
}

func runResolve(action types.Action, ids []string) {
	ctx := context.Background()
	a, err := newApp(ctx, repl.NewNotifier(os.Stdout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	results, err := a.resolver.ResolveMany(ctx, ids, action)
	if err == nil {
		return
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %d of %d %s decisions failed\n", red("Error:"), failed, len(results), action)
	if hint := sessionHint(err); hint != err {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), hint)
	}
	os.Exit(1)
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(newActionCmd(types.ActionMerge, "Merge duplicate matches (same as 'resolve merge')"))
	rootCmd.AddCommand(newActionCmd(types.ActionIgnore, "Ignore duplicate matches (same as 'resolve ignore')"))
}
