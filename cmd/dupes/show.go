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

var showCmd = &cobra.Command{
	Use:   "show <match-id>",
	Short: "Show a duplicate match with a field-by-field comparison",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := newApp(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		m, err := a.browser.Find(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", sessionHint(err))
			os.Exit(1)
		}

		// The list payload may carry only ids; fill in the full records
		for _, c := range []*types.Customer{&m.CustomerA, &m.CustomerB} {
			if c.ID == "" || c.Email != "" || c.Phone != "" {
				continue
			}
			full, err := a.client.GetCustomer(ctx, c.ID)
			if err != nil {
				yellow := color.New(color.FgYellow).SprintFunc()
				fmt.Fprintf(os.Stderr, "%s could not load customer %s: %v\n", yellow("Warning:"), c.ID, sessionHint(err))
				continue
			}
			*c = *full
		}

		repl.RenderDetail(os.Stdout, m, false)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
