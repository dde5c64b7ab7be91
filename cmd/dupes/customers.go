package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var customersCmd = &cobra.Command{
	Use:   "customers [search]",
	Short: "Browse the customer directory",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")
		search := ""
		if len(args) > 0 {
			search = args[0]
		}

		ctx := context.Background()
		a, err := newApp(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		res, err := a.client.ListCustomers(ctx, page, size, search)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", sessionHint(err))
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("\n%s  %s\n\n", cyan("Customers"), gray(fmt.Sprintf("page %d, %d total", res.Page.Page, res.Page.Total)))
		if len(res.Items) == 0 {
			fmt.Printf("  %s\n\n", gray("No customers found"))
			return
		}
		for _, c := range res.Items {
			name := c.FullName()
			if c.IsDeleted {
				name += " " + red("(deleted)")
			}
			fmt.Printf("  %-20s %-28s %-30s %s\n", c.ID, name, c.Email, c.Phone)
		}
		if res.Page.HasMore {
			fmt.Printf("\n%s\n", gray(fmt.Sprintf("More results: dupes customers --page %d", res.Page.Page+1)))
		}
		fmt.Println()
	},
}

func init() {
	customersCmd.Flags().IntP("page", "p", 1, "Page number")
	customersCmd.Flags().IntP("size", "s", 25, "Page size")
	rootCmd.AddCommand(customersCmd)
}
