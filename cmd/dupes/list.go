package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/repl"
	"github.com/steveyegge/dupes/internal/review"
	"github.com/steveyegge/dupes/internal/types"
)

// listOptions are the view-state flags shared by list and stats
type listOptions struct {
	page     int
	size     int
	sort     string
	order    string
	minScore float64

	minScoreSet bool
}

func addListFlags(cmd *cobra.Command, o *listOptions) {
	cmd.Flags().IntVarP(&o.size, "size", "s", 0, "Page size: 10, 25, 50 or 100 (default from config)")
	cmd.Flags().StringVar(&o.sort, "sort", "", "Sort key: score, createdAt or status")
	cmd.Flags().StringVar(&o.order, "order", "", "Sort order: asc or desc")
	cmd.Flags().Float64Var(&o.minScore, "min-score", 0, "Only include matches scoring at least this (default from config)")
}

// apply drives the controller through the same transitions the console uses.
// The page is not applied here since it can only be clamped once the total
// is known.
func (o *listOptions) apply(ctrl *review.Controller) error {
	if o.size != 0 {
		if err := ctrl.SetPageSize(o.size); err != nil {
			return err
		}
	}
	if o.minScoreSet {
		if err := ctrl.SetMinScore(o.minScore); err != nil {
			return err
		}
	}

	if o.sort == "" && o.order == "" {
		return nil
	}
	key := ctrl.State().Sort
	if o.sort != "" {
		key = types.SortKey(o.sort)
		for _, k := range types.SortKeys {
			if strings.EqualFold(string(k), o.sort) {
				key = k
			}
		}
	}
	if key != ctrl.State().Sort {
		if err := ctrl.SortBy(key); err != nil {
			return err
		}
	}
	if o.order != "" {
		order := types.SortOrder(strings.ToLower(o.order))
		if order != types.OrderAsc && order != types.OrderDesc {
			return fmt.Errorf("invalid sort order %q (want asc or desc)", o.order)
		}
		if ctrl.State().Order != order {
			return ctrl.SortBy(key)
		}
	}
	return nil
}

// load fetches the requested page, first loading page 1 to learn the total
// when a later page was asked for
func (o *listOptions) load(ctx context.Context, b *review.Browser) (*review.Page, error) {
	page, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}
	if o.page > 1 && b.Controller().GoToPage(o.page) != page.State.Page {
		return b.Load(ctx)
	}
	return page, nil
}

var (
	listOpts listOptions
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending duplicate matches",
	Long: `List one page of pending duplicate matches.

Examples:
  dupes list                          # first page, highest scores first
  dupes list --page 2 --size 25
  dupes list --sort createdAt --order asc
  dupes list --min-score 90 --json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		listOpts.minScoreSet = cmd.Flags().Changed("min-score")

		a, err := newApp(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := listOpts.apply(a.browser.Controller()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		page, err := listOpts.load(ctx, a.browser)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", sessionHint(err))
			os.Exit(1)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			out := struct {
				Items []types.DuplicateMatch `json:"items"`
				State review.State           `json:"state"`
			}{page.Items, page.State}
			if err := enc.Encode(out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		repl.RenderPage(os.Stdout, page)
	},
}

func init() {
	listCmd.Flags().IntVarP(&listOpts.page, "page", "p", 1, "Page number")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the page as JSON")
	addListFlags(listCmd, &listOpts)
	rootCmd.AddCommand(listCmd)
}
