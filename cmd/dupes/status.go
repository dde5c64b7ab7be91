package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/auth"
	"github.com/steveyegge/dupes/internal/repl"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newAuthenticator()

		sess, err := a.Session(ctx)
		if err != nil && !errors.Is(err, auth.ErrNotLoggedIn) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		repl.RenderSession(os.Stdout, sess, sess != nil && a.Valid(sess))

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray(fmt.Sprintf("  store:  %s", cfg.Storage.Path)))
		fmt.Printf("%s\n", gray(fmt.Sprintf("  config: %s", configPath)))
		if sess != nil {
			if base, err := cfg.APIBase(sess.InstanceURL); err == nil {
				fmt.Printf("%s\n", gray(fmt.Sprintf("  api:    %s", base)))
			}
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
