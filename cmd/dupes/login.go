package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/auth"
)

var loginTimeout time.Duration

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the CRM",
	Long: `Start an authorization-code login with PKCE.

dupes prints the identity provider's authorize URL and listens on the
configured redirect URI (default http://localhost:8765/callback) for the
browser to come back. The resulting tokens are stored in the local
session database.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.RequireLogin(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newAuthenticator()
		srv, err := auth.NewCallbackServer(a, cfg.Auth.RedirectURI)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		authURL, err := a.AuthCodeURL(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n\n  %s\n\n", cyan("Open this URL in your browser to sign in:"), authURL)
		fmt.Printf("%s\n", gray(fmt.Sprintf("Waiting for the redirect to %s (Ctrl+C to cancel)...", cfg.Auth.RedirectURI)))

		waitCtx, cancel := context.WithTimeout(ctx, loginTimeout)
		defer cancel()
		sess, err := srv.Wait(waitCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: login failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Logged in", green("✓"))
		if sess.InstanceURL != "" {
			fmt.Printf(" to %s", sess.InstanceURL)
		}
		fmt.Println()
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		if err := newAuthenticator().Logout(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Logged out\n", green("✓"))
	},
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the browser redirect")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
