package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/dupes/internal/api"
	"github.com/steveyegge/dupes/internal/review"
	"github.com/steveyegge/dupes/internal/storage"
	"github.com/steveyegge/dupes/internal/types"
)

// SessionManager is the part of auth.Authenticator the console needs
type SessionManager interface {
	Session(ctx context.Context) (*types.Session, error)
	Valid(sess *types.Session) bool
	Logout(ctx context.Context) error
}

// CustomerSource looks up full customer records
type CustomerSource interface {
	GetCustomer(ctx context.Context, id string) (*types.Customer, error)
}

// REPL represents the interactive review console
type REPL struct {
	browser   *review.Browser
	resolver  *review.Resolver
	sessions  SessionManager
	audit     storage.AuditLog
	customers CustomerSource

	out         io.Writer
	historyFile string
	rl          *readline.Instance
	ctx         context.Context
	commands    map[string]CommandHandler

	// last rendered page, for #N row references
	lastPage *review.Page
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Browser   *review.Browser
	Resolver  *review.Resolver
	Sessions  SessionManager
	Audit     storage.AuditLog // optional
	Customers CustomerSource   // optional
	Out       io.Writer        // default: stdout

	// HistoryFile persists command history; empty keeps it in memory
	HistoryFile string
}

// errExit stops the loop without an error message
var errExit = errors.New("exit")

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Browser == nil {
		return nil, fmt.Errorf("browser is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		browser:     cfg.Browser,
		resolver:    cfg.Resolver,
		sessions:    cfg.Sessions,
		audit:       cfg.Audit,
		customers:   cfg.Customers,
		out:         out,
		historyFile: cfg.HistoryFile,
		ctx:         context.Background(),
		commands:    make(map[string]CommandHandler),
	}

	r.registerCommands()

	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("dupes> "),
		HistoryFile:       r.historyFile,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.rl = rl

	r.printWelcome()

	// Show the first page straight away
	if err := r.cmdList(nil); err != nil {
		if r.handleError(err) {
			return nil
		}
	}

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			if r.handleError(err) {
				return nil
			}
		}
	}
}

// handleError prints err and reports whether the console must stop
func (r *REPL) handleError(err error) bool {
	red := color.New(color.FgRed).SprintFunc()
	if errors.Is(err, api.ErrSessionExpired) {
		fmt.Fprintf(r.out, "%s Your session has expired. Run 'dupes login' to sign in again.\n", red("Error:"))
		return true
	}
	if errors.Is(err, review.ErrSuperseded) {
		return false
	}
	fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
	return false
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(r.out, "%s Unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), command)
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["list"] = r.cmdList
	r.commands["ls"] = r.cmdList
	r.commands["next"] = r.cmdNext
	r.commands["n"] = r.cmdNext
	r.commands["prev"] = r.cmdPrev
	r.commands["p"] = r.cmdPrev
	r.commands["page"] = r.cmdPage
	r.commands["size"] = r.cmdSize
	r.commands["sort"] = r.cmdSort
	r.commands["filter"] = r.cmdFilter
	r.commands["clear"] = r.cmdClear
	r.commands["show"] = r.cmdShow
	r.commands["merge"] = r.resolveHandler(types.ActionMerge)
	r.commands["ignore"] = r.resolveHandler(types.ActionIgnore)
	r.commands["refresh"] = r.cmdRefresh
	r.commands["stats"] = r.cmdStats
	r.commands["history"] = r.cmdHistory
	r.commands["status"] = r.cmdStatus
	r.commands["logout"] = r.cmdLogout
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

// completer offers command names, sort keys, page sizes and the ids on the
// last rendered page
func (r *REPL) completer() *readline.PrefixCompleter {
	ids := readline.PcItemDynamic(func(string) []string { return r.pageIDs() })

	sortKeys := make([]readline.PrefixCompleterInterface, 0, len(types.SortKeys))
	for _, k := range types.SortKeys {
		sortKeys = append(sortKeys, readline.PcItem(string(k)))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("next"),
		readline.PcItem("prev"),
		readline.PcItem("page"),
		readline.PcItem("size",
			readline.PcItem("10"), readline.PcItem("25"), readline.PcItem("50"), readline.PcItem("100")),
		readline.PcItem("sort", sortKeys...),
		readline.PcItem("filter"),
		readline.PcItem("clear"),
		readline.PcItem("show", ids),
		readline.PcItem("merge", ids),
		readline.PcItem("ignore", ids),
		readline.PcItem("refresh"),
		readline.PcItem("stats"),
		readline.PcItem("history"),
		readline.PcItem("status"),
		readline.PcItem("logout"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (r *REPL) pageIDs() []string {
	if r.lastPage == nil {
		return nil
	}
	out := make([]string, len(r.lastPage.Items))
	for i, m := range r.lastPage.Items {
		out[i] = m.ID
	}
	return out
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("Duplicate Customer Review"))
	fmt.Fprintln(r.out, "Review candidate duplicate customer records and merge or ignore them")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"list, ls", "Show the current page of pending duplicates"},
		{"next, prev", "Move one page forward or back"},
		{"page N", "Jump to page N"},
		{"size N", "Set page size (10, 25, 50, 100)"},
		{"sort KEY", "Sort by score, createdAt or status (repeat to flip)"},
		{"filter N", "Only show matches scoring at least N"},
		{"clear", "Reset filters"},
		{"show ID|#N", "Show a match with a field-by-field comparison"},
		{"merge ID...", "Merge one or more matches"},
		{"ignore ID...", "Ignore one or more matches"},
		{"refresh", "Reload the current page from the server"},
		{"stats", "Summarize the pending queue by score band"},
		{"history [N]", "Show recent decisions"},
		{"status", "Show session status"},
		{"logout", "Sign out and exit"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the console"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %s %s\n", green(fmt.Sprintf("%-14s", cmd.name)), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}
