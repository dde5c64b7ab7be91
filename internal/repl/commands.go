package repl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/dupes/internal/api"
	"github.com/steveyegge/dupes/internal/auth"
	"github.com/steveyegge/dupes/internal/types"
)

// cmdList loads and shows the current page
func (r *REPL) cmdList(args []string) error {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("usage: list [page]")
		}
		r.browser.Controller().GoToPage(n)
	}
	return r.reload()
}

func (r *REPL) cmdNext(args []string) error {
	ctrl := r.browser.Controller()
	if !ctrl.HasNextPage() {
		fmt.Fprintln(r.out, "Already on the last page.")
		return nil
	}
	ctrl.NextPage()
	return r.reload()
}

func (r *REPL) cmdPrev(args []string) error {
	ctrl := r.browser.Controller()
	if !ctrl.HasPreviousPage() {
		fmt.Fprintln(r.out, "Already on the first page.")
		return nil
	}
	ctrl.PrevPage()
	return r.reload()
}

func (r *REPL) cmdPage(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: page N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page number %q", args[0])
	}
	r.browser.Controller().GoToPage(n)
	return r.reload()
}

func (r *REPL) cmdSize(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: size N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page size %q", args[0])
	}
	if err := r.browser.Controller().SetPageSize(n); err != nil {
		return err
	}
	return r.reload()
}

func (r *REPL) cmdSort(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sort score|createdAt|status")
	}
	key := types.SortKey(args[0])
	// Accept any capitalization of the known keys
	for _, k := range types.SortKeys {
		if strings.EqualFold(string(k), args[0]) {
			key = k
		}
	}
	if err := r.browser.Controller().SortBy(key); err != nil {
		return err
	}
	return r.reload()
}

func (r *REPL) cmdFilter(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: filter MIN_SCORE")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid score %q", args[0])
	}
	if err := r.browser.Controller().SetMinScore(v); err != nil {
		return err
	}
	return r.reload()
}

func (r *REPL) cmdClear(args []string) error {
	r.browser.Controller().ClearAllFilters()
	return r.reload()
}

func (r *REPL) cmdRefresh(args []string) error {
	page, err := r.browser.Refresh(r.ctx)
	if err != nil {
		return err
	}
	r.lastPage = page
	RenderPage(r.out, page)
	return nil
}

// cmdShow prints one match with its field comparison
func (r *REPL) cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show ID|#N")
	}
	id, err := r.resolveRef(args[0])
	if err != nil {
		return err
	}
	m, err := r.browser.Find(r.ctx, id)
	if err != nil {
		return err
	}

	// Fill in fields the list payload left out
	if r.customers != nil {
		for _, c := range []*types.Customer{&m.CustomerA, &m.CustomerB} {
			if c.ID == "" || c.Email != "" || c.Phone != "" {
				continue
			}
			full, err := r.customers.GetCustomer(r.ctx, c.ID)
			if err != nil {
				yellow := color.New(color.FgYellow).SprintFunc()
				fmt.Fprintf(r.out, "%s could not load customer %s: %v\n", yellow("Note:"), c.ID, err)
				continue
			}
			*c = *full
		}
	}

	RenderDetail(r.out, m, r.resolver.InFlight(m.ID))
	return nil
}

// resolveHandler builds the merge and ignore commands
func (r *REPL) resolveHandler(action types.Action) CommandHandler {
	return func(args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("usage: %s ID|#N [ID|#N...]", action)
		}
		ids := make([]string, 0, len(args))
		for _, a := range args {
			id, err := r.resolveRef(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		var err error
		if len(ids) == 1 {
			err = r.resolver.ResolveOne(r.ctx, ids[0], action)
		} else {
			_, err = r.resolver.ResolveMany(r.ctx, ids, action)
		}

		// Failures were already reported by the notifier; only a lost
		// session needs to reach the loop.
		if errors.Is(err, types.ErrInvalidAction) {
			return err
		}
		if err != nil && errors.Is(err, api.ErrSessionExpired) {
			return err
		}

		if rerr := r.reload(); rerr != nil {
			return rerr
		}
		return nil
	}
}

func (r *REPL) cmdStats(args []string) error {
	s, err := r.browser.Stats(r.ctx)
	if err != nil {
		return err
	}
	RenderStats(r.out, s, r.browser.Controller().State().MinScore)
	return nil
}

func (r *REPL) cmdHistory(args []string) error {
	if r.audit == nil {
		fmt.Fprintln(r.out, "History is not available in this session.")
		return nil
	}
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("usage: history [N]")
		}
		limit = n
	}
	recs, err := r.audit.ListResolutions(r.ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	RenderHistory(r.out, recs)
	return nil
}

// cmdStatus shows session and view-state
func (r *REPL) cmdStatus(args []string) error {
	sess, err := r.sessions.Session(r.ctx)
	if err != nil && !errors.Is(err, auth.ErrNotLoggedIn) {
		return err
	}
	RenderSession(r.out, sess, sess != nil && r.sessions.Valid(sess))
	RenderState(r.out, r.browser.Controller().State(), r.resolver.IsResolving())
	return nil
}

func (r *REPL) cmdLogout(args []string) error {
	if err := r.sessions.Logout(r.ctx); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s Logged out\n", green("✓"))
	return errExit
}

// reload fetches the current page and renders it
func (r *REPL) reload() error {
	page, err := r.browser.Load(r.ctx)
	if err != nil {
		return err
	}
	r.lastPage = page
	RenderPage(r.out, page)
	return nil
}

// resolveRef turns "#N" into the id of row N on the last page
func (r *REPL) resolveRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, "#") {
		return ref, nil
	}
	n, err := strconv.Atoi(ref[1:])
	if err != nil {
		return "", fmt.Errorf("invalid row reference %q", ref)
	}
	if r.lastPage == nil || n < 1 || n > len(r.lastPage.Items) {
		return "", fmt.Errorf("no row %d on the current page", n)
	}
	return r.lastPage.Items[n-1].ID, nil
}
