package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupes/internal/api"
	"github.com/steveyegge/dupes/internal/auth"
	"github.com/steveyegge/dupes/internal/cache"
	"github.com/steveyegge/dupes/internal/review"
	"github.com/steveyegge/dupes/internal/storage"
	"github.com/steveyegge/dupes/internal/types"
)

// stubCRM serves pending matches sorted by score and records resolutions.
type stubCRM struct {
	mu         sync.Mutex
	matches    []types.DuplicateMatch
	resolveErr error
	resolved   []string
	customers  map[string]types.Customer
}

func (s *stubCRM) ListPending(ctx context.Context, p types.ListParams) (*types.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []types.DuplicateMatch
	for _, m := range s.matches {
		if m.Status == types.StatusPendingReview && m.Score >= p.MinScore {
			items = append(items, m)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if p.Order == types.OrderAsc {
			return items[i].Score < items[j].Score
		}
		return items[i].Score > items[j].Score
	})
	total := len(items)
	start, end := min(p.Offset, total), min(p.Offset+p.Limit, total)
	return &types.ListResult{
		Items: append([]types.DuplicateMatch{}, items[start:end]...),
		Page:  types.PageInfo{Page: types.PageNumber(p.Offset, p.Limit), PageSize: p.Limit, Total: total, HasMore: end < total},
	}, nil
}

func (s *stubCRM) Resolve(ctx context.Context, id string, action types.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return s.resolveErr
	}
	s.resolved = append(s.resolved, id)
	for i := range s.matches {
		if s.matches[i].ID == id {
			s.matches[i].Status = action.ResultStatus()
		}
	}
	return nil
}

func (s *stubCRM) GetCustomer(ctx context.Context, id string) (*types.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	return &c, nil
}

type stubSessions struct {
	sess      *types.Session
	loggedOut bool
}

func (s *stubSessions) Session(ctx context.Context) (*types.Session, error) {
	if s.sess == nil {
		return nil, auth.ErrNotLoggedIn
	}
	return s.sess, nil
}

func (s *stubSessions) Valid(sess *types.Session) bool {
	return time.Now().Before(sess.ExpiresAt)
}

func (s *stubSessions) Logout(ctx context.Context) error {
	s.loggedOut = true
	s.sess = nil
	return nil
}

type fixture struct {
	repl     *REPL
	crm      *stubCRM
	sessions *stubSessions
	audit    *storage.MemoryStore
	out      *bytes.Buffer
}

func pending(id string, score float64, a, b string) types.DuplicateMatch {
	return types.DuplicateMatch{
		ID:        id,
		Score:     score,
		Status:    types.StatusPendingReview,
		CustomerA: types.Customer{ID: id + "_a", FirstName: a},
		CustomerB: types.Customer{ID: id + "_b", FirstName: b},
	}
}

func newFixture(t *testing.T, matches ...types.DuplicateMatch) *fixture {
	t.Helper()
	color.NoColor = true

	f := &fixture{
		crm:      &stubCRM{matches: matches},
		sessions: &stubSessions{sess: &types.Session{AccessToken: "tok", InstanceURL: "https://crm.example.com", ExpiresAt: time.Now().Add(time.Hour)}},
		audit:    storage.NewMemoryStore(),
		out:      &bytes.Buffer{},
	}

	ctrl, err := review.NewController(10, 50)
	require.NoError(t, err)
	c := cache.New(nil)
	browser := review.NewBrowser(ctrl, c, f.crm, review.DefaultStaleTime, nil)
	resolver := review.NewResolver(review.ResolverOptions{
		Cache:    c,
		API:      f.crm,
		Audit:    f.audit,
		Notifier: NewNotifier(f.out),
		Actor:    "tester",
	})

	f.repl, err = New(&Config{
		Browser:   browser,
		Resolver:  resolver,
		Sessions:  f.sessions,
		Audit:     f.audit,
		Customers: f.crm,
		Out:       f.out,
	})
	require.NoError(t, err)
	return f
}

// run feeds a line to the console and returns what it printed
func (f *fixture) run(t *testing.T, line string) (string, error) {
	t.Helper()
	f.out.Reset()
	err := f.repl.processInput(line)
	return f.out.String(), err
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestListShowsPage(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"), pending("dup_2", 60, "Bob", "Rob"))

	out, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 1, 2 total")
	assert.Contains(t, out, "1.  95.0  dup_1")
	assert.Contains(t, out, "2.  60.0  dup_2")
	assert.Less(t, strings.Index(out, "dup_1"), strings.Index(out, "dup_2"))
}

func TestCommandsAreCaseInsensitive(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"))
	out, err := f.run(t, "LS")
	require.NoError(t, err)
	assert.Contains(t, out, "dup_1")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "frobnicate")
	require.NoError(t, err)
	assert.Contains(t, out, `Unknown command "frobnicate"`)
}

func TestFilterAndClear(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"), pending("dup_2", 60, "Bob", "Rob"))

	out, err := f.run(t, "filter 90")
	require.NoError(t, err)
	assert.Contains(t, out, "dup_1")
	assert.NotContains(t, out, "dup_2")

	out, err = f.run(t, "filter 99")
	require.NoError(t, err)
	assert.Contains(t, out, "No duplicates match the current filters")

	out, err = f.run(t, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "dup_2")

	_, err = f.run(t, "filter abc")
	assert.Error(t, err)
	_, err = f.run(t, "filter 150")
	assert.ErrorIs(t, err, review.ErrInvalidMinScore)
}

func TestSortTogglesOrder(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"), pending("dup_2", 60, "Bob", "Rob"))

	// Already sorted by score descending, so this flips to ascending
	out, err := f.run(t, "sort SCORE")
	require.NoError(t, err)
	assert.Contains(t, out, "sort: score asc")
	assert.Less(t, strings.Index(out, "dup_2"), strings.Index(out, "dup_1"))

	_, err = f.run(t, "sort name")
	assert.ErrorIs(t, err, review.ErrInvalidSortKey)
}

func TestPagingCommands(t *testing.T) {
	var matches []types.DuplicateMatch
	for i := 0; i < 25; i++ {
		matches = append(matches, pending(fmt.Sprintf("dup_%02d", i), float64(99-i), "A", "B"))
	}
	f := newFixture(t, matches...)

	out, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 3, 25 total")

	out, err = f.run(t, "prev")
	require.NoError(t, err)
	assert.Contains(t, out, "Already on the first page")

	out, err = f.run(t, "next")
	require.NoError(t, err)
	assert.Contains(t, out, "page 2 of 3")

	out, err = f.run(t, "page 9")
	require.NoError(t, err)
	assert.Contains(t, out, "page 3 of 3")

	out, err = f.run(t, "next")
	require.NoError(t, err)
	assert.Contains(t, out, "Already on the last page")

	out, err = f.run(t, "size 25")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 1")

	_, err = f.run(t, "size 7")
	assert.ErrorIs(t, err, review.ErrInvalidPageSize)
}

func TestShowByRowReference(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Adah"))
	f.crm.customers = map[string]types.Customer{
		"dup_1_a": {ID: "dup_1_a", FirstName: "Ada", Email: "ada@example.com"},
		"dup_1_b": {ID: "dup_1_b", FirstName: "Adah", Email: "ADA@example.com"},
	}

	_, err := f.run(t, "show #1")
	assert.Error(t, err, "no page rendered yet")

	_, err = f.run(t, "list")
	require.NoError(t, err)

	out, err := f.run(t, "show #1")
	require.NoError(t, err)
	assert.Contains(t, out, "Duplicate dup_1")
	assert.Contains(t, out, "High Match")
	assert.Contains(t, out, "ada@example.com")

	_, err = f.run(t, "show #5")
	assert.Error(t, err)
	_, err = f.run(t, "show unknown")
	assert.ErrorIs(t, err, review.ErrNotFound)
}

func TestMergeRemovesRowAndRecordsHistory(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"), pending("dup_2", 60, "Bob", "Rob"))
	_, err := f.run(t, "list")
	require.NoError(t, err)

	out, err := f.run(t, "merge #1")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully merged duplicate (dup_1)")
	assert.Contains(t, out, "page 1 of 1, 1 total")
	assert.Equal(t, []string{"dup_1"}, f.crm.resolved)

	out, err = f.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "merge")
	assert.Contains(t, out, "dup_1")
	assert.Contains(t, out, "tester")
}

func TestIgnoreMany(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "A", "A"), pending("dup_2", 80, "B", "B"), pending("dup_3", 60, "C", "C"))
	_, err := f.run(t, "list")
	require.NoError(t, err)

	out, err := f.run(t, "ignore #1 dup_3")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully ignored duplicate (dup_1)")
	assert.Contains(t, out, "Successfully ignored duplicate (dup_3)")
	assert.Contains(t, out, "1 total")
}

func TestMergeFailureIsReportedNotReturned(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"))
	f.crm.resolveErr = errors.New("record locked")
	_, err := f.run(t, "list")
	require.NoError(t, err)

	out, err := f.run(t, "merge dup_1")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed to merge duplicate: record locked")
	assert.Contains(t, out, "dup_1", "row is back after the rollback")
}

func TestMergeReturnsSessionExpiry(t *testing.T) {
	f := newFixture(t, pending("dup_1", 95, "Ada", "Ada"))
	f.crm.resolveErr = fmt.Errorf("%w: token revoked", api.ErrSessionExpired)

	_, err := f.run(t, "merge dup_1")
	require.Error(t, err)
	assert.True(t, f.repl.handleError(err), "session expiry stops the console")
	assert.Contains(t, f.out.String(), "session has expired")
}

func TestStatusAndLogout(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in to https://crm.example.com")

	_, err = f.run(t, "logout")
	assert.ErrorIs(t, err, errExit)
	assert.True(t, f.sessions.loggedOut)

	out, err = f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestStats(t *testing.T) {
	f := newFixture(t, pending("a", 95, "A", "A"), pending("b", 75, "B", "B"), pending("c", 55, "C", "C"))
	out, err := f.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "3 total")
	assert.Contains(t, out, "High Match")
}

func TestHelpAndExit(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "?")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands")

	_, err = f.run(t, "quit")
	assert.ErrorIs(t, err, errExit)
}

func TestHandleErrorIgnoresSuperseded(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.repl.handleError(review.ErrSuperseded))
	assert.Empty(t, f.out.String())

	assert.False(t, f.repl.handleError(errors.New("boom")))
	assert.Contains(t, f.out.String(), "Error: boom")
}
