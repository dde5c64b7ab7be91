package review

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupes/internal/cache"
	"github.com/steveyegge/dupes/internal/storage"
	"github.com/steveyegge/dupes/internal/types"
)

type resolverFixture struct {
	crm      *fakeCRM
	browser  *Browser
	cache    *cache.Cache
	resolver *Resolver
	audit    *storage.MemoryStore

	mu      sync.Mutex
	notices []Notice
}

func newResolverFixture(t *testing.T, matches ...types.DuplicateMatch) *resolverFixture {
	t.Helper()
	f := &resolverFixture{crm: newFakeCRM(matches...), audit: storage.NewMemoryStore()}
	f.browser, f.cache = newTestBrowser(t, f.crm)
	f.resolver = NewResolver(ResolverOptions{
		Cache: f.cache,
		API:   f.crm,
		Audit: f.audit,
		Notifier: NotifierFunc(func(n Notice) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.notices = append(f.notices, n)
		}),
		Actor:       "tester",
		Concurrency: 2,
	})

	_, err := f.browser.Load(context.Background())
	require.NoError(t, err)
	return f
}

func (f *resolverFixture) listIDs(t *testing.T) []string {
	t.Helper()
	v, ok := cache.GetAs[types.ListResult](f.cache, ListKey(f.browser.Controller().Params()))
	require.True(t, ok, "list page should be cached")
	return ids(v.Items)
}

func (f *resolverFixture) detailStatus(t *testing.T, id string) types.Status {
	t.Helper()
	m, ok := cache.GetAs[types.DuplicateMatch](f.cache, DetailKey(id))
	require.True(t, ok, "detail should be cached")
	return m.Status
}

func values(entries []cache.Entry) map[string]any {
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}

func TestResolveOneSuccess(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95), match("dup_2", 80))
	ctx := context.Background()

	f.crm.onResolve = func(id string) {
		// Optimistic state is visible while the request is out
		assert.Equal(t, []string{"dup_2"}, f.listIDs(t))
		assert.Equal(t, types.StatusMerged, f.detailStatus(t, "dup_1"))
		assert.True(t, f.resolver.IsResolving())
	}

	require.NoError(t, f.resolver.ResolveOne(ctx, "dup_1", types.ActionMerge))
	assert.False(t, f.resolver.IsResolving())

	assert.Equal(t, []string{"dup_2"}, f.listIDs(t))
	assert.Equal(t, types.StatusMerged, f.detailStatus(t, "dup_1"))
	for _, e := range f.cache.Entries(KeyDuplicates) {
		assert.True(t, e.Invalid, "%s should be invalidated", e.Key)
	}

	// The next load reconciles with the server
	page, err := f.browser.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dup_2"}, ids(page.Items))
	assert.Equal(t, 1, page.State.TotalCount)

	recs, err := f.audit.ListResolutions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Succeeded)
	assert.Equal(t, "tester", recs[0].Actor)

	require.Len(t, f.notices, 1)
	assert.Equal(t, NoticeSuccess, f.notices[0].Kind)
	assert.Equal(t, "Successfully merged duplicate", f.notices[0].Message)
}

func TestResolveOneDecrementsTotal(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95), match("dup_2", 80))
	require.NoError(t, f.resolver.ResolveOne(context.Background(), "dup_2", types.ActionIgnore))

	v, _ := cache.GetAs[types.ListResult](f.cache, ListKey(f.browser.Controller().Params()))
	assert.Equal(t, 1, v.Page.Total)
	assert.Equal(t, types.StatusIgnored, f.detailStatus(t, "dup_2"))
}

func TestResolveOneFailureRestoresCache(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95), match("dup_2", 80))
	boom := errors.New("service unavailable")
	f.crm.resolveErr = boom
	before := values(f.cache.Entries(KeyDuplicates))

	err := f.resolver.ResolveOne(context.Background(), "dup_1", types.ActionMerge)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, before, values(f.cache.Entries(KeyDuplicates)))
	assert.Contains(t, f.listIDs(t), "dup_1")
	assert.Equal(t, types.StatusPendingReview, f.detailStatus(t, "dup_1"))

	recs, _ := f.audit.ListResolutions(context.Background(), 0)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Succeeded)
	assert.Equal(t, boom.Error(), recs[0].Error)

	require.Len(t, f.notices, 1)
	assert.Equal(t, NoticeError, f.notices[0].Kind)
	assert.Equal(t, "Failed to merge duplicate: service unavailable", f.notices[0].Message)
}

func TestResolveOneRejectsInvalidAction(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95))
	before := f.cache.Entries(KeyDuplicates)

	err := f.resolver.ResolveOne(context.Background(), "dup_1", types.Action("delete"))
	assert.ErrorIs(t, err, types.ErrInvalidAction)
	assert.Equal(t, before, f.cache.Entries(KeyDuplicates), "cache must be untouched")
	assert.Zero(t, atomic.LoadInt32(&f.crm.resolveCalls))
	assert.Empty(t, f.notices)
}

func TestResolveOneGuardsDuplicateSubmission(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95))
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.crm.onResolve = func(string) {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- f.resolver.ResolveOne(ctx, "dup_1", types.ActionMerge) }()
	<-entered

	assert.True(t, f.resolver.InFlight("dup_1"))
	err := f.resolver.ResolveOne(ctx, "dup_1", types.ActionIgnore)
	assert.ErrorIs(t, err, ErrResolveInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.crm.resolveCalls))
}

func TestResolveOneCancelsInFlightLoads(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95), match("dup_2", 80))
	ctx := context.Background()

	f.crm.blockList = make(chan struct{})
	loadErr := make(chan error, 1)
	go func() {
		_, err := f.browser.Refresh(ctx)
		loadErr <- err
	}()
	require.Eventually(t, func() bool { return f.cache.Fetching(KeyLists) }, time.Second, time.Millisecond)

	require.NoError(t, f.resolver.ResolveOne(ctx, "dup_1", types.ActionMerge))
	assert.ErrorIs(t, <-loadErr, cache.ErrCanceled)
	assert.Equal(t, []string{"dup_2"}, f.listIDs(t))
}

func TestResolveOneIsNotCancelledWithContext(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95))
	ctx, cancel := context.WithCancel(context.Background())

	var sawCancel atomic.Bool
	f.crm.onResolve = func(string) {
		cancel()
		sawCancel.Store(true)
	}
	require.NoError(t, f.resolver.ResolveOne(ctx, "dup_1", types.ActionIgnore))
	assert.True(t, sawCancel.Load())
	assert.Equal(t, types.StatusIgnored, f.detailStatus(t, "dup_1"))
}

func TestResolveManyReportsEachResult(t *testing.T) {
	f := newResolverFixture(t, match("dup_1", 95), match("dup_2", 85), match("dup_3", 75))
	bad := errors.New("locked record")
	f.crm.failIDs = map[string]error{"dup_2": bad}

	results, err := f.resolver.ResolveMany(context.Background(), []string{"dup_1", "dup_2", "dup_3", "dup_1"}, types.ActionMerge)
	require.Error(t, err)
	assert.ErrorIs(t, err, bad)
	require.Len(t, results, 3)

	byID := map[string]error{}
	for _, r := range results {
		byID[r.ID] = r.Err
	}
	assert.NoError(t, byID["dup_1"])
	assert.ErrorIs(t, byID["dup_2"], bad)
	assert.NoError(t, byID["dup_3"])

	assert.Equal(t, int32(3), atomic.LoadInt32(&f.crm.resolveCalls))

	// Concurrent rollbacks may leave any cached page stale; the reload
	// after invalidation is authoritative.
	page, err := f.browser.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dup_2"}, ids(page.Items))
}
