package review

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/steveyegge/dupes/internal/types"
)

// fakeCRM serves pending matches from memory, filtering and paging the way
// the service does, and records resolve calls.
type fakeCRM struct {
	mu      sync.Mutex
	matches []types.DuplicateMatch

	listCalls    int32
	resolveCalls int32
	resolveErr   error
	failIDs      map[string]error
	// blockList, when set, holds ListPending until closed
	blockList chan struct{}
	// onResolve runs before a resolve returns
	onResolve func(id string)
}

func newFakeCRM(matches ...types.DuplicateMatch) *fakeCRM {
	return &fakeCRM{matches: matches}
}

func match(id string, score float64) types.DuplicateMatch {
	return types.DuplicateMatch{
		ID:        id,
		Score:     score,
		Status:    types.StatusPendingReview,
		CustomerA: types.Customer{ID: id + "_a"},
		CustomerB: types.Customer{ID: id + "_b"},
	}
}

func (f *fakeCRM) ListPending(ctx context.Context, p types.ListParams) (*types.ListResult, error) {
	atomic.AddInt32(&f.listCalls, 1)
	if f.blockList != nil {
		select {
		case <-f.blockList:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var filtered []types.DuplicateMatch
	for _, m := range f.matches {
		if m.Status == types.StatusPendingReview && m.Score >= p.MinScore {
			filtered = append(filtered, m)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if p.Order == types.OrderAsc {
			return filtered[i].Score < filtered[j].Score
		}
		return filtered[i].Score > filtered[j].Score
	})

	total := len(filtered)
	start := min(p.Offset, total)
	end := min(p.Offset+p.Limit, total)
	items := append([]types.DuplicateMatch{}, filtered[start:end]...)

	return &types.ListResult{
		Items: items,
		Page: types.PageInfo{
			Page:     types.PageNumber(p.Offset, p.Limit),
			PageSize: p.Limit,
			Total:    total,
			HasMore:  end < total,
		},
	}, nil
}

func (f *fakeCRM) Resolve(ctx context.Context, id string, action types.Action) error {
	atomic.AddInt32(&f.resolveCalls, 1)
	if f.onResolve != nil {
		f.onResolve(id)
	}
	if f.resolveErr != nil {
		return f.resolveErr
	}
	if err := f.failIDs[id]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.matches {
		if f.matches[i].ID == id {
			f.matches[i].Status = action.ResultStatus()
		}
	}
	return nil
}
