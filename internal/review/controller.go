package review

import (
	"errors"
	"fmt"
	"sync"

	"github.com/steveyegge/dupes/internal/config"
	"github.com/steveyegge/dupes/internal/types"
)

var (
	// ErrInvalidPageSize is returned for sizes the console does not offer.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidSortKey is returned for fields the list cannot be sorted by.
	ErrInvalidSortKey = errors.New("invalid sort key")
	// ErrInvalidMinScore is returned for scores outside 0-100.
	ErrInvalidMinScore = errors.New("min score must be between 0 and 100")
)

// State is a snapshot of the list view-state with its derived values.
type State struct {
	Page             int             `json:"page"`
	PageSize         int             `json:"pageSize"`
	TotalCount       int             `json:"totalCount"`
	TotalPages       int             `json:"totalPages"`
	Offset           int             `json:"offset"`
	Sort             types.SortKey   `json:"sort"`
	Order            types.SortOrder `json:"order"`
	MinScore         float64         `json:"minScore"`
	HasNextPage      bool            `json:"hasNextPage"`
	HasPreviousPage  bool            `json:"hasPreviousPage"`
	HasActiveFilters bool            `json:"hasActiveFilters"`
}

// Controller owns the pagination, sort and filter state of one list view and
// turns operator intents into list query parameters.
type Controller struct {
	mu sync.Mutex

	page     int
	pageSize int
	sort     types.SortKey
	order    types.SortOrder
	minScore float64
	total    int

	defaultMinScore float64
}

// NewController starts on page 1 sorted by score, highest first.
func NewController(pageSize int, defaultMinScore float64) (*Controller, error) {
	if !config.IsAllowedPageSize(pageSize) {
		return nil, fmt.Errorf("%w: %d (allowed: %v)", ErrInvalidPageSize, pageSize, config.AllowedPageSizes)
	}
	if defaultMinScore < 0 || defaultMinScore > 100 {
		return nil, fmt.Errorf("%w (got %v)", ErrInvalidMinScore, defaultMinScore)
	}
	return &Controller{
		page:            1,
		pageSize:        pageSize,
		sort:            types.SortByScore,
		order:           types.OrderDesc,
		minScore:        defaultMinScore,
		defaultMinScore: defaultMinScore,
	}, nil
}

// GoToPage moves to page n clamped to [1, TotalPages] and returns the page
// actually selected.
func (c *Controller) GoToPage(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = clamp(n, 1, c.totalPagesLocked())
	return c.page
}

// NextPage advances one page if there is one.
func (c *Controller) NextPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = clamp(c.page+1, 1, c.totalPagesLocked())
	return c.page
}

// PrevPage goes back one page if there is one.
func (c *Controller) PrevPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = clamp(c.page-1, 1, c.totalPagesLocked())
	return c.page
}

// SetPageSize changes the page size and returns to page 1.
func (c *Controller) SetPageSize(size int) error {
	if !config.IsAllowedPageSize(size) {
		return fmt.Errorf("%w: %d (allowed: %v)", ErrInvalidPageSize, size, config.AllowedPageSizes)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageSize = size
	c.page = 1
	return nil
}

// SortBy sorts by key. Selecting the current key flips the direction; a new
// key starts descending. Returns to page 1.
func (c *Controller) SortBy(key types.SortKey) error {
	if !key.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sort == key {
		c.order = c.order.Flip()
	} else {
		c.sort = key
		c.order = types.OrderDesc
	}
	c.page = 1
	return nil
}

// SetMinScore filters out matches scoring below v and returns to page 1.
func (c *Controller) SetMinScore(v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w (got %v)", ErrInvalidMinScore, v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minScore = v
	c.page = 1
	return nil
}

// ClearAllFilters restores the default min score and returns to page 1.
func (c *Controller) ClearAllFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minScore = c.defaultMinScore
	c.page = 1
}

// SetTotalCount records the server's total. The current page is not
// adjusted; the next GoToPage clamps it.
func (c *Controller) SetTotalCount(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = n
}

// Params returns the list query for the current state.
func (c *Controller) Params() types.ListParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.ListParams{
		Limit:    c.pageSize,
		Offset:   c.offsetLocked(),
		MinScore: c.minScore,
		Sort:     c.sort,
		Order:    c.order,
	}
}

// State returns the current view-state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	totalPages := c.totalPagesLocked()
	return State{
		Page:             c.page,
		PageSize:         c.pageSize,
		TotalCount:       c.total,
		TotalPages:       totalPages,
		Offset:           c.offsetLocked(),
		Sort:             c.sort,
		Order:            c.order,
		MinScore:         c.minScore,
		HasNextPage:      c.page < totalPages,
		HasPreviousPage:  c.page > 1,
		HasActiveFilters: c.minScore != c.defaultMinScore,
	}
}

// Offset is (page-1) * pageSize.
func (c *Controller) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetLocked()
}

func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPagesLocked()
}

func (c *Controller) HasNextPage() bool     { return c.State().HasNextPage }
func (c *Controller) HasPreviousPage() bool { return c.State().HasPreviousPage }
func (c *Controller) HasActiveFilters() bool {
	return c.State().HasActiveFilters
}

func (c *Controller) offsetLocked() int {
	return (c.page - 1) * c.pageSize
}

// totalPagesLocked is at least 1, including before any data has loaded.
func (c *Controller) totalPagesLocked() int {
	if c.total <= 0 {
		return 1
	}
	return (c.total + c.pageSize - 1) / c.pageSize
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
