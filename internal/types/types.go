package types

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Customer is a customer record as returned by the CRM service.
// Only ID is guaranteed to be present.
type Customer struct {
	ID         string     `json:"id"`
	FirstName  string     `json:"firstName,omitempty"`
	LastName   string     `json:"lastName,omitempty"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	SignupDate *Timestamp `json:"signupDate,omitempty"`
	IsDeleted  bool       `json:"isDeleted,omitempty"`
}

// FullName joins first and last name, skipping empty parts.
func (c Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// DuplicateMatch is a candidate pair of customer records flagged by the
// backend detection process.
type DuplicateMatch struct {
	ID        string     `json:"id"`
	CustomerA Customer   `json:"customerA"`
	CustomerB Customer   `json:"customerB"`
	Score     float64    `json:"score"`
	Status    Status     `json:"status"`
	CreatedAt *Timestamp `json:"createdAt,omitempty"`
}

// Validate checks the fields the console relies on.
func (m *DuplicateMatch) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Score < 0 || m.Score > 100 {
		return fmt.Errorf("score must be between 0 and 100 (got %v)", m.Score)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	return nil
}

// Status is the review state of a duplicate match.
type Status string

const (
	StatusPendingReview Status = "Pending Review"
	StatusMerged        Status = "Merged"
	StatusIgnored       Status = "Ignored"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingReview, StatusMerged, StatusIgnored:
		return true
	}
	return false
}

// IsTerminal reports whether the match has been resolved.
func (s Status) IsTerminal() bool {
	return s == StatusMerged || s == StatusIgnored
}

// Action is an operator decision on a duplicate match.
type Action string

const (
	ActionMerge  Action = "merge"
	ActionIgnore Action = "ignore"
)

// ErrInvalidAction is returned for anything other than merge or ignore.
var ErrInvalidAction = errors.New("action must be merge or ignore")

// ParseAction converts user input into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w (got %q)", ErrInvalidAction, s)
	}
	return a, nil
}

// IsValid checks if the action value is valid
func (a Action) IsValid() bool {
	return a == ActionMerge || a == ActionIgnore
}

// ResultStatus is the status a match ends up in after the action succeeds.
func (a Action) ResultStatus() Status {
	if a == ActionMerge {
		return StatusMerged
	}
	return StatusIgnored
}

// PastTense is used in operator notifications ("merged", "ignored").
func (a Action) PastTense() string {
	if a == ActionMerge {
		return "merged"
	}
	return "ignored"
}

// SortKey is a sortable field of the pending list.
type SortKey string

const (
	SortByScore     SortKey = "score"
	SortByCreatedAt SortKey = "createdAt"
	SortByStatus    SortKey = "status"
)

// SortKeys lists every accepted sort key in display order.
var SortKeys = []SortKey{SortByScore, SortByCreatedAt, SortByStatus}

// IsValid checks if the sort key is one the list endpoint accepts
func (k SortKey) IsValid() bool {
	switch k {
	case SortByScore, SortByCreatedAt, SortByStatus:
		return true
	}
	return false
}

// SortOrder is the sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == OrderAsc {
		return OrderDesc
	}
	return OrderAsc
}

// ListParams is the canonical query tuple for the pending-duplicates list.
type ListParams struct {
	Limit    int
	Offset   int
	MinScore float64
	Sort     SortKey
	Order    SortOrder
}

// Values encodes the params as query parameters.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("offset", strconv.Itoa(p.Offset))
	v.Set("minScore", strconv.FormatFloat(p.MinScore, 'f', -1, 64))
	v.Set("sort", string(p.Sort))
	v.Set("order", string(p.Order))
	return v
}

// Key is a stable string form of the params, suitable as a cache key segment.
func (p ListParams) Key() string {
	return p.Values().Encode()
}

// PageInfo describes the slice of the result set a list response covers.
type PageInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	Total    int  `json:"total"`
	HasMore  bool `json:"hasMore"`
}

// PageNumber converts an offset/limit pair into a 1-based page number.
func PageNumber(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

// ListResult is one page of pending duplicates.
type ListResult struct {
	Items []DuplicateMatch `json:"items"`
	Page  PageInfo         `json:"pagination"`
}

// Without returns a copy of the result with the match removed. The total is
// decremented only when the match was present.
func (r ListResult) Without(id string) ListResult {
	items := make([]DuplicateMatch, 0, len(r.Items))
	for _, m := range r.Items {
		if m.ID != id {
			items = append(items, m)
		}
	}
	out := r
	if len(items) != len(r.Items) && out.Page.Total > 0 {
		out.Page.Total--
	}
	out.Items = items
	return out
}

// Find returns the match with the given id.
func (r ListResult) Find(id string) (DuplicateMatch, bool) {
	for _, m := range r.Items {
		if m.ID == id {
			return m, true
		}
	}
	return DuplicateMatch{}, false
}

// Resolution is an audit record of an operator decision.
type Resolution struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	Action    Action    `json:"action"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// Session holds the OAuth tokens of the signed-in operator.
type Session struct {
	AccessToken  string
	RefreshToken string
	InstanceURL  string
	ExpiresAt    time.Time // zero when unknown
}

// PendingAuth is the PKCE state kept between the authorize redirect and the
// callback.
type PendingAuth struct {
	Verifier string
	State    string
}
