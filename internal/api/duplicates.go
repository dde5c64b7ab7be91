package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/steveyegge/dupes/internal/types"
)

// pageWire is the pagination block of list responses. Older deployments
// call it "page", newer ones "pagination".
type pageWire struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

type listPendingResponse struct {
	Items      []types.DuplicateMatch `json:"items"`
	Pagination *pageWire              `json:"pagination"`
	Page       *pageWire              `json:"page"`
}

// ListPending fetches one page of pending duplicate matches.
func (c *Client) ListPending(ctx context.Context, params types.ListParams) (*types.ListResult, error) {
	var resp listPendingResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/duplicates/pending",
		query:  params.Values(),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing pending duplicates: %w", err)
	}

	pw := resp.Pagination
	if pw == nil {
		pw = resp.Page
	}
	if pw == nil {
		pw = &pageWire{Total: len(resp.Items), Offset: params.Offset, Limit: params.Limit}
	}
	limit := pw.Limit
	if limit <= 0 {
		limit = params.Limit
	}

	items := resp.Items
	if items == nil {
		items = []types.DuplicateMatch{}
	}

	return &types.ListResult{
		Items: items,
		Page: types.PageInfo{
			Page:     types.PageNumber(pw.Offset, limit),
			PageSize: limit,
			Total:    pw.Total,
			HasMore:  pw.HasMore || pw.Offset+len(items) < pw.Total,
		},
	}, nil
}

type resolveRequest struct {
	Action types.Action `json:"action"`
}

// Resolve records a merge or ignore decision for a match. The response body
// is not inspected beyond its status.
func (c *Client) Resolve(ctx context.Context, id string, action types.Action) error {
	if !action.IsValid() {
		return fmt.Errorf("resolving %s: %w (got %q)", id, types.ErrInvalidAction, action)
	}
	body, err := jsonBody(resolveRequest{Action: action})
	if err != nil {
		return err
	}

	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/duplicates/" + url.PathEscape(id) + "/resolve",
		body:   body,
	}, nil)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", id, err)
	}
	return nil
}
