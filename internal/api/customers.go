package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/steveyegge/dupes/internal/types"
)

// CustomerPage is one page of the customer directory.
type CustomerPage struct {
	Items []types.Customer `json:"items"`
	Page  types.PageInfo   `json:"pagination"`
}

type listCustomersResponse struct {
	Items      []types.Customer `json:"items"`
	Pagination *pageWire        `json:"pagination"`
	Page       *pageWire        `json:"page"`
	Total      int              `json:"total"`
}

// GetCustomer fetches a single customer record.
func (c *Client) GetCustomer(ctx context.Context, id string) (*types.Customer, error) {
	var cust types.Customer
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/customers/" + url.PathEscape(id),
	}, &cust)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", id, err)
	}
	return &cust, nil
}

// ListCustomers pages through customers, optionally filtered by a search
// string. page is 1-based.
func (c *Client) ListCustomers(ctx context.Context, page, pageSize int, search string) (*CustomerPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}

	var resp listCustomersResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/customers", query: q}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}

	out := &CustomerPage{
		Items: resp.Items,
		Page:  types.PageInfo{Page: page, PageSize: pageSize, Total: resp.Total},
	}
	if out.Items == nil {
		out.Items = []types.Customer{}
	}
	pw := resp.Pagination
	if pw == nil {
		pw = resp.Page
	}
	if pw != nil {
		out.Page.Total = pw.Total
		out.Page.HasMore = pw.HasMore
	} else {
		out.Page.HasMore = page*pageSize < out.Page.Total
	}
	return out, nil
}
