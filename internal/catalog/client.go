// Package catalog is an HTTP client for the game catalog service that
// reports item discounts and names.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the catalog service.
//
// Endpoints:
//
//	GET {base}/discounts?ids=1,2,3  -> {"1": 20, "2": 0}
//	GET {base}/items/{id}           -> {"name": "Team Fortress 2"}
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a catalog client for baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid catalog URL: %w", err)
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

// DiscountPercents fetches the discount of every item in one request.
func (c *Client) DiscountPercents(ctx context.Context, itemIDs []string) (map[string]int, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(itemIDs, ","))

	var out map[string]int
	if err := c.getJSON(ctx, "/discounts?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]int{}
	}
	return out, nil
}

// ItemName fetches an item's display name.
func (c *Client) ItemName(ctx context.Context, itemID string) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/items/"+url.PathEscape(itemID), &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned %s for %s", resp.Status, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
