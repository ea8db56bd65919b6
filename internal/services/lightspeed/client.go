package lightspeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plantshop/internal/logger"
	"plantshop/internal/metrics"

	"golang.org/x/time/rate"
)

const itemRelations = `["Category","Images","ItemShops","Prices"]`

// Tokens supplies bearer tokens to the client.
type Tokens interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	AccountID  string
	PageSize   int
	Timeout    time.Duration
	Limiter    *rate.Limiter
	Retry      *RetryPolicy
	HTTPClient *http.Client
	// Sleep waits between 429 retries. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client talks to the Lightspeed Retail API. All requests share one rate
// limiter, so concurrent fetches cannot exceed the configured rate together.
type Client struct {
	baseURL    string
	accountID  string
	pageSize   int
	tokens     Tokens
	limiter    *rate.Limiter
	retry      RetryPolicy
	sleep      func(ctx context.Context, d time.Duration) error
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(opts Options, tokens Tokens, log *logger.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		accountID:  opts.AccountID,
		pageSize:   opts.PageSize,
		tokens:     tokens,
		limiter:    opts.Limiter,
		retry:      DefaultRetryPolicy(),
		sleep:      opts.Sleep,
		httpClient: opts.HTTPClient,
		logger:     log,
	}
	if c.pageSize <= 0 {
		c.pageSize = 100
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	}
	if c.sleep == nil {
		c.sleep = sleepWithContext
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	return c
}

// FetchAllItems returns every item in the account with its relations loaded.
func (c *Client) FetchAllItems(ctx context.Context) ([]Item, error) {
	query := url.Values{"load_relations": {itemRelations}}
	items, err := paginate(ctx, c, query, func(ctx context.Context, q url.Values) (int, []Item, error) {
		var resp itemsResponse
		if err := c.get(ctx, "Item.json", q, &resp); err != nil {
			return 0, nil, err
		}
		return int(resp.Attributes.Count), resp.Item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	c.logger.Info("Fetched %d items from Lightspeed", len(items))
	return items, nil
}

// FetchInventory returns every per-location stock record.
func (c *Client) FetchInventory(ctx context.Context) ([]ItemShop, error) {
	shops, err := paginate(ctx, c, url.Values{}, func(ctx context.Context, q url.Values) (int, []ItemShop, error) {
		var resp itemShopsResponse
		if err := c.get(ctx, "ItemShop.json", q, &resp); err != nil {
			return 0, nil, err
		}
		return int(resp.Attributes.Count), resp.ItemShop, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	return shops, nil
}

// FetchItem returns one item with its relations, or ErrNotFound.
func (c *Client) FetchItem(ctx context.Context, itemID string) (*Item, error) {
	var resp itemResponse
	endpoint := fmt.Sprintf("Item/%s.json", url.PathEscape(itemID))
	err := c.get(ctx, endpoint, url.Values{"load_relations": {itemRelations}}, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", itemID, err)
	}
	if resp.Item == nil || resp.Item.ItemID == "" {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return resp.Item, nil
}

// FetchCategories is a single, unpaginated request.
func (c *Client) FetchCategories(ctx context.Context) ([]Category, error) {
	var resp categoriesResponse
	if err := c.get(ctx, "Category.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return resp.Category, nil
}

// FetchVendors is a single, unpaginated request.
func (c *Client) FetchVendors(ctx context.Context) ([]Vendor, error) {
	var resp vendorsResponse
	if err := c.get(ctx, "Vendor.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch vendors: %w", err)
	}
	return resp.Vendor, nil
}

// FetchCustomerByEmail returns the first customer whose contact email matches,
// or nil when there is none.
func (c *Client) FetchCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var resp customersResponse
	query := url.Values{
		"load_relations": {`["Contact"]`},
		"Contact.email":  {email},
	}
	if err := c.get(ctx, "Customer.json", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}
	if len(resp.Customer) == 0 {
		return nil, nil
	}
	customer := resp.Customer[0]
	return &customer, nil
}

// paginate walks offset/limit pages until the offset reaches the count
// reported by the first page, or a page comes back empty.
func paginate[T any](ctx context.Context, c *Client, query url.Values, fetch func(ctx context.Context, q url.Values) (int, []T, error)) ([]T, error) {
	var all []T
	total := -1
	for offset := 0; ; offset += c.pageSize {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		count, records, err := fetch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		if total < 0 {
			total = count
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
		if offset+c.pageSize >= total {
			break
		}
	}
	return all, nil
}

// get performs an authenticated GET and decodes the JSON body into out.
// 429 responses are retried under the retry policy; a 401 invalidates the
// token and is retried once.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, c.accountID, endpoint)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	retries := 0
	reauthed := false
	for {
		status, body, header, err := c.do(ctx, reqURL)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusTooManyRequests:
			if retries >= c.retry.MaxRetries {
				return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retries+1, newAPIError(status, body))
			}
			delay := c.retry.Delay(retries, header.Get("Retry-After"))
			retries++
			c.logger.Warn("Lightspeed rate limited on %s, retry %d/%d in %s", endpoint, retries, c.retry.MaxRetries, delay)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			continue

		case status == http.StatusUnauthorized && !reauthed:
			reauthed = true
			c.logger.Warn("Lightspeed rejected token on %s, refreshing", endpoint)
			if err := c.tokens.Invalidate(ctx); err != nil {
				return fmt.Errorf("failed to invalidate token: %w", err)
			}
			continue

		case status < 200 || status > 299:
			return newAPIError(status, body)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

func (c *Client) do(ctx context.Context, reqURL string) (int, []byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordVendorRequest(0)
		return 0, nil, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordVendorRequest(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}
