package http_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Response is a fully read response kept by a Cache.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Cache holds the responses of one resolution pass, keyed by request URL.
// A resolver creates one Cache per pass and drops it afterwards, so a URL
// is fetched at most once per pass and never reused across passes.
type Cache struct {
	client *Client
	mu     sync.Mutex
	items  map[string]*Response
}

// NewCache returns an empty cache whose misses go through client.
func NewCache(client *Client) *Cache {
	return &Cache{
		client: client,
		items:  map[string]*Response{},
	}
}

// Get returns the cached response for url, fetching it on first use.
// Transport errors are not cached; non-2xx responses are. The options only
// apply to the request that fills the cache.
func (c *Cache) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp, ok := c.items[url]; ok {
		return resp, nil
	}

	httpResp, err := c.client.Get(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}
	c.items[url] = resp
	return resp, nil
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
