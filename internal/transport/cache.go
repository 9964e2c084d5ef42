package transport

import (
	"context"
	"sync"
)

// Cache hands out one Client per distinct base URL. Clients are constructed
// on first use and kept until explicitly evicted (server removal) or process
// exit.
type Cache struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewCache creates an empty client cache.
func NewCache() *Cache {
	return &Cache{clients: make(map[string]*Client)}
}

// Get returns the client for a base URL, constructing it on first use.
func (c *Cache) Get(url string) *Client {
	url = NormalizeURL(url)

	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[url]
	if !ok {
		client = NewClient(url)
		c.clients[url] = client
	}
	return client
}

// Evict drops the client for a base URL.
func (c *Cache) Evict(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, NormalizeURL(url))
}

// Clear drops all clients.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = make(map[string]*Client)
}

// HealthResult is the outcome of a health probe. Failures are carried in the
// result, HealthCheck never returns a Go error.
type HealthResult struct {
	Healthy bool
	Version string
	Error   string
}

// HealthCheck probes a server's health endpoint. HTTP errors and network
// failures are converted into an unhealthy result.
func (c *Cache) HealthCheck(ctx context.Context, url string) HealthResult {
	resp, err := c.Get(url).Health(ctx)
	if err != nil {
		return HealthResult{Healthy: false, Error: err.Error()}
	}
	return HealthResult{Healthy: true, Version: resp.Version}
}
