package notion

import "sync"

// Lazy hands out a shared Client, building it at most once. A failed build
// is remembered and returned to every caller.
type Lazy struct {
	get func() (*Client, error)
}

// NewLazy returns a Lazy that calls build on first use.
func NewLazy(build func() (*Client, error)) *Lazy {
	return &Lazy{get: sync.OnceValues(build)}
}

// Static returns a Lazy that always yields c.
func Static(c *Client) *Lazy {
	return &Lazy{get: func() (*Client, error) { return c, nil }}
}

// Client returns the shared client.
func (l *Lazy) Client() (*Client, error) {
	return l.get()
}
