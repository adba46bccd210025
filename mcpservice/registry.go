package mcpservice

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ggoodman/notion-mcp-go/mcp"
)

var (
	// ErrDuplicateTool is returned by Register when the name is taken.
	ErrDuplicateTool = errors.New("mcpservice: duplicate tool name")
	// ErrRegistrySealed is returned by Register after Seal.
	ErrRegistrySealed = errors.New("mcpservice: registry is sealed")
	// ErrInvalidCursor is returned by ListPage for a cursor it did not issue.
	ErrInvalidCursor = errors.New("mcpservice: invalid cursor")
)

const defaultPageSize = 50

// Registry owns the set of tools advertised by the server. It is populated
// before a transport starts and sealed afterwards; reads are safe from any
// goroutine.
type Registry struct {
	mu     sync.RWMutex
	tools  []*Tool          // registration order, for listing
	byName map[string]*Tool // name -> tool
	sealed bool

	pageSize int
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Tool), pageSize: defaultPageSize}
}

// SetPageSize sets the pagination size used by ListPage. A non-positive
// value is ignored.
func (r *Registry) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.pageSize = n
	r.mu.Unlock()
}

// Register adds a tool. Names must be unique within the registry.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	name := t.Descriptor.Name
	if name == "" {
		return fmt.Errorf("mcpservice: tool name must not be empty")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	tc := t
	r.tools = append(r.tools, &tc)
	r.byName[name] = &tc
	return nil
}

// MustRegister registers every tool and panics on the first failure. A
// duplicate name is a programming error and should stop the process at
// startup.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Seal prevents further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the named tool or an UnknownTool error.
func (r *Registry) Lookup(name string) (*Tool, error) {
	r.mu.RLock()
	t := r.byName[name]
	r.mu.RUnlock()
	if t == nil {
		return nil, UnknownToolError(name)
	}
	return t, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns a copy of every tool descriptor in registration order.
func (r *Registry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor
	}
	return out
}

// ListPage returns one page of descriptors starting at cursor, and the
// cursor for the next page when more remain. An empty cursor starts at the
// beginning.
func (r *Registry) ListPage(cursor string) ([]mcp.Tool, string, error) {
	all := r.List()
	r.mu.RLock()
	pageSize := r.pageSize
	r.mu.RUnlock()

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(all) {
			return nil, "", ErrInvalidCursor
		}
		start = n
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	items := all[start:end]
	if end < len(all) {
		return items, strconv.Itoa(end), nil
	}
	return items, "", nil
}
