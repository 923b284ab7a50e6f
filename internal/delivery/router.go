package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/relaybot/internal/core"
)

// Router picks an outbound channel by conversation-key prefix. It lets
// the pipeline hold a single Deliverer while transports register
// themselves during startup.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]core.Deliverer
	fallback core.Deliverer
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]core.Deliverer)}
}

// Register binds all destinations starting with prefix to d.
func (r *Router) Register(prefix string, d core.Deliverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[prefix] = d
}

// SetFallback handles destinations no registered prefix matches.
func (r *Router) SetFallback(d core.Deliverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = d
}

func (r *Router) Send(ctx context.Context, destination, text string) error {
	r.mu.RLock()
	var match core.Deliverer
	var matchLen int
	for prefix, d := range r.routes {
		if strings.HasPrefix(destination, prefix) && len(prefix) > matchLen {
			match, matchLen = d, len(prefix)
		}
	}
	if match == nil {
		match = r.fallback
	}
	r.mu.RUnlock()

	if match == nil {
		return fmt.Errorf("no channel for destination %q: %w", destination, core.ErrConfigurationMissing)
	}
	return match.Send(ctx, destination, text)
}
