package socketio

import (
	"net"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// ClientLimiter caps the number of remote controllers connected from other
// hosts. Loopback clients are never counted. When an external client would
// exceed the cap, the longest-connected external client is evicted.
// A cap of zero or less means unlimited.
type ClientLimiter struct {
	mu      sync.Mutex
	max     int
	seq     uint64
	clients map[string]clientSlot
}

type clientSlot struct {
	addr     string
	external bool
	joined   uint64
}

// NewClientLimiter creates a limiter admitting up to max external clients.
func NewClientLimiter(max int) *ClientLimiter {
	return &ClientLimiter{max: max, clients: make(map[string]clientSlot)}
}

// Admit registers client id connecting from addr and returns the id of the
// client that must be disconnected to make room, or "" if none. Admitting a
// known id is a no-op.
func (l *ClientLimiter) Admit(id, addr string) (evicted string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.clients[id]; ok {
		return ""
	}
	l.seq++
	slot := clientSlot{addr: addr, external: !isLocalIP(addr), joined: l.seq}
	l.clients[id] = slot
	if !slot.external || l.max <= 0 {
		return ""
	}

	external := lo.PickBy(l.clients, func(_ string, s clientSlot) bool { return s.external })
	if len(external) <= l.max {
		return ""
	}
	evicted = lo.MinBy(lo.Keys(external), func(a, b string) bool {
		return external[a].joined < external[b].joined
	})
	delete(l.clients, evicted)
	return evicted
}

// Release forgets client id. Unknown ids are ignored.
func (l *ClientLimiter) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, id)
}

// External returns the number of admitted non-loopback clients.
func (l *ClientLimiter) External() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.CountBy(lo.Values(l.clients), func(s clientSlot) bool { return s.external })
}

// isLocalIP reports whether addr, with or without a port, is a loopback
// address.
func isLocalIP(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
