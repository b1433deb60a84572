// Package bridge tracks reply-anchored forwarding rules for anonymous
// two-way relay. A reply to a registered message is forwarded to the
// stored peer with the forward prefix; the handler then re-registers the
// bridge on the outgoing message with the peers and prefixes swapped, so
// the thread can continue in either direction indefinitely.
package bridge

import (
	"sync"
	"time"
)

// DefaultTTL is how long an unused entry survives. Bounding idle age
// keeps the table from growing for the lifetime of the process.
const DefaultTTL = 48 * time.Hour

// Key identifies a delivered message within a chat scope.
type Key struct {
	Chat      string
	MessageID string
}

// Entry is one forwarding rule.
type Entry struct {
	Peer          string
	ForwardPrefix string
	BackPrefix    string
	lastUsed      time.Time
}

// Registry maps delivered messages to forwarding rules.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[Key]Entry
	now     func() time.Time
}

// NewRegistry creates an empty registry with the default idle TTL.
func NewRegistry() *Registry {
	return &Registry{
		ttl:     DefaultTTL,
		entries: make(map[Key]Entry),
		now:     time.Now,
	}
}

// Register records that a reply to message id within chat should be
// forwarded to peer. backPrefix is the prefix the counterpart's replies
// will carry on the way back.
func (r *Registry) Register(chat, messageID, peer, forwardPrefix, backPrefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[Key{Chat: chat, MessageID: messageID}] = Entry{
		Peer:          peer,
		ForwardPrefix: forwardPrefix,
		BackPrefix:    backPrefix,
		lastUsed:      r.now(),
	}
}

// Lookup returns the forwarding rule for a reply to (chat, messageID),
// refreshing its idle timer. The second result is false if the message
// is not part of any relay.
func (r *Registry) Lookup(chat, messageID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	k := Key{Chat: chat, MessageID: messageID}
	e, ok := r.entries[k]
	if !ok {
		return Entry{}, false
	}
	e.lastUsed = r.now()
	r.entries[k] = e
	return e, true
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.entries)
}

func (r *Registry) sweepLocked() {
	cutoff := r.now().Add(-r.ttl)
	for k, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			delete(r.entries, k)
		}
	}
}
