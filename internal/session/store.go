// Package session holds the per-conversation pending relay state.
//
// Each conversation identity owns at most one pending slot: either a
// relay target (a message being anonymously replied to) or a pending
// attachment (an uploaded file awaiting a destination). The setters
// are mutually overwriting, so a well-formed store never has both.
package session

import (
	"context"
	"sync"
	"time"
)

// PayloadKind tags what a pending target was built from.
type PayloadKind string

const (
	// KindText targets carry a message key and can be threaded.
	KindText PayloadKind = "text"
	// KindFile targets came from a shared file. File forwards carry no
	// reusable message key, so they are re-posted instead of threaded.
	KindFile PayloadKind = "file"
)

// Target is a pending "reply to this message" correlation.
type Target struct {
	VChannelID string      `json:"vchannel_id"`
	UID        string      `json:"uid"` // original author
	MessageKey string      `json:"message_key"`
	Kind       PayloadKind `json:"kind"`
	FileURL    string      `json:"file_url,omitempty"`
}

// State is a read-only snapshot of one identity's pending slots.
type State struct {
	Target     *Target `json:"target,omitempty"`
	Attachment string  `json:"attachment,omitempty"` // pending file URL
}

// Empty reports whether neither slot is set.
func (s State) Empty() bool {
	return s.Target == nil && s.Attachment == ""
}

// Inconsistent reports whether both slots are set. The setters make
// this unreachable; it is checked defensively anyway.
func (s State) Inconsistent() bool {
	return s.Target != nil && s.Attachment != ""
}

// Store is the session store contract. Implementations must keep keys
// independent: operations on one identity never affect another.
type Store interface {
	// SetTarget overwrites any pending target or attachment for id.
	SetTarget(ctx context.Context, id string, t Target) error
	// SetAttachment overwrites any pending attachment or target for id.
	SetAttachment(ctx context.Context, id, url string) error
	// Peek reads the pending state without clearing it.
	Peek(ctx context.Context, id string) (State, error)
	// Clear drops both slots for id.
	Clear(ctx context.Context, id string) error
}

// MemoryStore is the default in-process Store. Entries expire ttl
// after their last write; ttl of 0 disables expiry.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	state   State
	written time.Time
}

// NewMemoryStore creates a MemoryStore with the given entry TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetTarget implements Store.
func (m *MemoryStore) SetTarget(_ context.Context, id string, t Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{state: State{Target: &t}, written: m.now()}
	return nil
}

// SetAttachment implements Store.
func (m *MemoryStore) SetAttachment(_ context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{state: State{Attachment: url}, written: m.now()}
	return nil
}

// Peek implements Store. Expired entries read as empty and are reaped.
func (m *MemoryStore) Peek(_ context.Context, id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return State{}, nil
	}
	if m.expired(entry) {
		delete(m.entries, id)
		return State{}, nil
	}
	return entry.state, nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Len returns the number of live entries, reaping expired ones.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, id)
		}
	}
	return len(m.entries)
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.written) >= m.ttl
}
