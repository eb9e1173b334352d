package transport

import (
	"sync"

	"github.com/google/uuid"
)

// sessionTable is the concurrent session registry shared by every server
// type: adds and removes take its RWMutex for writing, lookups and
// snapshots take it for reading, and a snapshot is a copy, so ranging over
// it never races a concurrent add or remove. Per-address accounting (accepted/closed/rejected counters,
// per-IP connection caps) is folded directly into the table instead of
// being kept as a separate connection-pool type.
type sessionTable struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]Session
	limit        int
	perAddrLimit int
	perAddr      map[string]int

	accepted uint64
	closed   uint64
	rejected uint64
}

func newSessionTable(limit, perAddrLimit int) *sessionTable {
	return &sessionTable{
		sessions:     make(map[uuid.UUID]Session),
		limit:        limit,
		perAddrLimit: perAddrLimit,
		perAddr:      make(map[string]int),
	}
}

// add registers s, reporting false (caller must reject/close s) if the
// table is already at its configured total or per-address limit.
func (t *sessionTable) add(s Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && len(t.sessions) >= t.limit {
		t.rejected++
		return false
	}
	addr := s.RemoteEndpoint().Host
	if t.perAddrLimit > 0 && t.perAddr[addr] >= t.perAddrLimit {
		t.rejected++
		return false
	}
	t.sessions[s.ID()] = s
	t.perAddr[addr]++
	t.accepted++
	return true
}

func (t *sessionTable) remove(s Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[s.ID()]; !ok {
		return
	}
	delete(t.sessions, s.ID())
	addr := s.RemoteEndpoint().Host
	if t.perAddr[addr] > 0 {
		t.perAddr[addr]--
		if t.perAddr[addr] == 0 {
			delete(t.perAddr, addr)
		}
	}
	t.closed++
}

func (t *sessionTable) get(id uuid.UUID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

func (t *sessionTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// snapshot returns a stable copy of the currently registered sessions,
// safe to range over while other goroutines add/remove concurrently.
func (t *sessionTable) snapshot() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// broadcast sends b to every currently registered session via SendAsync,
// returning the count of sessions it was successfully queued to.
func (t *sessionTable) broadcast(b []byte) int {
	n := 0
	for _, s := range t.snapshot() {
		if s.SendAsync(b) {
			n++
		}
	}
	return n
}

func (t *sessionTable) closeAll() {
	for _, s := range t.snapshot() {
		s.Disconnect()
	}
}

// Stats reports cumulative accept/close/reject counters alongside the
// current active count.
type Stats struct {
	Active   int
	Accepted uint64
	Closed   uint64
	Rejected uint64
}

func (t *sessionTable) stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		Active:   len(t.sessions),
		Accepted: t.accepted,
		Closed:   t.closed,
		Rejected: t.rejected,
	}
}
