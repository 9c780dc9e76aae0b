package chat

import (
	"sort"
	"sync"
)

// AddResult is the outcome of a Registry mutation.
type AddResult int

const (
	AddOK AddResult = iota
	AddDuplicate
	AddFull
	// AddUnknown is returned by Rename for a session that is not registered.
	AddUnknown
)

// String returns the string representation of AddResult
func (r AddResult) String() string {
	switch r {
	case AddOK:
		return "OK"
	case AddDuplicate:
		return "DUPLICATE"
	case AddFull:
		return "FULL"
	case AddUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// Peer is one entry of a registry snapshot.
type Peer struct {
	Conn Conn
	IP   string
	Port uint16
	Name string

	session *Session
}

type entry struct {
	session *Session
	seq     uint64
}

// Registry holds the named sessions. Display names are unique (exact,
// case-sensitive match) and the number of entries never exceeds the
// capacity. Every transport shares a single Registry through the Hub.
type Registry struct {
	capacity int

	mu        sync.RWMutex
	byName    map[string]*entry
	bySession map[*Session]string
	seq       uint64
}

// NewRegistry creates an empty registry holding at most capacity sessions.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity:  capacity,
		byName:    make(map[string]*entry),
		bySession: make(map[*Session]string),
	}
}

// Add registers s under name. A session that is already registered is
// renamed instead.
func (r *Registry) Add(s *Session, name string) AddResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySession[s]; ok {
		return r.renameLocked(s, name)
	}
	if len(r.byName) >= r.capacity {
		return AddFull
	}
	if _, taken := r.byName[name]; taken {
		return AddDuplicate
	}

	r.seq++
	r.byName[name] = &entry{session: s, seq: r.seq}
	r.bySession[s] = name
	s.setName(name)
	return AddOK
}

// Remove unregisters s. It reports whether s was registered; removing an
// absent session is a no-op.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.bySession[s]
	if !ok {
		return false
	}
	delete(r.bySession, s)
	delete(r.byName, name)
	return true
}

// Rename changes the name of a registered session. The registration order
// of the session is kept.
func (r *Registry) Rename(s *Session, name string) AddResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renameLocked(s, name)
}

func (r *Registry) renameLocked(s *Session, name string) AddResult {
	old, ok := r.bySession[s]
	if !ok {
		return AddUnknown
	}
	if old == name {
		return AddOK
	}
	if _, taken := r.byName[name]; taken {
		return AddDuplicate
	}

	e := r.byName[old]
	delete(r.byName, old)
	r.byName[name] = e
	r.bySession[s] = name
	s.setName(name)
	return AddOK
}

// Snapshot returns a copy of the registered sessions in registration order,
// leaving out exclude when it is non-nil. The copy is safe to iterate while
// the registry keeps changing.
func (r *Registry) Snapshot(exclude *Session) []Peer {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.byName))
	names := make(map[*entry]string, len(r.byName))
	for name, e := range r.byName {
		if e.session == exclude {
			continue
		}
		entries = append(entries, e)
		names[e] = name
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	peers := make([]Peer, len(entries))
	for i, e := range entries {
		peers[i] = Peer{
			Conn:    e.session.Conn,
			IP:      e.session.IP,
			Port:    e.session.Port,
			Name:    names[e],
			session: e.session,
		}
	}
	return peers
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Cap returns the maximum number of sessions.
func (r *Registry) Cap() int {
	return r.capacity
}
