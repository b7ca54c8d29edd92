package reconciler

import (
	"sort"
	"strings"
	"time"
)

// PauseFlag is the session-scoped "generation paused" switch. It is shared by
// reference between the session manager and the reconciler and is only ever
// touched from the session event loop, hence no lock.
type PauseFlag struct {
	set bool
}

// Set raises the flag and reports whether it changed.
func (p *PauseFlag) Set() bool {
	changed := !p.set
	p.set = true
	return changed
}

// Clear lowers the flag and reports whether it changed.
func (p *PauseFlag) Clear() bool {
	changed := p.set
	p.set = false
	return changed
}

func (p *PauseFlag) IsSet() bool { return p != nil && p.set }

// entry is the live state of one streaming message.
type entry struct {
	id          string
	displayName string
	replyTo     string
	content     strings.Builder
	hasView     bool
	createdAt   time.Time
	seq         uint64
}

// MessageLifecycleStore holds the streaming state of every tracked message id.
type MessageLifecycleStore struct {
	entries map[string]*entry
	nextSeq uint64
}

func NewMessageLifecycleStore() *MessageLifecycleStore {
	return &MessageLifecycleStore{entries: map[string]*entry{}}
}

func (s *MessageLifecycleStore) get(id string) (*entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// track creates the entry for id; the caller checks it is not tracked yet.
func (s *MessageLifecycleStore) track(id, displayName, replyTo string, at time.Time) *entry {
	s.nextSeq++
	e := &entry{id: id, displayName: displayName, replyTo: replyTo, createdAt: at, seq: s.nextSeq}
	s.entries[id] = e
	return e
}

func (s *MessageLifecycleStore) drop(id string) {
	delete(s.entries, id)
}

func (s *MessageLifecycleStore) Len() int { return len(s.entries) }

// ids returns tracked ids in the order they started.
func (s *MessageLifecycleStore) ids() []string {
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.id)
	}
	return out
}

// SuppressionSet holds ids whose lifecycle must stay invisible.
type SuppressionSet struct {
	ids map[string]struct{}
}

func NewSuppressionSet() *SuppressionSet {
	return &SuppressionSet{ids: map[string]struct{}{}}
}

func (s *SuppressionSet) Add(id string) { s.ids[id] = struct{}{} }

func (s *SuppressionSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Remove deletes id and reports whether it was a member.
func (s *SuppressionSet) Remove(id string) bool {
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	return true
}

// Drain empties the set and returns the former members.
func (s *SuppressionSet) Drain() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	s.ids = map[string]struct{}{}
	return out
}

func (s *SuppressionSet) Len() int { return len(s.ids) }
