// Package audit keeps the append-only trail of commission and rule changes.
package audit

import (
	"encoding/json"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Action tags what an entry records.
type Action string

// Recorded actions.
const (
	ActionCreated    Action = "created"
	ActionUpdated    Action = "updated"
	ActionApproved   Action = "approved"
	ActionRejected   Action = "rejected"
	ActionPaid       Action = "paid"
	ActionManualNote Action = "manual_note"
	ActionDeleted    Action = "deleted"
)

// Scope separates per-deal entries from rule configuration entries.
type Scope string

// Entry scopes.
const (
	ScopeCommission Scope = "commission"
	ScopeSystem     Scope = "system"
)

// Actor identifies who made a change. Identity is supplied by the caller.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// System is the actor used when no caller identity is available.
var System = Actor{ID: "system", Name: "System"}

// Entry is one immutable record. Only Notes may change after Append.
type Entry struct {
	ID            string          `json:"id"`
	SubjectID     string          `json:"subject_id"`
	DealID        string          `json:"deal_id,omitempty"`
	Scope         Scope           `json:"scope"`
	UserID        string          `json:"user_id"`
	UserName      string          `json:"user_name"`
	Action        Action          `json:"action"`
	PreviousValue json.RawMessage `json:"previous_value,omitempty"`
	NewValue      json.RawMessage `json:"new_value,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Matches reports whether the entry belongs to subject id, either directly
// or through its deal.
func (e Entry) Matches(id string) bool {
	return e.SubjectID == id || (e.DealID != "" && e.DealID == id)
}

func (e Entry) clone() Entry {
	e.PreviousValue = slices.Clone(e.PreviousValue)
	e.NewValue = slices.Clone(e.NewValue)
	return e
}

// Snapshot encodes v for PreviousValue/NewValue. Values that cannot be
// encoded yield nil.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Log is an in-memory append-only trail. It is not safe for concurrent use;
// the owning service serializes access.
type Log struct {
	entries []Entry
	index   map[string]int
	now     func() time.Time
	newID   func() string
}

// NewLog builds a log that continues from existing entries.
func NewLog(entries []Entry, opts ...Option) *Log {
	l := &Log{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, e := range entries {
		l.put(e.clone())
	}
	return l
}

func (l *Log) put(e Entry) {
	l.index[e.ID] = len(l.entries)
	l.entries = append(l.entries, e)
}

// Append records e, assigning an id and timestamp when they are absent.
func (l *Log) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = l.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	if e.Scope == "" {
		e.Scope = ScopeCommission
	}
	e = e.clone()
	l.put(e)
	return e.clone()
}

// Get returns the entry with id.
func (l *Log) Get(id string) (Entry, bool) {
	i, ok := l.index[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i].clone(), true
}

// ListBySubject returns entries for id, newest first. Entries sharing a
// timestamp keep reverse append order.
func (l *Log) ListBySubject(id string) []Entry {
	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Matches(id) {
			out = append(out, l.entries[i].clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// UpdateNotes replaces the notes of entry id. It reports false when no such
// entry exists.
func (l *Log) UpdateNotes(id, notes string) (Entry, bool) {
	i, ok := l.index[id]
	if !ok {
		return Entry{}, false
	}
	l.entries[i].Notes = notes
	return l.entries[i].clone(), true
}

// Entries returns a copy of the whole trail in append order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Clone returns an independent copy sharing the log's clock and id source.
func (l *Log) Clone() *Log {
	return NewLog(l.entries, WithClock(l.now), WithIDGenerator(l.newID))
}
