package ws

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type  string          `json:"type"`
	ID    uint64          `json:"id"`
	OrgID string          `json:"-"`
	Data  json.RawMessage `json:"data"`
	Time  time.Time       `json:"time"`
}

// Filter narrows the audit entries a client receives. Empty fields match
// everything; Name matches as a case-sensitive substring.
type Filter struct {
	ObjectType string `json:"type,omitempty"`
	Action     string `json:"action,omitempty"`
	Name       string `json:"name,omitempty"`
}

// entryFields are the parts of an audit entry payload a Filter inspects.
type entryFields struct {
	ObjectType string `json:"object_type"`
	ObjectName string `json:"object_name"`
	Action     string `json:"action"`
}

// matches reports whether f accepts an entry.
func (f Filter) matches(e entryFields) bool {
	if f.ObjectType != "" && f.ObjectType != e.ObjectType {
		return false
	}
	if f.Action != "" && f.Action != e.Action {
		return false
	}
	return f.Name == "" || strings.Contains(e.ObjectName, f.Name)
}

// SubscribeMsg is sent by the client to replace its filter.
type SubscribeMsg struct {
	Type   string `json:"type"`
	Filter Filter `json:"filter"`
}

// EventSequence tracks monotonic event IDs per organization.
type EventSequence struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

// NewEventSequence creates a new EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{
		counters: make(map[string]*atomic.Uint64),
	}
}

// Next returns the next sequence number for an organization.
func (es *EventSequence) Next(orgID string) uint64 {
	es.mu.Lock()
	counter, ok := es.counters[orgID]
	if !ok {
		counter = &atomic.Uint64{}
		es.counters[orgID] = counter
	}
	es.mu.Unlock()

	return counter.Add(1)
}
