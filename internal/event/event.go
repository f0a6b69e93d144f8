// Package event defines the append-only event vocabulary of a taskdag log.
// Events are immutable facts; the replayed task map is derived, never stored.
package event

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates event variants on the wire (the "type" field).
type Kind string

const (
	KindCreate Kind = "create"
	KindStatus Kind = "status"
	KindDep    Kind = "dep"
	KindBlock  Kind = "block"
	KindUpdate Kind = "update"
)

// Status is the two-valued task status. Transitions are unrestricted in both
// directions; reopening a done task is normal.
type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// Actions for dep and block events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Event is one record of the log. Each variant carries only its own fields.
type Event interface {
	// TaskID is the task the event concerns.
	TaskID() string
	// Time is the event timestamp, UTC with second precision.
	Time() time.Time
	// EventKind is the wire discriminator.
	EventKind() Kind
}

// Create establishes a task's identity. A later Create for the same id
// overwrites the earlier one during replay.
type Create struct {
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
	Type   Kind      `json:"type"`
	Title  string    `json:"title"`
	Status Status    `json:"status,omitempty"`
	Deps   []string  `json:"deps"`
	Blocks []string  `json:"blocks"`
	Labels []string  `json:"labels,omitempty"`
	Notes  string    `json:"notes,omitempty"`
}

// StatusChange flips a task between open and done.
type StatusChange struct {
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
	Type   Kind      `json:"type"`
	Status Status    `json:"status"`
}

// DepChange adds or removes one entry of a task's dependency set.
type DepChange struct {
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
	Type   Kind      `json:"type"`
	Dep    string    `json:"dep"`
	Action string    `json:"action"`
}

// BlockChange adds or removes one entry of a task's blocks set. The target
// field is named "blocks" on the wire, a string here where Create carries an
// array under the same key.
type BlockChange struct {
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
	Type   Kind      `json:"type"`
	Blocks string    `json:"blocks"`
	Action string    `json:"action"`
}

// Update replaces title, notes, or labels wholesale. Absent fields are left
// untouched during replay.
type Update struct {
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
	Type   Kind      `json:"type"`
	Title  string    `json:"title,omitempty"`
	Notes  string    `json:"notes,omitempty"`
	Labels []string  `json:"labels,omitempty"`
}

func (e *Create) TaskID() string { return e.ID }
func (e *Create) Time() time.Time { return e.TS }
func (e *Create) EventKind() Kind { return KindCreate }
func (e *StatusChange) TaskID() string { return e.ID }
func (e *StatusChange) Time() time.Time { return e.TS }
func (e *StatusChange) EventKind() Kind { return KindStatus }
func (e *DepChange) TaskID() string { return e.ID }
func (e *DepChange) Time() time.Time { return e.TS }
func (e *DepChange) EventKind() Kind { return KindDep }
func (e *BlockChange) TaskID() string { return e.ID }
func (e *BlockChange) Time() time.Time { return e.TS }
func (e *BlockChange) EventKind() Kind { return KindBlock }
func (e *Update) TaskID() string { return e.ID }
func (e *Update) Time() time.Time { return e.TS }
func (e *Update) EventKind() Kind { return KindUpdate }

// Encode marshals an event as one self-contained JSON record.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses one record, dispatching on the type discriminator. Callers
// treat any error as a malformed line and skip it; the log tolerates partial
// writes and records from newer versions.
func Decode(line []byte) (Event, error) {
	var head struct {
		ID   string `json:"id"`
		Type Kind   `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, err
	}
	if head.ID == "" {
		return nil, fmt.Errorf("event missing id")
	}

	var ev Event
	switch head.Type {
	case KindCreate:
		ev = &Create{}
	case KindStatus:
		ev = &StatusChange{}
	case KindDep:
		ev = &DepChange{}
	case KindBlock:
		ev = &BlockChange{}
	case KindUpdate:
		ev = &Update{}
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
	if err := json.Unmarshal(line, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// IDPrefix namespaces generated task identifiers.
const IDPrefix = "td-"

// NewID generates a short unique task ID like td-a1b2c3d4.
func NewID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	sum := sha256.Sum256([]byte(Now().Format(time.RFC3339) + "-" + hex.EncodeToString(buf)))
	return IDPrefix + hex.EncodeToString(sum[:])[:8]
}

// Now returns the current UTC time truncated to seconds, so timestamps
// marshal in the fixed 2006-01-02T15:04:05Z form the log format requires.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Today returns the current UTC date, naming the daily log partition.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}
