// Package state reconstructs the task map by replaying the event log.
// Tasks are ephemeral: recomputed on every query, never stored.
package state

import (
	"fmt"
	"time"

	"taskdag/internal/event"
)

// Task is the derived snapshot of one task after replay.
type Task struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Status    event.Status `json:"status"`
	Deps      []string     `json:"deps"`
	Blocks    []string     `json:"blocks"`
	Created   time.Time    `json:"created"`
	Updated   time.Time    `json:"updated"`
	Completed *time.Time   `json:"completed,omitempty"`
	Labels    []string     `json:"labels"`
	Notes     string       `json:"notes"`
}

// Replay folds an ordered event sequence into the current task map. It is a
// pure function of its input: identical sequences yield identical maps.
//
// Events referencing an id with no prior create are dropped without error.
// That tolerance is deliberate: partially replicated or merged logs must
// replay cleanly, so unknown references are inert rather than fatal.
func Replay(events []event.Event) map[string]*Task {
	tasks := make(map[string]*Task)

	for _, ev := range events {
		switch e := ev.(type) {
		case *event.Create:
			status := e.Status
			if status == "" {
				status = event.StatusOpen
			}
			tasks[e.ID] = &Task{
				ID:      e.ID,
				Title:   e.Title,
				Status:  status,
				Deps:    cloneOrEmpty(e.Deps),
				Blocks:  cloneOrEmpty(e.Blocks),
				Created: e.TS,
				Updated: e.TS,
				Labels:  cloneOrEmpty(e.Labels),
				Notes:   e.Notes,
			}

		case *event.StatusChange:
			t, ok := tasks[e.ID]
			if !ok {
				continue
			}
			t.Status = e.Status
			t.Updated = e.TS
			if e.Status == event.StatusDone {
				// Last completion time. Reopening does not clear it.
				ts := e.TS
				t.Completed = &ts
			}

		case *event.DepChange:
			t, ok := tasks[e.ID]
			if !ok {
				continue
			}
			switch e.Action {
			case event.ActionAdd:
				t.Deps = appendUnique(t.Deps, e.Dep)
			case event.ActionRemove:
				t.Deps = removeItem(t.Deps, e.Dep)
			}
			t.Updated = e.TS

		case *event.BlockChange:
			t, ok := tasks[e.ID]
			if !ok {
				continue
			}
			switch e.Action {
			case event.ActionAdd:
				t.Blocks = appendUnique(t.Blocks, e.Blocks)
			case event.ActionRemove:
				t.Blocks = removeItem(t.Blocks, e.Blocks)
			}
			t.Updated = e.TS

		case *event.Update:
			t, ok := tasks[e.ID]
			if !ok {
				continue
			}
			if e.Title != "" {
				t.Title = e.Title
			}
			if e.Notes != "" {
				t.Notes = e.Notes
			}
			if e.Labels != nil {
				t.Labels = cloneOrEmpty(e.Labels)
			}
			t.Updated = e.TS
		}
	}

	return tasks
}

// ResolveID resolves a full ID or unique prefix to a known task ID.
func ResolveID(tasks map[string]*Task, prefix string) (string, error) {
	if _, ok := tasks[prefix]; ok {
		return prefix, nil
	}
	var matches []string
	for id := range tasks {
		if len(prefix) <= len(id) && id[:len(prefix)] == prefix {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("task %s not found", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous prefix %s matches %d tasks", prefix, len(matches))
	}
}

// cloneOrEmpty copies a slice so replayed tasks never alias event data.
func cloneOrEmpty(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}

func removeItem(slice []string, item string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != item {
			result = append(result, s)
		}
	}
	return result
}
