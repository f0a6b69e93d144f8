package state

import (
	"reflect"
	"testing"
	"time"

	"taskdag/internal/event"
)

func baseTime() time.Time {
	return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

func create(id, title string, at time.Time, deps, blocks []string) *event.Create {
	return &event.Create{ID: id, TS: at, Type: event.KindCreate, Title: title, Status: event.StatusOpen, Deps: deps, Blocks: blocks}
}

func TestReplayScenario(t *testing.T) {
	now := baseTime()
	events := []event.Event{
		create("td-001", "Task 1", now, []string{}, []string{}),
		create("td-002", "Task 2", now.Add(time.Second), []string{"td-001"}, []string{}),
		&event.StatusChange{ID: "td-001", TS: now.Add(2 * time.Second), Type: event.KindStatus, Status: event.StatusDone},
	}

	tasks := Replay(events)

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	t1 := tasks["td-001"]
	if t1.Status != event.StatusDone {
		t.Errorf("task 1 should be done, got %s", t1.Status)
	}
	if t1.Completed == nil || !t1.Completed.Equal(now.Add(2*time.Second)) {
		t.Errorf("task 1 completed timestamp wrong: %v", t1.Completed)
	}
	if !t1.Updated.Equal(now.Add(2 * time.Second)) {
		t.Errorf("task 1 updated timestamp wrong: %v", t1.Updated)
	}
	t2 := tasks["td-002"]
	if len(t2.Deps) != 1 || t2.Deps[0] != "td-001" {
		t.Errorf("task 2 should depend on td-001, got %v", t2.Deps)
	}
}

func TestReplayDeterministic(t *testing.T) {
	now := baseTime()
	events := []event.Event{
		create("td-001", "Task 1", now, []string{}, []string{"td-002"}),
		create("td-002", "Task 2", now.Add(time.Second), []string{"td-001"}, []string{}),
		&event.DepChange{ID: "td-002", TS: now.Add(2 * time.Second), Type: event.KindDep, Dep: "td-003", Action: event.ActionAdd},
		&event.StatusChange{ID: "td-001", TS: now.Add(3 * time.Second), Type: event.KindStatus, Status: event.StatusDone},
		&event.Update{ID: "td-002", TS: now.Add(4 * time.Second), Type: event.KindUpdate, Notes: "updated"},
	}

	first := Replay(events)
	second := Replay(events)

	if !reflect.DeepEqual(first, second) {
		t.Error("replaying the same sequence twice must yield identical task maps")
	}
}

func TestReplayUnknownIDInert(t *testing.T) {
	now := baseTime()
	events := []event.Event{
		&event.StatusChange{ID: "td-ghost", TS: now, Type: event.KindStatus, Status: event.StatusDone},
		&event.DepChange{ID: "td-ghost", TS: now, Type: event.KindDep, Dep: "td-001", Action: event.ActionAdd},
		&event.BlockChange{ID: "td-ghost", TS: now, Type: event.KindBlock, Blocks: "td-001", Action: event.ActionAdd},
		&event.Update{ID: "td-ghost", TS: now, Type: event.KindUpdate, Title: "new"},
	}

	tasks := Replay(events)
	if len(tasks) != 0 {
		t.Errorf("events for unknown ids must be inert, got %d tasks", len(tasks))
	}
}

func TestReplayIdempotentSetOps(t *testing.T) {
	now := baseTime()
	addDep := func(at time.Time) event.Event {
		return &event.DepChange{ID: "td-001", TS: at, Type: event.KindDep, Dep: "td-002", Action: event.ActionAdd}
	}
	events := []event.Event{
		create("td-001", "Task 1", now, []string{}, []string{}),
		addDep(now.Add(time.Second)),
		addDep(now.Add(2 * time.Second)), // duplicate add is a no-op
		&event.DepChange{ID: "td-001", TS: now.Add(3 * time.Second), Type: event.KindDep, Dep: "td-absent", Action: event.ActionRemove},
		&event.BlockChange{ID: "td-001", TS: now.Add(4 * time.Second), Type: event.KindBlock, Blocks: "td-003", Action: event.ActionAdd},
		&event.BlockChange{ID: "td-001", TS: now.Add(5 * time.Second), Type: event.KindBlock, Blocks: "td-003", Action: event.ActionAdd},
	}

	tasks := Replay(events)
	task := tasks["td-001"]

	if len(task.Deps) != 1 || task.Deps[0] != "td-002" {
		t.Errorf("deps should be exactly [td-002], got %v", task.Deps)
	}
	if len(task.Blocks) != 1 || task.Blocks[0] != "td-003" {
		t.Errorf("blocks should be exactly [td-003], got %v", task.Blocks)
	}

	// Remove then re-check.
	events = append(events, &event.DepChange{ID: "td-001", TS: now.Add(6 * time.Second), Type: event.KindDep, Dep: "td-002", Action: event.ActionRemove})
	task = Replay(events)["td-001"]
	if len(task.Deps) != 0 {
		t.Errorf("deps should be empty after removal, got %v", task.Deps)
	}
}

func TestReplayReopenKeepsCompleted(t *testing.T) {
	now := baseTime()
	doneAt := now.Add(time.Second)
	events := []event.Event{
		create("td-001", "Task 1", now, []string{}, []string{}),
		&event.StatusChange{ID: "td-001", TS: doneAt, Type: event.KindStatus, Status: event.StatusDone},
		&event.StatusChange{ID: "td-001", TS: now.Add(2 * time.Second), Type: event.KindStatus, Status: event.StatusOpen},
	}

	task := Replay(events)["td-001"]
	if task.Status != event.StatusOpen {
		t.Errorf("task should be open after reopen, got %s", task.Status)
	}
	if task.Completed == nil || !task.Completed.Equal(doneAt) {
		t.Errorf("completed is the last completion time and survives reopen, got %v", task.Completed)
	}
}

func TestReplayUpdateReplacesWholesale(t *testing.T) {
	now := baseTime()
	events := []event.Event{
		&event.Create{ID: "td-001", TS: now, Type: event.KindCreate, Title: "Old", Status: event.StatusOpen, Deps: []string{}, Blocks: []string{}, Labels: []string{"a", "b"}, Notes: "old notes"},
		&event.Update{ID: "td-001", TS: now.Add(time.Second), Type: event.KindUpdate, Title: "New", Labels: []string{"c"}},
	}

	task := Replay(events)["td-001"]
	if task.Title != "New" {
		t.Errorf("title should be replaced, got %s", task.Title)
	}
	if len(task.Labels) != 1 || task.Labels[0] != "c" {
		t.Errorf("labels replace wholesale, got %v", task.Labels)
	}
	if task.Notes != "old notes" {
		t.Errorf("absent update fields must not change, got %q", task.Notes)
	}
	if !task.Updated.Equal(now.Add(time.Second)) {
		t.Errorf("updated should track the update event, got %v", task.Updated)
	}
}

func TestReplayLaterCreateOverwrites(t *testing.T) {
	now := baseTime()
	events := []event.Event{
		create("td-001", "First", now, []string{"td-009"}, []string{}),
		create("td-001", "Second", now.Add(time.Second), []string{}, []string{}),
	}

	task := Replay(events)["td-001"]
	if task.Title != "Second" || len(task.Deps) != 0 {
		t.Errorf("later create silently overwrites: %+v", task)
	}
}

func TestResolveID(t *testing.T) {
	now := baseTime()
	tasks := Replay([]event.Event{
		create("td-abc123", "A", now, []string{}, []string{}),
		create("td-abd456", "B", now.Add(time.Second), []string{}, []string{}),
	})

	if id, err := ResolveID(tasks, "td-abc123"); err != nil || id != "td-abc123" {
		t.Errorf("exact match: got %q, %v", id, err)
	}
	if id, err := ResolveID(tasks, "td-abc"); err != nil || id != "td-abc123" {
		t.Errorf("unique prefix: got %q, %v", id, err)
	}
	if _, err := ResolveID(tasks, "td-ab"); err == nil {
		t.Error("ambiguous prefix should fail")
	}
	if _, err := ResolveID(tasks, "td-zzz"); err == nil {
		t.Error("unknown id should fail")
	}
}
