// Package command implements the CLI verbs: each one reads the whole log,
// replays it, validates against the reconstructed state, and either appends
// exactly one new event or answers a query. A command fully succeeds or fully
// fails; nothing is appended on a validation error.
package command

import (
	"sort"
	"time"

	"taskdag/internal/event"
	"taskdag/internal/graph"
	"taskdag/internal/state"
	"taskdag/internal/store"
)

// TaskRef is a compact task reference used inside result documents.
type TaskRef struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Status event.Status `json:"status,omitempty"`
}

// InitResult is the init success document.
type InitResult struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Init creates a new repository in dir.
func Init(dir string) (*InitResult, error) {
	s, err := store.Init(dir)
	if err != nil {
		return nil, err
	}
	return &InitResult{
		Status:  "initialized",
		Path:    s.Root(),
		Message: "taskdag initialized. Add .taskdag/ to git.",
	}, nil
}

// CreateResult is the create success document.
type CreateResult struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Status  event.Status `json:"status"`
	Deps    []string     `json:"deps"`
	Blocks  []string     `json:"blocks"`
	Created time.Time    `json:"created"`
}

// Create appends a create event for a new task.
func Create(s *store.Store, title string, deps, blocks, labels []string, notes string) (*CreateResult, error) {
	if deps == nil {
		deps = []string{}
	}
	if blocks == nil {
		blocks = []string{}
	}

	id := event.NewID()
	now := event.Now()
	ev := &event.Create{
		ID:     id,
		TS:     now,
		Type:   event.KindCreate,
		Title:  title,
		Status: event.StatusOpen,
		Deps:   deps,
		Blocks: blocks,
		Labels: labels,
		Notes:  notes,
	}
	if err := s.Append(ev); err != nil {
		return nil, err
	}

	return &CreateResult{
		ID:      id,
		Title:   title,
		Status:  event.StatusOpen,
		Deps:    deps,
		Blocks:  blocks,
		Created: now,
	}, nil
}

// StatusResult is the done/reopen success document.
type StatusResult struct {
	ID        string       `json:"id"`
	Status    event.Status `json:"status"`
	Completed *time.Time   `json:"completed,omitempty"`
	Reopened  *time.Time   `json:"reopened,omitempty"`
}

// Done marks a task done.
func Done(s *store.Store, id string) (*StatusResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	id, err = resolve(tasks, id)
	if err != nil {
		return nil, err
	}

	now := event.Now()
	ev := &event.StatusChange{ID: id, TS: now, Type: event.KindStatus, Status: event.StatusDone}
	if err := s.Append(ev); err != nil {
		return nil, err
	}
	return &StatusResult{ID: id, Status: event.StatusDone, Completed: &now}, nil
}

// Reopen flips a task back to open. The previously recorded completion time
// stays in the replayed state.
func Reopen(s *store.Store, id string) (*StatusResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	id, err = resolve(tasks, id)
	if err != nil {
		return nil, err
	}

	now := event.Now()
	ev := &event.StatusChange{ID: id, TS: now, Type: event.KindStatus, Status: event.StatusOpen}
	if err := s.Append(ev); err != nil {
		return nil, err
	}
	return &StatusResult{ID: id, Status: event.StatusOpen, Reopened: &now}, nil
}

// DepResult is the dep success document.
type DepResult struct {
	ID           string    `json:"id"`
	Dependency   string    `json:"dependency"`
	Action       string    `json:"action"`
	Updated      time.Time `json:"updated"`
	CycleWarning bool      `json:"cycle_warning,omitempty"`
}

// Dep adds or removes a dependency edge. Both ends must exist. Adding an
// edge that closes a dependency loop is allowed but flagged, since every
// task on the loop becomes permanently not-ready.
func Dep(s *store.Store, id, on string, remove bool) (*DepResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	id, err = resolve(tasks, id)
	if err != nil {
		return nil, err
	}
	on, err = resolve(tasks, on)
	if err != nil {
		return nil, err
	}

	action := event.ActionAdd
	if remove {
		action = event.ActionRemove
	}
	warn := action == event.ActionAdd && graph.WouldCreateCycle(tasks, id, on)

	now := event.Now()
	ev := &event.DepChange{ID: id, TS: now, Type: event.KindDep, Dep: on, Action: action}
	if err := s.Append(ev); err != nil {
		return nil, err
	}
	return &DepResult{ID: id, Dependency: on, Action: action, Updated: now, CycleWarning: warn}, nil
}

// BlockResult is the block success document.
type BlockResult struct {
	ID      string    `json:"id"`
	Blocks  string    `json:"blocks"`
	Action  string    `json:"action"`
	Updated time.Time `json:"updated"`
}

// Block records that task id blocks completion of target.
func Block(s *store.Store, id, target string, remove bool) (*BlockResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	id, err = resolve(tasks, id)
	if err != nil {
		return nil, err
	}
	target, err = resolve(tasks, target)
	if err != nil {
		return nil, err
	}

	action := event.ActionAdd
	if remove {
		action = event.ActionRemove
	}

	now := event.Now()
	ev := &event.BlockChange{ID: id, TS: now, Type: event.KindBlock, Blocks: target, Action: action}
	if err := s.Append(ev); err != nil {
		return nil, err
	}
	return &BlockResult{ID: id, Blocks: target, Action: action, Updated: now}, nil
}

// ListResult is the list/ready success document.
type ListResult struct {
	Tasks []*state.Task `json:"tasks"`
	Count int           `json:"count"`
}

// List returns tasks filtered by status (open, done, or all), newest first.
func List(s *store.Store, status string) (*ListResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}

	result := make([]*state.Task, 0, len(tasks))
	for _, t := range tasks {
		if status != "" && status != "all" && string(t.Status) != status {
			continue
		}
		result = append(result, t)
	}
	sortByCreatedDesc(result)

	return &ListResult{Tasks: result, Count: len(result)}, nil
}

// ShowResult is the show success document: the task plus resolved
// relationship context.
type ShowResult struct {
	state.Task
	DepsStatus []TaskRef `json:"deps_status"`
	BlockedBy  []TaskRef `json:"blocked_by"`
}

// Show returns one task with the status of its deps and the non-done tasks
// naming it as a blocks target.
func Show(s *store.Store, id string) (*ShowResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	id, err = resolve(tasks, id)
	if err != nil {
		return nil, err
	}
	t := tasks[id]

	out := &ShowResult{Task: *t, DepsStatus: []TaskRef{}, BlockedBy: []TaskRef{}}
	for _, depID := range t.Deps {
		if dep, ok := tasks[depID]; ok {
			out.DepsStatus = append(out.DepsStatus, TaskRef{ID: depID, Title: dep.Title, Status: dep.Status})
		}
	}
	for _, other := range orderedTasks(tasks) {
		if other.Status == event.StatusDone {
			continue
		}
		for _, target := range other.Blocks {
			if target == id {
				out.BlockedBy = append(out.BlockedBy, TaskRef{ID: other.ID, Title: other.Title})
				break
			}
		}
	}
	return out, nil
}

// ReadyList returns the tasks ready to work on, oldest first.
func ReadyList(s *store.Store) (*ListResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	ready := graph.Ready(tasks)
	if ready == nil {
		ready = []*state.Task{}
	}
	return &ListResult{Tasks: ready, Count: len(ready)}, nil
}

// GraphDoc projects the dependency graph, open tasks only unless all is set.
func GraphDoc(s *store.Store, all bool) (*graph.Graph, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	if !all {
		open := make(map[string]*state.Task)
		for id, t := range tasks {
			if t.Status == event.StatusOpen {
				open[id] = t
			}
		}
		tasks = open
	}
	g := graph.Build(tasks)
	return &g, nil
}

// PrimeResult is the summarized context bundle for agent injection.
type PrimeResult struct {
	Summary         PrimeSummary   `json:"summary"`
	ReadyTasks      []TaskRef      `json:"ready_tasks"`
	RecentCompleted []CompletedRef `json:"recent_completed"`
	BlockedTasks    []PrimeBlocked `json:"blocked_tasks"`
}

// PrimeSummary carries the headline counts.
type PrimeSummary struct {
	TotalOpen  int `json:"total_open"`
	TotalDone  int `json:"total_done"`
	ReadyCount int `json:"ready_count"`
}

// CompletedRef is a recently completed task with its completion time.
type CompletedRef struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed *time.Time `json:"completed"`
}

// PrimeBlocked is a blocked task with a truncated waiting_on list.
type PrimeBlocked struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	WaitingOn []string `json:"waiting_on"`
}

// Prime builds the context bundle: counts, top 10 ready tasks, last 5
// completed, top 5 blocked.
func Prime(s *store.Store) (*PrimeResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}

	ready := graph.Ready(tasks)
	blocked := graph.Blocked(tasks)

	out := &PrimeResult{
		ReadyTasks:      []TaskRef{},
		RecentCompleted: []CompletedRef{},
		BlockedTasks:    []PrimeBlocked{},
	}

	var done []*state.Task
	for _, t := range tasks {
		switch t.Status {
		case event.StatusOpen:
			out.Summary.TotalOpen++
		case event.StatusDone:
			out.Summary.TotalDone++
			done = append(done, t)
		}
	}
	out.Summary.ReadyCount = len(ready)

	for _, t := range ready {
		out.ReadyTasks = append(out.ReadyTasks, TaskRef{ID: t.ID, Title: t.Title})
		if len(out.ReadyTasks) == 10 {
			break
		}
	}

	sortByCompletedDesc(done)
	for _, t := range done {
		out.RecentCompleted = append(out.RecentCompleted, CompletedRef{ID: t.ID, Title: t.Title, Completed: t.Completed})
		if len(out.RecentCompleted) == 5 {
			break
		}
	}

	for _, b := range blocked {
		waiting := b.WaitingOn
		if len(waiting) > 3 {
			waiting = waiting[:3]
		}
		out.BlockedTasks = append(out.BlockedTasks, PrimeBlocked{ID: b.ID, Title: b.Title, WaitingOn: waiting})
		if len(out.BlockedTasks) == 5 {
			break
		}
	}

	return out, nil
}

// UpdateResult is the update success document.
type UpdateResult struct {
	ID      string         `json:"id"`
	Updated time.Time      `json:"updated"`
	Changes map[string]any `json:"changes"`
}

// Update replaces a task's title, notes, or labels wholesale. At least one
// field must be supplied; an empty update is rejected before any append.
func Update(s *store.Store, id, title, notes string, labels []string) (*UpdateResult, error) {
	tasks, err := loadState(s)
	if err != nil {
		return nil, err
	}
	id, err = resolve(tasks, id)
	if err != nil {
		return nil, err
	}

	if title == "" && notes == "" && len(labels) == 0 {
		return nil, &Error{Kind: KindNoChanges, Message: "no changes specified"}
	}

	now := event.Now()
	ev := &event.Update{ID: id, TS: now, Type: event.KindUpdate, Title: title, Notes: notes, Labels: labels}
	if err := s.Append(ev); err != nil {
		return nil, err
	}

	changes := make(map[string]any)
	if title != "" {
		changes["title"] = title
	}
	if notes != "" {
		changes["notes"] = notes
	}
	if len(labels) > 0 {
		changes["labels"] = labels
	}
	return &UpdateResult{ID: id, Updated: now, Changes: changes}, nil
}

func loadState(s *store.Store) (map[string]*state.Task, error) {
	events, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	return state.Replay(events), nil
}

func resolve(tasks map[string]*state.Task, prefix string) (string, error) {
	id, err := state.ResolveID(tasks, prefix)
	if err != nil {
		return "", errNotFound("%s", err.Error())
	}
	return id, nil
}

// orderedTasks flattens the map oldest-first for stable listings.
func orderedTasks(tasks map[string]*state.Task) []*state.Task {
	out := make([]*state.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortByCreatedDesc orders tasks newest first, the list command's order.
func sortByCreatedDesc(tasks []*state.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Created.Equal(tasks[j].Created) {
			return tasks[i].Created.After(tasks[j].Created)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

// sortByCompletedDesc orders done tasks by most recent completion.
func sortByCompletedDesc(tasks []*state.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		ci, cj := tasks[i].Completed, tasks[j].Completed
		switch {
		case ci == nil:
			return false
		case cj == nil:
			return true
		case !ci.Equal(*cj):
			return ci.After(*cj)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
