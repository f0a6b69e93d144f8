// Package graph analyzes the replayed task map: which tasks are actionable,
// which are waiting, and the node/edge projection for external rendering.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"taskdag/internal/event"
	"taskdag/internal/state"
)

// Node is one task in the projected graph.
type Node struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Status event.Status `json:"status"`
}

// Edge is one relationship. depends_on points dependency -> dependent;
// blocks points task -> blocked target.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Graph is the projection handed to renderers.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// BlockedTask is one entry of the blocked report: an open task together with
// the subset of its deps that are not yet done.
type BlockedTask struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	WaitingOn []string `json:"waiting_on"`
}

// Ready returns the tasks an agent may start now, oldest first. A task is
// ready iff it is open, every dep resolves to an existing done task, and no
// other non-done task names it as a blocks target.
//
// A dep on a nonexistent id fails closed: absence of evidence of completion
// is not evidence of completion.
func Ready(tasks map[string]*state.Task) []*state.Task {
	var ready []*state.Task

	for _, t := range tasks {
		if t.Status != event.StatusOpen {
			continue
		}

		depsDone := true
		for _, depID := range t.Deps {
			dep, ok := tasks[depID]
			if !ok || dep.Status != event.StatusDone {
				depsDone = false
				break
			}
		}
		if !depsDone {
			continue
		}

		blocked := false
		for _, other := range tasks {
			if other.ID == t.ID || other.Status == event.StatusDone {
				continue
			}
			for _, target := range other.Blocks {
				if target == t.ID {
					blocked = true
					break
				}
			}
			if blocked {
				break
			}
		}
		if blocked {
			continue
		}

		ready = append(ready, t)
	}

	sortByCreated(ready)
	return ready
}

// Blocked reports every open task with at least one unmet dependency. A dep
// whose target is missing counts as unmet, matching the ready predicate.
func Blocked(tasks map[string]*state.Task) []BlockedTask {
	var open []*state.Task
	for _, t := range tasks {
		if t.Status == event.StatusOpen {
			open = append(open, t)
		}
	}
	sortByCreated(open)

	var blocked []BlockedTask
	for _, t := range open {
		var waiting []string
		for _, depID := range t.Deps {
			dep, ok := tasks[depID]
			if !ok || dep.Status != event.StatusDone {
				waiting = append(waiting, depID)
			}
		}
		if len(waiting) > 0 {
			blocked = append(blocked, BlockedTask{ID: t.ID, Title: t.Title, WaitingOn: waiting})
		}
	}
	return blocked
}

// Build projects the given tasks onto a generic node/edge structure. Node
// order is creation order so output is deterministic across runs. Edges may
// reference ids outside the projected subset; no cycle validation happens.
func Build(tasks map[string]*state.Task) Graph {
	ordered := make([]*state.Task, 0, len(tasks))
	for _, t := range tasks {
		ordered = append(ordered, t)
	}
	sortByCreated(ordered)

	nodes := make([]Node, 0, len(ordered))
	edges := make([]Edge, 0)
	for _, t := range ordered {
		nodes = append(nodes, Node{ID: t.ID, Title: t.Title, Status: t.Status})
		for _, depID := range t.Deps {
			edges = append(edges, Edge{From: depID, To: t.ID, Type: "depends_on"})
		}
		for _, target := range t.Blocks {
			edges = append(edges, Edge{From: t.ID, To: target, Type: "blocks"})
		}
	}
	return Graph{Nodes: nodes, Edges: edges}
}

// Mermaid renders the projection as a Mermaid diagram.
func Mermaid(g Graph) string {
	lines := []string{"graph TD"}

	for _, n := range g.Nodes {
		icon := "○"
		if n.Status == event.StatusDone {
			icon = "✓"
		}
		title := strings.ReplaceAll(n.Title, `"`, "'")
		if r := []rune(title); len(r) > 30 {
			title = string(r[:30])
		}
		lines = append(lines, fmt.Sprintf("    %s[\"%s %s\"]", n.ID, icon, title))
	}

	for _, e := range g.Edges {
		if e.Type == "depends_on" {
			lines = append(lines, fmt.Sprintf("    %s --> %s", e.From, e.To))
		} else {
			lines = append(lines, fmt.Sprintf("    %s -.->|blocks| %s", e.From, e.To))
		}
	}

	return strings.Join(lines, "\n")
}

// WouldCreateCycle reports whether adding depID as a dependency of taskID
// closes a dependency loop. Used only as an advisory diagnostic: cycles are
// permitted in the log, they just leave the involved tasks never-ready.
func WouldCreateCycle(tasks map[string]*state.Task, taskID, depID string) bool {
	if taskID == depID {
		return true
	}
	visited := make(map[string]bool)
	return isReachable(tasks, depID, taskID, visited)
}

func isReachable(tasks map[string]*state.Task, startID, targetID string, visited map[string]bool) bool {
	if startID == targetID {
		return true
	}
	if visited[startID] {
		return false
	}
	visited[startID] = true

	t, ok := tasks[startID]
	if !ok {
		return false
	}
	for _, depID := range t.Deps {
		if isReachable(tasks, depID, targetID, visited) {
			return true
		}
	}
	return false
}

// sortByCreated orders tasks oldest first, id as a deterministic tiebreak.
func sortByCreated(tasks []*state.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Created.Equal(tasks[j].Created) {
			return tasks[i].Created.Before(tasks[j].Created)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
