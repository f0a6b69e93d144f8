package command

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"

	"taskdag/internal/store"
)

// SyncResult is the sync success document.
type SyncResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Sync stages the log directory and commits it with the external git tool.
// A clean tree is success, not failure.
func Sync(s *store.Store, message string) (*SyncResult, error) {
	if message == "" {
		message = "taskdag: sync tasks"
	}

	if err := runGit("add", s.Root()); err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "commit", "-m", message, "--", s.Root())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	switch {
	case err == nil:
		s.Journal().Printf("sync: committed %q", message)
		return &SyncResult{Status: "committed", Message: message}, nil
	case strings.Contains(stdout.String(), "nothing to commit") || strings.Contains(stderr.String(), "nothing to commit"):
		return &SyncResult{Status: "clean", Message: "Nothing to commit"}, nil
	case errors.Is(err, exec.ErrNotFound):
		return nil, &Error{Kind: KindGitNotFound, Message: "git command not found"}
	default:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, &Error{Kind: KindGitError, Message: msg}
	}
}

func runGit(args ...string) error {
	cmd := exec.Command("git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &Error{Kind: KindGitNotFound, Message: "git command not found"}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return &Error{Kind: KindGitError, Message: msg}
	}
	return nil
}
