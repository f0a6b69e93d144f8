package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Journal appends timestamped lines to .taskdag/activity.log so skipped
// records and sync results can be inspected after the fact. Writes are best
// effort: the journal never fails a command.
type Journal struct {
	path string
}

// NewJournal returns a journal writing inside the marker directory.
func NewJournal(markerDir string) *Journal {
	return &Journal{path: filepath.Join(markerDir, "activity.log")}
}

// Printf writes a single timestamped line.
func (j *Journal) Printf(format string, args ...any) {
	if j == nil {
		return
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(f, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)
}
