// Package store persists the event log: a .taskdag marker directory holding
// config.json and one JSONL partition per UTC day under events/.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"taskdag/internal/event"
)

const (
	MarkerDir  = ".taskdag"
	EventsDir  = "events"
	ConfigFile = "config.json"

	configVersion = "0.1.0"
)

var (
	// ErrNotInitialized means no .taskdag directory exists in the ancestry.
	ErrNotInitialized = errors.New("not a taskdag repository (run 'td init' first)")
	// ErrAlreadyInitialized means init was requested where a marker exists.
	ErrAlreadyInitialized = errors.New("taskdag already initialized")
)

// Config is the marker directory's configuration record.
type Config struct {
	Version string `json:"version"`
	Created string `json:"created"`
}

// Store reads and appends events under one marker directory.
type Store struct {
	root    string
	journal *Journal
}

// Find walks start and its ancestors looking for the marker directory and
// opens a Store rooted there. An empty start means the current directory.
func Find(start string) (*Store, error) {
	dir := start
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	for {
		marker := filepath.Join(dir, MarkerDir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return &Store{root: marker, journal: NewJournal(marker)}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotInitialized
		}
		dir = parent
	}
}

// Init creates the marker directory in dir and writes its config record.
func Init(dir string) (*Store, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	}
	marker := filepath.Join(dir, MarkerDir)

	if _, err := os.Stat(marker); err == nil {
		return nil, fmt.Errorf("%w at %s", ErrAlreadyInitialized, marker)
	}
	if err := os.MkdirAll(filepath.Join(marker, EventsDir), 0o755); err != nil {
		return nil, err
	}

	cfg := Config{Version: configVersion, Created: event.Now().Format("2006-01-02T15:04:05Z")}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(marker, ConfigFile), data, 0o644); err != nil {
		return nil, err
	}

	s := &Store{root: marker, journal: NewJournal(marker)}
	s.journal.Printf("initialized version %s", configVersion)
	return s, nil
}

// Root returns the marker directory path.
func (s *Store) Root() string { return s.root }

// Journal returns the store's activity journal.
func (s *Store) Journal() *Journal { return s.journal }

// Append serializes one event and appends it to today's partition. The write
// is guarded by a file lock so concurrent processes cannot interleave inside
// a record; the line-oriented partition format is unchanged by the lock.
func (s *Store) Append(ev event.Event) error {
	eventsPath := filepath.Join(s.root, EventsDir)
	if err := os.MkdirAll(eventsPath, 0o755); err != nil {
		return err
	}

	lock := flock.New(filepath.Join(s.root, "append.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring append lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(filepath.Join(eventsPath, event.Today()+".jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	data, err := event.Encode(ev)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LoadAll reads every partition in date order and returns all parseable
// events sorted by timestamp ascending. The sort is stable, so events from
// the same second keep their append order. Malformed lines are skipped;
// corruption from a torn concurrent write costs only the colliding records.
func (s *Store) LoadAll() ([]event.Event, error) {
	eventsPath := filepath.Join(s.root, EventsDir)

	entries, err := os.ReadDir(eventsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".jsonl" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var events []event.Event
	skipped := 0
	for _, name := range files {
		f, err := os.Open(filepath.Join(eventsPath, name))
		if err != nil {
			return nil, err
		}
		// ReadBytes rather than a Scanner: records carry free-form notes
		// and may exceed any fixed token limit, and one oversized line
		// must not fail the whole load.
		r := bufio.NewReader(f)
		for {
			line, readErr := r.ReadBytes('\n')
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				if ev, err := event.Decode(trimmed); err != nil {
					skipped++
				} else {
					events = append(events, ev)
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				_ = f.Close()
				return nil, readErr
			}
		}
		_ = f.Close()
	}

	if skipped > 0 {
		s.journal.Printf("load: skipped %d malformed record(s)", skipped)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time().Before(events[j].Time())
	})
	return events, nil
}
