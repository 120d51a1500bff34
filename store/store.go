// Package store persists papers as one JSON file per document under a
// data directory. A directory watcher invalidates the list cache when
// files change behind the server's back (manual edits, syncing tools).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

// ErrNotFound reports a paper id with no file behind it.
var ErrNotFound = errors.New("store: paper not found")

// InvalidIDError rejects ids that are not plain file-name material.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("store: invalid paper id %q", e.ID)
}

// Store is a directory of paper files.
type Store struct {
	dir    string
	graph  *section.Graph
	logger *slog.Logger

	mu      sync.Mutex
	list    []paper.Info // nil when the cache is invalid
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates the data directory if needed and starts the watcher.
func Open(dir string, g *section.Graph, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:    dir,
		graph:  g,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch data dir: %w", err)
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

// Close stops the watcher.
func (s *Store) Close() error {
	close(s.done)
	return s.watcher.Close()
}

// watch invalidates the list cache on any change to a paper file.
func (s *Store) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			s.mu.Lock()
			s.list = nil
			s.mu.Unlock()
			s.logger.Debug("paper list cache invalidated",
				"path", event.Name,
				"op", event.Op.String())
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// List returns the papers in the directory, sorted by name then id.
func (s *Store) List() ([]paper.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.list != nil {
		out := make([]paper.Info, len(s.list))
		copy(out, s.list)
		return out, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}

	infos := make([]paper.Info, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		doc, err := s.read(id)
		if err != nil {
			s.logger.Warn("skipping unreadable paper", "path", path, "error", err)
			continue
		}
		infos = append(infos, paper.Info{ID: id, DocumentName: doc.DocumentName})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].DocumentName != infos[j].DocumentName {
			return infos[i].DocumentName < infos[j].DocumentName
		}
		return infos[i].ID < infos[j].ID
	})

	s.list = infos
	out := make([]paper.Info, len(infos))
	copy(out, infos)
	return out, nil
}

// Create writes a fresh empty paper and returns its listing entry.
func (s *Store) Create() (*paper.Info, error) {
	id := uuid.New().String()
	name := "未命名论文-" + id[:8]

	doc := paper.New(id, name, s.graph)
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return &paper.Info{ID: id, DocumentName: name}, nil
}

// Load reads one paper by id.
func (s *Store) Load(id string) (*paper.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.read(id)
}

// Save writes a paper to its file.
func (s *Store) Save(doc *paper.Document) error {
	if err := validateID(doc.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode paper %s: %w", doc.ID, err)
	}

	// Write-then-rename so readers never see a partial file.
	path := s.path(doc.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write paper %s: %w", doc.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write paper %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	s.list = nil
	s.mu.Unlock()
	return nil
}

// Rename sets the display name of a paper.
func (s *Store) Rename(id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("store: document name must not be empty")
	}
	doc, err := s.Load(id)
	if err != nil {
		return err
	}
	doc.DocumentName = name
	return s.Save(doc)
}

// Delete removes a paper file.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete paper %s: %w", id, err)
	}

	s.mu.Lock()
	s.list = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*paper.Document, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read paper %s: %w", id, err)
	}

	var doc paper.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, err)
	}
	doc.ID = id
	return &doc, nil
}

// validateID rejects ids that could escape the data directory.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return &InvalidIDError{ID: id}
	}
	return nil
}
