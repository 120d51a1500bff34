// Package editor drives one paper editing session: it owns the section
// store, runs AI actions through the backend, gates their results behind
// diff review, and debounces persistence. All entry points are safe for
// concurrent use; the session serializes state mutation behind one mutex.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/paperdesk/paperdesk/annotation"
	"github.com/paperdesk/paperdesk/diffreview"
	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

// Session errors.
var (
	// ErrActionInProgress is returned while an AI action or its review is
	// unresolved. One action at a time.
	ErrActionInProgress = errors.New("editor: an action is already in progress")

	// ErrNoDocument is returned when no document is open.
	ErrNoDocument = errors.New("editor: no document open")

	// ErrMissingPrompt is returned when an action needs a user instruction
	// and none was given.
	ErrMissingPrompt = errors.New("editor: action requires an instruction")

	// ErrSectionLocked rejects edits and actions on locked sections.
	ErrSectionLocked = errors.New("editor: section is locked")

	// ErrSectionEmpty rejects content-dependent actions on empty sections.
	ErrSectionEmpty = errors.New("editor: section has no content")
)

// DefaultActionTimeout bounds one backend generation call.
const DefaultActionTimeout = 5 * time.Minute

// ModelConfig is the model selection the user made in the editor. It is
// forwarded verbatim with every generation request.
type ModelConfig struct {
	APIKey      string
	Model       string
	Language    string
	Temperature float64
}

// Backend is the remote surface the session depends on. *client.Client
// implements it; tests substitute a fake.
type Backend interface {
	Structure(ctx context.Context) (*section.Graph, error)
	ListPapers(ctx context.Context) ([]paper.Info, error)
	LoadPaper(ctx context.Context, id string) (*paper.Document, error)
	SavePaper(ctx context.Context, doc *paper.Document) error
	CreatePaper(ctx context.Context) (*paper.Info, error)
	RenamePaper(ctx context.Context, id, name string) error
	DeletePaper(ctx context.Context, id string) error
	Generate(ctx context.Context, req *paper.GenerateRequest) (string, error)
}

// Session is one open editor.
type Session struct {
	graph   *section.Graph
	backend Backend
	review  *diffreview.Controller
	logger  *slog.Logger
	timeout time.Duration

	bridge *Bridge

	mu      sync.Mutex
	store   *section.Store
	model   ModelConfig
	docID   string
	docName string
	busy    bool

	statePath string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithActionTimeout bounds each generation call.
func WithActionTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithSaveInterval sets the persistence debounce window.
func WithSaveInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.bridge = NewBridge(d, s.persist)
	}
}

// WithStateFile sets where the last-open document id is remembered.
func WithStateFile(path string) SessionOption {
	return func(s *Session) {
		s.statePath = path
	}
}

// NewSession creates a session over the given structure and backend.
func NewSession(g *section.Graph, backend Backend, opts ...SessionOption) *Session {
	s := &Session{
		graph:   g,
		backend: backend,
		review:  diffreview.NewController(),
		logger:  slog.Default(),
		timeout: DefaultActionTimeout,
		store:   section.NewStore(g),
	}
	s.bridge = NewBridge(DefaultSaveInterval, s.persist)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetModel updates the model configuration used for generation requests.
func (s *Session) SetModel(cfg ModelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = cfg
}

// Busy reports whether an AI action is unresolved.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Section returns the current state of one section.
func (s *Session) Section(key string) (section.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(key)
}

// Document snapshots the open document. Returns nil when none is open.
func (s *Session) Document() *paper.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked()
}

func (s *Session) documentLocked() *paper.Document {
	if s.docID == "" {
		return nil
	}
	return &paper.Document{
		ID:           s.docID,
		DocumentName: s.docName,
		Sections:     s.store.Snapshot(),
	}
}

// Perform runs one AI action against a section. On success the returned
// review session holds the proposal; nothing is committed until the caller
// accepts it. On failure the section's pre-action state is restored.
func (s *Session) Perform(ctx context.Context, key string, action Action, prompt string) (*diffreview.Session, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("editor: unknown action %q", action)
	}
	if action.RequiresPrompt() && strings.TrimSpace(prompt) == "" {
		return nil, ErrMissingPrompt
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrActionInProgress
	}
	if s.docID == "" {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	st, err := s.store.Get(key)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.Status == section.StatusLocked {
		s.mu.Unlock()
		return nil, ErrSectionLocked
	}
	if action.RequiresContent() && strings.TrimSpace(st.Content) == "" {
		s.mu.Unlock()
		return nil, ErrSectionEmpty
	}

	original := st.Content
	if err := s.store.BeginGeneration(key); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.busy = true
	section.Evaluate(s.graph, s.store)

	req := &paper.GenerateRequest{
		APIKey:        s.model.APIKey,
		Model:         s.model.Model,
		Temperature:   s.model.Temperature,
		Language:      s.model.Language,
		TargetSection: key,
		PaperData:     s.documentLocked(),
		ActionType:    string(action),
		UserPrompt:    prompt,
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	proposed, err := s.backend.Generate(ctx, req)
	if err != nil {
		s.abort(key)
		return nil, fmt.Errorf("editor: %s on %s: %w", action, key, err)
	}

	review, err := s.review.Open(original, proposed,
		func() { s.commit(key, proposed) },
		func() { s.abort(key) },
	)
	if err != nil {
		// Cannot happen while busy gates actions, but fail safe.
		s.abort(key)
		return nil, err
	}

	s.logger.Debug("action awaiting review", "section", key, "action", action)
	return review, nil
}

// commit applies an accepted proposal and schedules a save.
func (s *Session) commit(key, content string) {
	s.mu.Lock()
	if err := s.store.SetContent(key, content); err != nil {
		s.logger.Error("commit failed", "section", key, "error", err)
	}
	if err := s.store.ResolveGeneration(key); err != nil {
		s.logger.Error("resolve failed", "section", key, "error", err)
	}
	s.busy = false
	section.Evaluate(s.graph, s.store)
	s.mu.Unlock()

	s.bridge.Schedule()
}

// abort restores the pre-action state after a failed or rejected action.
func (s *Session) abort(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ResolveGeneration(key); err != nil {
		s.logger.Error("rollback failed", "section", key, "error", err)
	}
	s.busy = false
	section.Evaluate(s.graph, s.store)
}

// EditContent applies a manual edit to a section and schedules a save.
func (s *Session) EditContent(key, content string) error {
	s.mu.Lock()
	if s.docID == "" {
		s.mu.Unlock()
		return ErrNoDocument
	}
	st, err := s.store.Get(key)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if st.Status == section.StatusLocked {
		s.mu.Unlock()
		return ErrSectionLocked
	}
	if st.Status == section.StatusGenerating {
		s.mu.Unlock()
		return ErrActionInProgress
	}
	if err := s.store.SetContent(key, content); err != nil {
		s.mu.Unlock()
		return err
	}
	section.Evaluate(s.graph, s.store)
	s.mu.Unlock()

	s.bridge.Schedule()
	return nil
}

// AnnotateSpan wraps content[start:end] of a section in an annotation.
func (s *Session) AnnotateSpan(key string, start, end int, comment string) error {
	return s.rewrite(key, func(content string) (string, error) {
		return annotation.Insert(content, start, end, comment)
	})
}

// EditAnnotation replaces the comment of an existing annotation token.
func (s *Session) EditAnnotation(key, rawToken, newComment string) error {
	return s.rewrite(key, func(content string) (string, error) {
		return annotation.EditComment(content, rawToken, newComment)
	})
}

// RemoveAnnotation strips one annotation token, keeping its span text.
func (s *Session) RemoveAnnotation(key, rawToken string) error {
	return s.rewrite(key, func(content string) (string, error) {
		return annotation.Remove(content, rawToken)
	})
}

// Annotations parses the annotation tokens of a section.
func (s *Session) Annotations(key string) ([]annotation.Token, error) {
	st, err := s.Section(key)
	if err != nil {
		return nil, err
	}
	return annotation.Parse(st.Content), nil
}

// rewrite runs a pure content transform under the edit rules.
func (s *Session) rewrite(key string, fn func(string) (string, error)) error {
	s.mu.Lock()
	st, err := s.store.Get(key)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if st.Status == section.StatusLocked {
		s.mu.Unlock()
		return ErrSectionLocked
	}
	if st.Status == section.StatusGenerating {
		s.mu.Unlock()
		return ErrActionInProgress
	}
	next, err := fn(st.Content)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.store.SetContent(key, next); err != nil {
		s.mu.Unlock()
		return err
	}
	section.Evaluate(s.graph, s.store)
	s.mu.Unlock()

	s.bridge.Schedule()
	return nil
}

// OpenDocument loads a paper and makes it the active document. Blocked
// while an action is unresolved. A pending save of the outgoing document
// is flushed first.
func (s *Session) OpenDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrActionInProgress
	}
	s.mu.Unlock()

	s.bridge.Flush()

	doc, err := s.backend.LoadPaper(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrActionInProgress
	}

	s.store.Load(coerceLoaded(doc.Sections))
	section.Evaluate(s.graph, s.store)
	s.docID = doc.ID
	s.docName = doc.DocumentName

	s.rememberDocument(doc.ID)
	s.logger.Info("document opened", "id", doc.ID, "name", doc.DocumentName)
	return nil
}

// coerceLoaded repairs states persisted mid-generation: a stored
// generating status means the process died before resolution, so the
// section falls back to what its content implies.
func coerceLoaded(states map[string]section.State) map[string]section.State {
	out := make(map[string]section.State, len(states))
	for key, st := range states {
		if st.Status == section.StatusGenerating {
			if strings.TrimSpace(st.Content) == "" {
				st.Status = section.StatusEmpty
			} else {
				st.Status = section.StatusCompleted
			}
		}
		out[key] = st
	}
	return out
}

// NewDocument creates a fresh paper on the backend and opens it.
func (s *Session) NewDocument(ctx context.Context) (*paper.Info, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrActionInProgress
	}
	s.mu.Unlock()

	info, err := s.backend.CreatePaper(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.OpenDocument(ctx, info.ID); err != nil {
		return nil, err
	}
	return info, nil
}

// RenameDocument sets the display name of the open document.
func (s *Session) RenameDocument(ctx context.Context, name string) error {
	s.mu.Lock()
	id := s.docID
	s.mu.Unlock()
	if id == "" {
		return ErrNoDocument
	}

	if err := s.backend.RenamePaper(ctx, id, name); err != nil {
		return err
	}

	s.mu.Lock()
	s.docName = name
	s.mu.Unlock()
	return nil
}

// DeleteDocument removes the open document and selects a replacement: the
// first remaining paper, or a freshly created one.
func (s *Session) DeleteDocument(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrActionInProgress
	}
	id := s.docID
	s.mu.Unlock()
	if id == "" {
		return ErrNoDocument
	}

	s.bridge.Stop()

	if err := s.backend.DeletePaper(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.docID = ""
	s.docName = ""
	s.store.Reset()
	s.mu.Unlock()

	papers, err := s.backend.ListPapers(ctx)
	if err != nil {
		return err
	}
	if len(papers) > 0 {
		return s.OpenDocument(ctx, papers[0].ID)
	}
	_, err = s.NewDocument(ctx)
	return err
}

// RestoreLastDocument opens the document from the previous run: the
// remembered id when it still exists, the first listed paper otherwise,
// or a new paper when the backend has none.
func (s *Session) RestoreLastDocument(ctx context.Context) error {
	papers, err := s.backend.ListPapers(ctx)
	if err != nil {
		return err
	}

	if last := s.lastDocument(); last != "" {
		for _, p := range papers {
			if p.ID == last {
				return s.OpenDocument(ctx, last)
			}
		}
	}
	if len(papers) > 0 {
		return s.OpenDocument(ctx, papers[0].ID)
	}
	_, err = s.NewDocument(ctx)
	return err
}

// Flush forces a pending save through, for shutdown.
func (s *Session) Flush() {
	s.bridge.Flush()
}

// persist is the bridge's save function.
func (s *Session) persist() {
	s.mu.Lock()
	doc := s.documentLocked()
	s.mu.Unlock()
	if doc == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.backend.SavePaper(ctx, doc); err != nil {
		s.logger.Error("save failed", "id", doc.ID, "error", err)
		return
	}
	s.logger.Debug("document saved", "id", doc.ID)
}
