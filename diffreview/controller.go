package diffreview

import (
	"errors"
	"sync"
)

// ErrReviewInProgress is returned by Open while another session is live.
// The editor must fully resolve one review before starting another.
var ErrReviewInProgress = errors.New("diffreview: a review session is already open")

// Controller owns at most one live review session. It holds no global
// state — construct one per editor session and tear it down with it.
type Controller struct {
	mu      sync.Mutex
	session *Session
}

// NewController creates an idle controller.
func NewController() *Controller {
	return &Controller{}
}

// Open computes the diff between original and proposed and starts a review
// session. onAccept and onReject fire exactly once, on resolution; the
// content commit lives in the accept callback — the diff layer never
// writes into the section store itself.
func (c *Controller) Open(original, proposed string, onAccept, onReject func()) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil, ErrReviewInProgress
	}

	s := &Session{
		controller: c,
		original:   original,
		proposed:   proposed,
		rows:       Compare(original, proposed),
		onAccept:   onAccept,
		onReject:   onReject,
	}
	c.session = s
	return s, nil
}

// Active reports whether a review session is currently open.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Session is one ephemeral review of a proposed rewrite. It exists only
// until Accept or Reject; afterwards every call is a no-op.
type Session struct {
	controller *Controller
	original   string
	proposed   string
	rows       []Row
	onAccept   func()
	onReject   func()
	resolved   bool
}

// Rows returns the aligned diff rows for display.
func (s *Session) Rows() []Row { return s.rows }

// Original returns the pre-action content under review.
func (s *Session) Original() string { return s.original }

// Proposed returns the AI-proposed content under review.
func (s *Session) Proposed() string { return s.proposed }

// Accept resolves the session in favor of the proposal.
func (s *Session) Accept() { s.resolve(true) }

// Reject resolves the session keeping the original. Closing the review
// without a decision takes this path too.
func (s *Session) Reject() { s.resolve(false) }

func (s *Session) resolve(accepted bool) {
	s.controller.mu.Lock()
	if s.resolved {
		s.controller.mu.Unlock()
		return
	}
	s.resolved = true
	s.controller.session = nil
	s.controller.mu.Unlock()

	// Callbacks run outside the lock; they may open a follow-up session.
	if accepted {
		if s.onAccept != nil {
			s.onAccept()
		}
	} else if s.onReject != nil {
		s.onReject()
	}
}
