package editor

import (
	"sync"
	"time"
)

// DefaultSaveInterval is the debounce window between an edit and the save
// it triggers. Edits inside the window coalesce into one save.
const DefaultSaveInterval = time.Second

// Bridge debounces persistence. Schedule arms (or re-arms) a timer; when
// it fires, the save function runs once with the then-current state. Flush
// runs a pending save immediately, for document switches and shutdown.
type Bridge struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	save  func()
}

// NewBridge creates a bridge invoking save after the given delay.
func NewBridge(delay time.Duration, save func()) *Bridge {
	if delay <= 0 {
		delay = DefaultSaveInterval
	}
	return &Bridge{delay: delay, save: save}
}

// Schedule arms the save timer, replacing any pending one.
func (b *Bridge) Schedule() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() {
		b.mu.Lock()
		b.timer = nil
		b.mu.Unlock()
		b.save()
	})
}

// Flush runs a pending save now. A no-op when nothing is scheduled.
func (b *Bridge) Flush() {
	b.mu.Lock()
	pending := b.timer != nil && b.timer.Stop()
	b.timer = nil
	b.mu.Unlock()
	if pending {
		b.save()
	}
}

// Stop discards any pending save without running it.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
