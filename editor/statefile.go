package editor

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultStateFile returns the per-user path remembering the last open
// document, or "" when no user config dir is resolvable.
func DefaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "paperdesk", "last-document")
}

// rememberDocument persists the last-open document id. Failures only cost
// the restore convenience, so they are logged and swallowed.
func (s *Session) rememberDocument(id string) {
	if s.statePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		s.logger.Debug("state file dir", "error", err)
		return
	}
	if err := os.WriteFile(s.statePath, []byte(id+"\n"), 0o644); err != nil {
		s.logger.Debug("state file write", "error", err)
	}
}

// lastDocument reads the remembered document id, "" when absent.
func (s *Session) lastDocument() string {
	if s.statePath == "" {
		return ""
	}
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
