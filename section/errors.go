package section

import "fmt"

// ConfigError reports a malformed section structure. It is fatal at
// startup: a graph that fails validation is never used.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "section config: " + e.Message
	}
	return fmt.Sprintf("section config: %s: %s", e.Key, e.Message)
}

// UnknownSectionError reports an access to a key the store does not hold.
type UnknownSectionError struct {
	Key string
}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("unknown section %q", e.Key)
}
