package translate

import (
	"fmt"
	"strings"
)

// ResolutionError reports that no model identifier for a language pair could
// be loaded. Err is the last failure.
type ResolutionError struct {
	Source    string
	Target    string
	Attempted []string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no loadable model for %s->%s (tried %s): %v",
		e.Source, e.Target, strings.Join(e.Attempted, ", "), e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Detail returns the backend's message for the last failed attempt.
func (e *ResolutionError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// TranslationError wraps a backend failure during translation.
// Chunk is the zero-based chunk index, or -1 for single-string translation.
type TranslationError struct {
	ModelID string
	Chunk   int
	Chunks  int
	Err     error
}

func (e *TranslationError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("translate chunk %d/%d with %s: %v", e.Chunk+1, e.Chunks, e.ModelID, e.Err)
	}
	return fmt.Sprintf("translate with %s: %v", e.ModelID, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Detail returns the backend's message verbatim.
func (e *TranslationError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
