package pipeline

import (
	"fmt"
	"strings"
)

// ErrorCategory classifies asynchronous pipeline errors for diagnostics.
type ErrorCategory int

const (
	// ErrCategoryPipeline covers codec, plugin, negotiation and other graph failures.
	ErrCategoryPipeline ErrorCategory = iota
	// ErrCategoryNotFound means the media resource does not exist (bad path or URL).
	ErrCategoryNotFound
	// ErrCategoryResource covers other resource failures (permissions, read errors).
	ErrCategoryResource
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNotFound:
		return "not-found"
	case ErrCategoryResource:
		return "resource"
	default:
		return "pipeline"
	}
}

// ClassifyError categorizes a bus error by its message and debug string.
//
// Backends do not expose the error domain uniformly, so classification is
// keyword based. Not-found is checked first since it is also a resource error.
func ClassifyError(text, debug string) ErrorCategory {
	combined := strings.ToLower(text + " " + debug)

	if containsAny(combined, notFoundKeywords) {
		return ErrCategoryNotFound
	}
	if containsAny(combined, resourceKeywords) {
		return ErrCategoryResource
	}
	return ErrCategoryPipeline
}

var notFoundKeywords = []string{
	"not found",
	"no such file",
	"does not exist",
	"resource not found",
	"404",
}

var resourceKeywords = []string{
	"permission",
	"access denied",
	"could not open",
	"could not read",
	"resource",
	"read error",
	"busy",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// PlaybackError is an error reported asynchronously on the pipeline bus.
// It never invalidates the movie it belongs to.
type PlaybackError struct {
	Category ErrorCategory
	Source   string
	Message  string
	Debug    string
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("pipeline error [%s] from %s: %s", e.Category, e.Source, e.Message)
}

// Hint returns a user-facing explanation for the error category.
func (e *PlaybackError) Hint() string {
	switch e.Category {
	case ErrCategoryNotFound:
		return "the movie location could not be found; check the file path or URL for typos"
	case ErrCategoryResource:
		return "the movie could not be accessed; check permissions and that the resource is readable"
	default:
		return "the pipeline failed; this is often a missing codec or plugin for the movie's format"
	}
}
