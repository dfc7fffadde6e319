package ingest

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when no row matches a lookup.
var ErrNotFound = errors.New("not found")

// FetchError reports a network failure (StatusCode 0) or a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Network reports whether the failure happened before any HTTP status was received.
func (e *FetchError) Network() bool { return e.StatusCode == 0 }

// ParseError reports markup that could not be read.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DateParseError reports a date literal that matched a pattern but is not a valid date.
type DateParseError struct {
	Literal string
	Layout  string
	Err     error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parse date %q with layout %q: %v", e.Literal, e.Layout, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// SearchError reports a failed external search.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
