package scraper

import "fmt"

// NetworkError is a transient fetch failure. The polling loop aborts
// the cycle and retries on the next interval.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the page was fetched but its markup no longer
// matches any known product layout. The cycle is skipped and the
// operator alerted; retrying will not help until the selectors are
// updated.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on %s: %s", e.URL, e.Reason)
}
