package domain

import (
	"errors"
	"fmt"
)

// ErrStructureChanged signals that a page was fetched but the structural
// anchors the extractor relies on were absent. It is a warning, not a crash:
// the extractor returns zero candidates alongside it.
var ErrStructureChanged = errors.New("expected page structure not found")

// ErrSessionFinished is returned when mutating a finalized scrape session.
// This is a programming error in the caller, not a recoverable condition.
var ErrSessionFinished = errors.New("scrape session already finished")

// FetchCause classifies why a fetch ultimately failed.
type FetchCause string

const (
	FetchTimeout      FetchCause = "timeout"
	FetchConnection   FetchCause = "connection"
	FetchHTTPStatus   FetchCause = "http-status"
	FetchRedirectLoop FetchCause = "redirect-loop"
)

// FetchError is the terminal failure of a fetch after all retries.
type FetchError struct {
	URL      string
	Cause    FetchCause
	Status   int // last HTTP status, 0 if the request never completed
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d) after %d attempt(s)", e.URL, e.Cause, e.Status, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %s after %d attempt(s)", e.URL, e.Cause, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationReason classifies why a candidate record was rejected.
type ValidationReason string

const (
	ReasonMissingField ValidationReason = "missing-field"
	ReasonTypeMismatch ValidationReason = "type-mismatch"
	ReasonOutOfRange   ValidationReason = "out-of-range"
	ReasonUnknownEnum  ValidationReason = "unknown-enum-value"
)

// ValidationError rejects a single candidate record. Sibling records in the
// same batch are unaffected.
type ValidationError struct {
	Field  string
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("field %q: %s (%s)", e.Field, e.Reason, e.Detail)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// UpsertCause classifies storage-layer write failures.
type UpsertCause string

const (
	UpsertConstraint  UpsertCause = "constraint-violation"
	UpsertUnavailable UpsertCause = "storage-unavailable"
)

// UpsertError surfaces a storage failure for one record without masking the
// underlying driver error.
type UpsertError struct {
	Key   string
	Cause UpsertCause
	Err   error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %s: %s: %v", e.Key, e.Cause, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }
