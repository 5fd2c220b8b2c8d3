package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionStatus is the rolled-up result of one pipeline run.
type SessionStatus string

const (
	StatusPending SessionStatus = "pending"
	StatusSuccess SessionStatus = "success"
	StatusPartial SessionStatus = "partial"
	StatusFailure SessionStatus = "failure"
)

// OutcomeKind is the result of one source within a run. A source that fetched
// and parsed fine but produced zero valid records is "empty" rather than a
// hard success or failure; the rollup policy decides which way it counts.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeEmpty   OutcomeKind = "empty"
	OutcomeFailure OutcomeKind = "failure"
)

// SourceOutcome holds the per-source counters for one run.
type SourceOutcome struct {
	SourceID string      `json:"source_id"`
	Kind     OutcomeKind `json:"kind"`
	Fetched  int         `json:"fetched"`
	Valid    int         `json:"valid"`
	Rejected int         `json:"rejected"`
	Stored   int         `json:"stored"`
	Error    string      `json:"error,omitempty"`
}

// OutcomeList stores the per-source outcomes in SQLite as a JSON column.
type OutcomeList []SourceOutcome

func (l OutcomeList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *OutcomeList) Scan(value any) error {
	if value == nil {
		*l = OutcomeList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("failed to scan OutcomeList")
	}
}

// RollupPolicy controls how per-source outcomes aggregate into a session
// status. The upstream site regularly publishes warning pages with no current
// warnings, so by default "empty" counts toward success.
type RollupPolicy struct {
	EmptyIsFailure bool
}

// ScrapeSession records one execution of the pipeline across all sources.
// It is created pending, accumulates outcomes, and is frozen by Finish.
type ScrapeSession struct {
	bun.BaseModel `bun:"table:scrape_sessions,alias:ss"`

	ID         string        `bun:"id,pk" json:"id"`
	StartedAt  time.Time     `bun:"started_at,notnull" json:"started_at"`
	FinishedAt time.Time     `bun:"finished_at,nullzero" json:"finished_at,omitzero"`
	Status     SessionStatus `bun:"status,notnull" json:"status"`
	Outcomes   OutcomeList   `bun:"outcomes,type:json" json:"outcomes"`
}

// NewScrapeSession starts a pending session for the given source ids.
func NewScrapeSession() *ScrapeSession {
	return &ScrapeSession{
		ID:        uuid.NewString(),
		StartedAt: clock.Now().UTC(),
		Status:    StatusPending,
	}
}

// RecordOutcome appends one source's result. Calling it on a finished
// session is rejected.
func (s *ScrapeSession) RecordOutcome(o SourceOutcome) error {
	if s.Status != StatusPending {
		return ErrSessionFinished
	}
	s.Outcomes = append(s.Outcomes, o)
	return nil
}

// Finish freezes the session: sets the end timestamp and computes the
// overall status from the recorded outcomes. A second call is an error.
func (s *ScrapeSession) Finish(policy RollupPolicy) error {
	if s.Status != StatusPending {
		return ErrSessionFinished
	}
	s.FinishedAt = clock.Now().UTC()
	s.Status = rollup(s.Outcomes, policy)
	return nil
}

// rollup applies the status invariant: failure iff every source failed,
// success iff every source succeeded, partial otherwise.
func rollup(outcomes []SourceOutcome, policy RollupPolicy) SessionStatus {
	if len(outcomes) == 0 {
		return StatusFailure
	}

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		kind := o.Kind
		if kind == OutcomeEmpty {
			if policy.EmptyIsFailure {
				kind = OutcomeFailure
			} else {
				kind = OutcomeSuccess
			}
		}
		if kind == OutcomeFailure {
			failed++
		} else {
			succeeded++
		}
	}

	switch {
	case failed == 0:
		return StatusSuccess
	case succeeded == 0:
		return StatusFailure
	default:
		return StatusPartial
	}
}
