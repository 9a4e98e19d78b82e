package models

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus is the result class of one publish attempt.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// ErrorKind classifies why an attempt did not succeed.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindTransport  ErrorKind = "transport"
	KindProcessing ErrorKind = "processing"
	KindMedia      ErrorKind = "media"
)

// Outcome records what happened when publishing to one destination.
type Outcome struct {
	Destination    Destination   `json:"destination"`
	Status         OutcomeStatus `json:"status"`
	Kind           ErrorKind     `json:"kind,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	RemoteID       string        `json:"remote_id,omitempty"`
	ReauthRequired bool          `json:"reauth_required,omitempty"`
}

// Succeeded builds a successful outcome carrying the remote post id.
func Succeeded(d Destination, remoteID string) Outcome {
	return Outcome{Destination: d, Status: OutcomeSucceeded, RemoteID: remoteID}
}

// Failed builds a failed outcome.
func Failed(d Destination, kind ErrorKind, reason string) Outcome {
	return Outcome{Destination: d, Status: OutcomeFailed, Kind: kind, Reason: reason}
}

// Skipped builds an outcome for a destination whose input prerequisites
// were not met. It is never counted as a failure.
func Skipped(d Destination, reason string) Outcome {
	return Outcome{Destination: d, Status: OutcomeSkipped, Kind: KindValidation, Reason: reason}
}

// FailedDestination pairs a destination with the reason it did not publish.
type FailedDestination struct {
	Destination    Destination `json:"destination"`
	Reason         string      `json:"reason"`
	ReauthRequired bool        `json:"reauth_required,omitempty"`
}

// Result aggregates every outcome of one submission.
type Result struct {
	PostID   uuid.UUID           `json:"post_id"`
	Done     []Destination       `json:"done"`
	Failed   []FailedDestination `json:"failed"`
	Skipped  []FailedDestination `json:"skipped"`
	Outcomes []Outcome           `json:"outcomes"`
}

// NewResult folds outcomes into the done/failed/skipped aggregate.
func NewResult(postID uuid.UUID, outcomes []Outcome) *Result {
	r := &Result{PostID: postID, Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSucceeded:
			r.Done = append(r.Done, o.Destination)
		case OutcomeSkipped:
			r.Skipped = append(r.Skipped, FailedDestination{Destination: o.Destination, Reason: o.Reason})
		default:
			r.Failed = append(r.Failed, FailedDestination{
				Destination:    o.Destination,
				Reason:         o.Reason,
				ReauthRequired: o.ReauthRequired,
			})
		}
	}
	return r
}

// Ack acknowledges a submission deferred to a later wall-clock time.
type Ack struct {
	PostID       uuid.UUID `json:"post_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Local        string    `json:"local"`
}
