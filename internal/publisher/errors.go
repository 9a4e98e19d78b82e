package publisher

import (
	"context"
	"errors"
	"fmt"

	"crosspost/internal/credentials"
	"crosspost/internal/media"
	"crosspost/internal/models"
)

// SkipError means the destination's input prerequisites were not met.
// It is reported as skipped, never as failed.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// ProcessingError means the destination accepted an upload but reported
// that processing failed, or never finished within the polling budget.
type ProcessingError struct {
	Status string
	Detail string
}

func (e *ProcessingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("processing %s: %s", e.Status, e.Detail)
	}
	return "processing " + e.Status
}

// outcomeFromError classifies err into a per-destination outcome.
func outcomeFromError(dest models.Destination, err error) models.Outcome {
	var (
		skipErr  *SkipError
		authErr  *credentials.AuthError
		procErr  *ProcessingError
		mediaErr *media.MediaError
	)
	switch {
	case errors.As(err, &skipErr):
		return models.Skipped(dest, skipErr.Reason)
	case errors.As(err, &authErr):
		o := models.Failed(dest, models.KindAuth, authErr.Error())
		o.ReauthRequired = authErr.ReauthRequired
		return o
	case errors.As(err, &procErr):
		return models.Failed(dest, models.KindProcessing, procErr.Error())
	case errors.As(err, &mediaErr):
		return models.Failed(dest, models.KindMedia, mediaErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return models.Failed(dest, models.KindTransport, "timed out: "+err.Error())
	default:
		// TransportError and anything unclassified.
		return models.Failed(dest, models.KindTransport, err.Error())
	}
}
