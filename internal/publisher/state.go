package publisher

import (
	"errors"
	"fmt"
	"log/slog"

	"crosspost/internal/models"
)

// UploadState tracks a video upload through a destination's pipeline.
type UploadState string

const (
	StateCreated    UploadState = "created"
	StateUploading  UploadState = "uploading"
	StateProcessing UploadState = "processing"
	StateReady      UploadState = "ready"
	StatePublished  UploadState = "published"
	StateError      UploadState = "error"
)

// ErrIllegalTransition is a programming error in an adapter.
var ErrIllegalTransition = errors.New("illegal upload state transition")

var transitions = map[UploadState][]UploadState{
	StateCreated:    {StateUploading},
	StateUploading:  {StateProcessing},
	StateProcessing: {StateReady, StateError},
	StateReady:      {StatePublished},
}

// Terminal reports whether no further transition is possible.
func (s UploadState) Terminal() bool {
	return s == StatePublished || s == StateError
}

// upload is the state of one video upload.
type upload struct {
	dest  models.Destination
	state UploadState
}

func newUpload(dest models.Destination) *upload {
	return &upload{dest: dest, state: StateCreated}
}

func (u *upload) advance(next UploadState) error {
	for _, allowed := range transitions[u.state] {
		if allowed == next {
			slog.Debug("upload state", "destination", u.dest, "from", u.state, "to", next)
			u.state = next
			return nil
		}
	}
	return fmt.Errorf("%s: %w: %s -> %s", u.dest, ErrIllegalTransition, u.state, next)
}

// fail moves a processing upload to the error state and returns the
// processing failure to report.
func (u *upload) fail(status, detail string) error {
	if err := u.advance(StateError); err != nil {
		return err
	}
	return &ProcessingError{Status: status, Detail: detail}
}
