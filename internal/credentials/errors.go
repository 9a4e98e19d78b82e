package credentials

import (
	"errors"
	"fmt"

	"crosspost/internal/models"
)

// ErrMissing is returned when no credential file exists for a destination.
var ErrMissing = errors.New("credentials: no credential on record")

// AuthError reports that a destination cannot be called because its
// credential is missing, expired, or could not be refreshed.
// ReauthRequired is set when no automatic recovery is possible and a human
// has to repeat the authorization flow.
type AuthError struct {
	Destination    models.Destination
	Reason         string
	ReauthRequired bool
	Err            error
}

func (e *AuthError) Error() string {
	msg := string(e.Destination) + ": "
	if e.ReauthRequired {
		msg += "re-authorization required: "
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func reauth(dest models.Destination, format string, args ...any) *AuthError {
	return &AuthError{Destination: dest, Reason: fmt.Sprintf(format, args...), ReauthRequired: true}
}
