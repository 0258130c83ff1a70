package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnknownUser = errors.New("unknown user")

// Verifier is the external identity service contract: it resolves user
// references before they are bound to a session. Participant authorization
// itself stays inside the engine, which checks callers against the session's
// buyer/seller pair.
type Verifier interface {
	VerifyUser(ctx context.Context, userID uuid.UUID) error
}
