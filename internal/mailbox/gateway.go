// Package mailbox provides access to a remote message store over IMAP.
// The Gateway interface is the seam the sync orchestrator depends on;
// IMAPGateway is the production implementation.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/mail-manager/internal/model"
)

// AuthError indicates that authentication failed for the mailbox.
// It is terminal: retrying without new credentials cannot succeed.
type AuthError struct {
	Username string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Username, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Gateway is the mailbox contract the orchestrator consumes. A Gateway
// holds one connection between Connect and Disconnect; all other calls
// require a prior successful Connect.
type Gateway interface {
	// Connect dials and authenticates. It must be called before any
	// fetch operation.
	Connect(ctx context.Context) error

	// ListIdentifiers returns the server identifiers of messages
	// received since the given time, oldest first.
	ListIdentifiers(ctx context.Context, since time.Time) ([]string, error)

	// FetchHeaders returns header-only views of the most recent
	// messages since the given time, up to limit.
	FetchHeaders(
		ctx context.Context, since time.Time, limit int,
	) ([]model.EmailHeader, error)

	// FetchByIdentifiers retrieves full message content for the given
	// identifiers. Identifiers the server no longer knows are skipped.
	FetchByIdentifiers(
		ctx context.Context, ids []string,
	) ([]model.IncomingEmail, error)

	// Disconnect releases the connection. Safe to call when not
	// connected.
	Disconnect() error
}
