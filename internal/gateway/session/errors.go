package session

import (
	"net/http"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetStatusCode(http.StatusInternalServerError)

	// ErrSessionNotFound is returned when an operation references a session
	// ID with no registry entry where one is required.
	ErrSessionNotFound apperrors.Error = ErrSessionError.New("session not found").SetStatusCode(http.StatusBadRequest)

	// ErrNotConnected is returned when an operation requiring authentication
	// is attempted on an unauthenticated or absent session.
	ErrNotConnected apperrors.Error = ErrSessionError.New("session is not authenticated").SetStatusCode(http.StatusBadRequest)

	// ErrInvalidRecipient is returned when a recipient address cannot be
	// normalized into the network's canonical form.
	ErrInvalidRecipient apperrors.Error = ErrSessionError.New("invalid recipient").SetStatusCode(http.StatusBadRequest)

	// ErrSendFailed is returned when the network reports a transport-level
	// failure during message dispatch.
	ErrSendFailed apperrors.Error = ErrSessionError.New("unable to send message").SetStatusCode(http.StatusBadGateway)

	// ErrConnectionFailed is returned when a new adapter cannot be dialed or
	// its handshake cannot be started.
	ErrConnectionFailed apperrors.Error = ErrSessionError.New("unable to establish connection").SetStatusCode(http.StatusInternalServerError)

	// ErrShuttingDown is returned when an operation arrives while the
	// manager is shutting down.
	ErrShuttingDown apperrors.Error = ErrSessionError.New("session manager is shutting down").SetStatusCode(http.StatusServiceUnavailable)
)
