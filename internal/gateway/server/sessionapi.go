package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/httpx"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/apikey"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/config"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
)

var validate = validator.New()

// CreateSessionRequest is the body for POST /api/session/create.
type CreateSessionRequest struct {
	SessionID   string `json:"sessionId" validate:"omitempty,max=128"`
	Description string `json:"description" validate:"omitempty,max=512"`
}

// CreateSessionRsp is the response for POST /api/session/create.
type CreateSessionRsp struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	APIKey    string `json:"apiKey"`
	Message   string `json:"message"`
}

// createSession provisions a session identity, issues an API key for it,
// and starts the connection attempt in the background. The session ID is
// generated when the caller does not supply one.
func (s *Server) createSession(r *http.Request) (*httpx.Response, error) {
	req := &CreateSessionRequest{}
	if r.ContentLength != 0 {
		if err := httpx.GetRequestData(r, req); err != nil {
			return nil, err
		}
		if err := validate.Struct(req); err != nil {
			return nil, httpx.ErrInvalidRequest(err.Error())
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	key, aerr := s.keys.Issue(sessionID, req.Description)
	if aerr != nil {
		return nil, aerr
	}

	// connection setup is asynchronous; callers poll the qr endpoint
	logger := log.Ctx(r.Context()).With().Str("session_id", sessionID).Logger()
	go func() {
		if _, aerr := s.manager.GetOrCreate(context.Background(), sessionID); aerr != nil {
			logger.Error().Err(aerr).Msg("unable to start session connection")
		}
	}()

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &CreateSessionRsp{
			Success:   true,
			SessionID: sessionID,
			APIKey:    key,
			Message:   "Session created. Use the API key for subsequent operations.",
		},
	}, nil
}

// QRRsp is the response for GET /api/session/qr.
type QRRsp struct {
	Success   bool               `json:"success"`
	Connected bool               `json:"connected"`
	User      *protocol.Identity `json:"user,omitempty"`
	QR        string             `json:"qr,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// getSessionQR returns the current pairing artifact for the caller's
// session, or the authenticated identity if pairing already completed.
// A session unseen by the registry is created on first access.
func (s *Server) getSessionQR(r *http.Request) (*httpx.Response, error) {
	sessionID := sessionFromContext(r.Context())

	if _, aerr := s.manager.GetOrCreate(r.Context(), sessionID); aerr != nil {
		return nil, aerr
	}

	status := s.manager.Status(sessionID)
	if status.Connected {
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response: &QRRsp{
				Success:   true,
				Connected: true,
				User:      status.User,
				Message:   "already authenticated",
			},
		}, nil
	}

	if status.QR == "" {
		// absorb the brief gap between adapter creation and the first
		// pairing-artifact emission: one bounded retry, then give up
		select {
		case <-time.After(config.Config().QRWaitDelay):
		case <-r.Context().Done():
			return nil, httpx.ErrRequestTimeout()
		}
		status = s.manager.Status(sessionID)
		if status.QR == "" && !status.Connected {
			return nil, httpx.ErrNotFound("QR code not yet available. Try again later.")
		}
		if status.Connected {
			return &httpx.Response{
				StatusCode: http.StatusOK,
				Response: &QRRsp{
					Success:   true,
					Connected: true,
					User:      status.User,
					Message:   "already authenticated",
				},
			}, nil
		}
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &QRRsp{
			Success: true,
			QR:      status.QR,
		},
	}, nil
}

// StatusRsp is the response for GET /api/session/status.
type StatusRsp struct {
	Success   bool               `json:"success"`
	Connected bool               `json:"connected"`
	User      *protocol.Identity `json:"user,omitempty"`
}

// getSessionStatus reports the derived connection state of the caller's
// session. A session unseen by the registry is created on first access;
// creation failures degrade to a disconnected report.
func (s *Server) getSessionStatus(r *http.Request) (*httpx.Response, error) {
	sessionID := sessionFromContext(r.Context())

	if _, aerr := s.manager.GetOrCreate(r.Context(), sessionID); aerr != nil {
		log.Ctx(r.Context()).Warn().Err(aerr).Msg("unable to start session connection")
	}

	status := s.manager.Status(sessionID)
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &StatusRsp{
			Success:   true,
			Connected: status.Connected,
			User:      status.User,
		},
	}, nil
}

// LogoutRsp is the response for POST /api/session/logout.
type LogoutRsp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// logoutSession terminates the caller's session and revokes the key used
// for the request, unless it is the admin key.
func (s *Server) logoutSession(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	sessionID := sessionFromContext(ctx)

	if aerr := s.manager.Logout(ctx, sessionID); aerr != nil {
		return nil, aerr
	}

	if key := keyFromContext(ctx); !s.keys.IsAdmin(key) {
		s.keys.Revoke(key)
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &LogoutRsp{
			Success: true,
			Message: "logged out from session",
		},
	}, nil
}

// SendRequest is the body for POST /api/send.
type SendRequest struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendRsp is the response for POST /api/send.
type SendRsp struct {
	Success bool              `json:"success"`
	Result  *protocol.Receipt `json:"result"`
}

// sendMessage dispatches a text message through the caller's session.
func (s *Server) sendMessage(r *http.Request) (*httpx.Response, error) {
	req := &SendRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(`parameters "to" and "message" are required`)
	}

	sessionID := sessionFromContext(r.Context())
	receipt, aerr := s.manager.Send(r.Context(), sessionID, req.To, req.Message)
	if aerr != nil {
		return nil, aerr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &SendRsp{
			Success: true,
			Result:  receipt,
		},
	}, nil
}

// KeysRsp is the response for GET /api/keys.
type KeysRsp struct {
	Success bool                     `json:"success"`
	Keys    map[string]apikey.Record `json:"keys"`
}

// listKeys returns all issued key records. Admin only.
func (s *Server) listKeys(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &KeysRsp{
			Success: true,
			Keys:    s.keys.List(),
		},
	}, nil
}
