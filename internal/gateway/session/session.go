package session

import (
	"context"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/credstore"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/pairing"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
)

// session wraps one live adapter. At most one session is registered per ID
// at any time; a replacement is only published after the prior one has been
// fully torn down.
type session struct {
	id     string
	client protocol.Client
	creds  *credstore.Handle
	logger zerolog.Logger
}

// create dials a new adapter for an unseen session ID and publishes it in
// the registry. Runs inside the per-id singleflight claim; the credential
// load and handshake happen without any registry lock held.
func (m *Manager) create(ctx context.Context, sessionID string) (*session, error) {
	handle, aerr := m.creds.Open(sessionID)
	if aerr != nil {
		return nil, aerr
	}

	client, err := m.dialer.Dial(ctx, protocol.DialConfig{
		SessionID:   sessionID,
		Credentials: handle,
	})
	if err != nil {
		return nil, ErrConnectionFailed.Msg(err.Error())
	}
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, ErrConnectionFailed.Msg(err.Error())
	}

	s := &session{
		id:     sessionID,
		client: client,
		creds:  handle,
		logger: m.logger.With().Str("session_id", sessionID).Logger(),
	}

	// publish step
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		client.Close()
		return nil, ErrShuttingDown
	}
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pump(s)

	s.logger.Info().Msg("session connection created")
	return s, nil
}

// pump processes one adapter's events in emission order and drives the
// session state machine. It exits when the adapter's event stream closes or
// a disconnect is handled; a disconnect always finishes its teardown before
// any reconnect is started.
func (m *Manager) pump(s *session) {
	defer m.wg.Done()
	for ev := range s.client.Events() {
		switch ev.Type {
		case protocol.EventPairingCode:
			artifact, err := pairing.RenderQR(ev.PairingCode)
			if err != nil {
				s.logger.Error().Err(err).Msg("unable to render pairing artifact")
				continue
			}
			m.artifacts.Put(s.id, artifact)
			s.logger.Info().Msg("pairing artifact updated")
			m.bus.Publish(Topic(s.id, EventKindQR), newLifecycleEvent(s.id, EventKindQR))

		case protocol.EventConnected:
			// the pairing artifact is no longer meaningful
			m.artifacts.Purge(s.id)
			s.logger.Info().Str("user", ev.Identity.ID).Msg("session authenticated")
			lev := newLifecycleEvent(s.id, EventKindConnected)
			lev.User = ev.Identity
			m.bus.Publish(Topic(s.id, EventKindConnected), lev)

		case protocol.EventCredentials:
			if err := s.creds.Save(ev.Credentials); err != nil {
				s.logger.Error().Err(err).Msg("unable to persist credentials")
			}

		case protocol.EventDisconnected:
			m.handleDisconnect(s, ev)
			return
		}
	}
}

// handleDisconnect applies the state machine's disconnect transitions. A
// logged-out cause terminates the session irreversibly; any other cause
// tears the adapter down and schedules a bounded reconnect with the same
// credentials.
func (m *Manager) handleDisconnect(s *session, ev protocol.Event) {
	current := m.removeIfCurrent(s)
	s.client.Close()
	if !current {
		// a replacement adapter already owns this ID
		return
	}

	if ev.LoggedOut {
		s.logger.Info().Str("reason", ev.Reason).Msg("session logged out by network, removing session")
		m.artifacts.Purge(s.id)
		if aerr := m.creds.Delete(s.id); aerr != nil {
			s.logger.Error().Err(aerr).Msg("unable to delete credentials")
		}
		lev := newLifecycleEvent(s.id, EventKindLoggedOut)
		lev.Reason = ev.Reason
		m.bus.Publish(Topic(s.id, EventKindLoggedOut), lev)
		return
	}

	s.logger.Warn().Str("reason", ev.Reason).Msg("connection closed, scheduling reconnect")
	lev := newLifecycleEvent(s.id, EventKindDisconnected)
	lev.Reason = ev.Reason
	m.bus.Publish(Topic(s.id, EventKindDisconnected), lev)

	m.wg.Add(1)
	go m.reconnect(s.id, s.logger)
}

// reconnect re-establishes a session after a transient disconnect, reusing
// the on-disk credentials. Attempts are bounded by MaxRetries with backoff
// starting at ReconnectInterval; exhausting them leaves the session
// deregistered until the next caller access recreates it.
func (m *Manager) reconnect(sessionID string, logger zerolog.Logger) {
	defer m.wg.Done()
	err := retry.Do(
		func() error {
			_, aerr := m.GetOrCreate(m.ctx, sessionID)
			if aerr != nil {
				return aerr
			}
			return nil
		},
		retry.Context(m.ctx),
		retry.Attempts(m.maxRetries),
		retry.Delay(m.reconnectInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Uint("attempt", n+1).Err(err).Msg("reconnect attempt failed")
		}),
	)
	if err != nil {
		logger.Error().Err(err).Uint("max_retries", m.maxRetries).Msg("giving up on reconnect")
	}
}
