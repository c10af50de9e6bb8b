// Package session implements the session connection manager. It owns the
// full lifecycle of each messaging session, from creation and pairing
// through reconnection and teardown, and multiplexes an arbitrary number of
// sessions inside one process.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/apperrors"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/credstore"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/eventbus"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/pairing"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
)

// Options configures a Manager.
type Options struct {
	Dialer            protocol.Dialer
	Credentials       *credstore.Store
	Artifacts         *pairing.Cache
	Bus               *eventbus.Bus
	ReconnectInterval time.Duration // base delay between reconnect attempts
	MaxRetries        uint          // maximum reconnect attempts per disconnect
	Logger            zerolog.Logger
}

// Manager owns the registry of live sessions. All access to the credential
// store and the pairing cache goes through it. Safe for concurrent use by
// inbound API requests and adapter event callbacks.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	group  singleflight.Group // serializes per-id adapter creation
	wg     sync.WaitGroup     // tracks event pump goroutines
	ctx    context.Context    // canceled on shutdown
	cancel context.CancelFunc

	dialer            protocol.Dialer
	creds             *credstore.Store
	artifacts         *pairing.Cache
	bus               *eventbus.Bus
	reconnectInterval time.Duration
	maxRetries        uint
	logger            zerolog.Logger
}

// NewManager creates a session connection manager. The dialer, credential
// store, artifact cache, and bus are required.
func NewManager(opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:          make(map[string]*session),
		ctx:               ctx,
		cancel:            cancel,
		dialer:            opts.Dialer,
		creds:             opts.Credentials,
		artifacts:         opts.Artifacts,
		bus:               opts.Bus,
		reconnectInterval: opts.ReconnectInterval,
		maxRetries:        opts.MaxRetries,
		logger:            opts.Logger,
	}
}

// GetOrCreate returns the live adapter for a session, creating one if none
// exists. Idempotent: concurrent calls for the same unseen ID result in
// exactly one adapter instantiation. Credential load and the network
// handshake run without holding the registry lock.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (protocol.Client, apperrors.Error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound.New("session id is required")
	}
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return s.client, nil
	}

	v, err, _ := m.group.Do(sessionID, func() (any, error) {
		// claim step: another caller may have published while we waited
		m.mu.RLock()
		s, ok := m.sessions[sessionID]
		m.mu.RUnlock()
		if ok {
			return s, nil
		}
		return m.create(ctx, sessionID)
	})
	if err != nil {
		if aerr, ok := err.(apperrors.Error); ok {
			return nil, aerr
		}
		return nil, ErrConnectionFailed.Msg(err.Error())
	}
	return v.(*session).client, nil
}

// Status reports the current derived state of a session. It never blocks on
// network I/O. An unregistered session reports connected=false along with
// any cached pairing artifact.
func (m *Manager) Status(sessionID string) Status {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	qr, _ := m.artifacts.Get(sessionID)
	if !ok {
		return Status{QR: qr}
	}
	user := s.client.Identity()
	return Status{
		Connected: user != nil,
		User:      user,
		QR:        qr,
	}
}

// Status is the caller-facing view of one session's derived state.
type Status struct {
	Connected bool
	User      *protocol.Identity // nil unless authenticated
	QR        string             // cached pairing artifact, empty if none
}

// Send dispatches a text message through an authenticated session. The
// recipient is normalized into the network's canonical address form.
func (m *Manager) Send(ctx context.Context, sessionID, to, text string) (*protocol.Receipt, apperrors.Error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || s.client.Identity() == nil {
		return nil, ErrNotConnected
	}

	addr, err := protocol.NormalizeAddress(to)
	if err != nil {
		return nil, ErrInvalidRecipient.Msg(err.Error())
	}

	receipt, err := s.client.Send(ctx, addr, text)
	if err != nil {
		return nil, ErrSendFailed.Msg(err.Error())
	}
	return receipt, nil
}

// Logout issues a protocol-level logout and removes every trace of the
// session: registry entry, pairing artifact, and on-disk credentials.
// Returns ErrSessionNotFound if the ID has no registry entry, so a second
// logout for the same ID fails.
func (m *Manager) Logout(ctx context.Context, sessionID string) apperrors.Error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	if err := s.client.Logout(ctx); err != nil {
		// removal proceeds regardless; the registry entry is already gone
		s.logger.Error().Err(err).Msg("protocol logout failed")
	}
	s.client.Close()
	m.artifacts.Purge(sessionID)
	if aerr := m.creds.Delete(sessionID); aerr != nil {
		return aerr
	}

	ev := newLifecycleEvent(sessionID, EventKindLoggedOut)
	m.bus.Publish(Topic(sessionID, EventKindLoggedOut), ev)
	return nil
}

// Shutdown closes all live adapters and waits for their event pumps to
// drain, or until the context expires. No credentials are deleted; sessions
// resume on the next start.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.client.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn().Msg("shutdown timed out waiting for session pumps")
	}
}

// removeIfCurrent deregisters s only if it is still the session registered
// under its ID. This guards against a stale adapter tearing down its
// replacement after a reconnect.
func (m *Manager) removeIfCurrent(s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
		return true
	}
	return false
}
