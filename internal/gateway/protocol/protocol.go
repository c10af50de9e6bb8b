// Package protocol defines the capability boundary between the session
// connection manager and the messaging-network client. The wire-level
// implementation (encryption, framing, multi-device sync) lives behind the
// Client interface; drivers register themselves by name so the production
// implementation is swappable with a test double.
package protocol

import (
	"context"
	"time"
)

// Identity describes the authenticated account behind a connection.
type Identity struct {
	ID   string `json:"id"`             // canonical account address
	Name string `json:"name,omitempty"` // display name, if the network reports one
}

// Receipt is the delivery acknowledgment returned by the network for a
// dispatched message.
type Receipt struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType identifies the kind of connection event emitted by a client.
type EventType int

const (
	// EventPairingCode carries a fresh out-of-band pairing payload. Emitted
	// whenever the network issues a new code for an unauthenticated device.
	EventPairingCode EventType = iota
	// EventConnected is emitted when the connection is authenticated and the
	// account identity becomes known.
	EventConnected
	// EventCredentials carries a snapshot of mutated authentication material
	// that must be persisted before the session can survive a restart.
	EventCredentials
	// EventDisconnected is emitted when the connection closes. LoggedOut
	// distinguishes a server-side logout from a transient failure.
	EventDisconnected
)

// Event is a single connection or credential change reported by a client.
// Fields other than Type are populated according to the event type.
type Event struct {
	Type        EventType
	PairingCode string    // EventPairingCode: raw payload to render for scanning
	Identity    *Identity // EventConnected: the authenticated account
	Credentials []byte    // EventCredentials: serialized material snapshot
	LoggedOut   bool      // EventDisconnected: the network invalidated the credentials
	Reason      string    // EventDisconnected: human-readable cause
}

// CredentialSource supplies the durable authentication material for one
// session. Implemented by the credential store; consumed by drivers.
type CredentialSource interface {
	// Load returns the persisted material, or nil if none exists yet.
	Load() ([]byte, error)
	// Save durably persists a new snapshot of the material.
	Save(material []byte) error
}

// Client is one live connection to the messaging network. Events are emitted
// in order on the channel returned by Events; the channel is closed when the
// client shuts down. Implementations must be safe for concurrent use.
type Client interface {
	// Connect starts the connection handshake. Pairing and authentication
	// progress is reported asynchronously through Events.
	Connect(ctx context.Context) error
	// Send dispatches a text message to the given address. Requires an
	// authenticated connection.
	Send(ctx context.Context, to Address, text string) (*Receipt, error)
	// Logout invalidates the credentials on the network side and closes the
	// connection.
	Logout(ctx context.Context) error
	// Identity returns the authenticated account, or nil if the connection
	// has not authenticated.
	Identity() *Identity
	// Events returns the ordered stream of connection events.
	Events() <-chan Event
	// Close tears down the connection without logging out. Credentials
	// remain valid for a later reconnect.
	Close() error
}

// DialConfig carries everything a driver needs to establish one session
// connection.
type DialConfig struct {
	SessionID   string
	Credentials CredentialSource
}

// Dialer creates clients. One Dialer instance serves all sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Client, error)
}
