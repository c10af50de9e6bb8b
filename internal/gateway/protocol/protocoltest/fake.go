// Package protocoltest provides an in-memory protocol driver for tests.
// The fake client implements the full protocol.Client contract and exposes
// Emit helpers so tests can script pairing, authentication, credential
// updates, and disconnects.
package protocoltest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
)

// Dialer is a protocol.Dialer that hands out fake clients and records every
// dial for later inspection.
type Dialer struct {
	mu       sync.Mutex
	clients  map[string][]*Client
	attempts int

	// DialErr, when set, makes every Dial fail with it.
	DialErr error
}

// NewDialer returns an empty fake dialer.
func NewDialer() *Dialer {
	return &Dialer{clients: make(map[string][]*Client)}
}

// Dial implements protocol.Dialer. The credential material present at dial
// time is captured on the returned client.
func (d *Dialer) Dial(_ context.Context, cfg protocol.DialConfig) (protocol.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	material, err := cfg.Credentials.Load()
	if err != nil {
		return nil, err
	}
	c := &Client{
		sessionID:  cfg.SessionID,
		creds:      cfg.Credentials,
		events:     make(chan protocol.Event, 16),
		DialedWith: material,
	}
	d.clients[cfg.SessionID] = append(d.clients[cfg.SessionID], c)
	return c, nil
}

// Attempts returns the total number of Dial calls, including failed ones.
func (d *Dialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// SetDialErr makes subsequent Dial calls fail with err; nil restores
// normal dialing.
func (d *Dialer) SetDialErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialErr = err
}

// DialCount returns how many clients have been dialed for the session.
func (d *Dialer) DialCount(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients[sessionID])
}

// Client returns the most recently dialed client for the session, or nil.
func (d *Dialer) Client(sessionID string) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.clients[sessionID]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Sent records one message dispatched through a fake client.
type Sent struct {
	To   protocol.Address
	Text string
}

// Client is a scriptable protocol.Client.
type Client struct {
	sessionID string
	creds     protocol.CredentialSource
	events    chan protocol.Event

	mu        sync.Mutex
	identity  *protocol.Identity
	closed    bool
	loggedOut bool
	sent      []Sent
	sendSeq   int

	// DialedWith is the credential material that existed when the client was
	// dialed; nil means the session started with empty credentials.
	DialedWith []byte

	// Error overrides for scripting failures.
	ConnectErr error
	SendErr    error
	LogoutErr  error
}

var _ protocol.Client = (*Client)(nil)

// Connect implements protocol.Client.
func (c *Client) Connect(_ context.Context) error {
	return c.ConnectErr
}

// Send implements protocol.Client. Messages are recorded for inspection.
func (c *Client) Send(_ context.Context, to protocol.Address, text string) (*protocol.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return nil, c.SendErr
	}
	c.sendSeq++
	c.sent = append(c.sent, Sent{To: to, Text: text})
	return &protocol.Receipt{
		MessageID: fmt.Sprintf("%s-msg-%d", c.sessionID, c.sendSeq),
		Timestamp: time.Now(),
	}, nil
}

// Logout implements protocol.Client.
func (c *Client) Logout(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LogoutErr != nil {
		return c.LogoutErr
	}
	c.loggedOut = true
	return nil
}

// Identity implements protocol.Client.
func (c *Client) Identity() *protocol.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Events implements protocol.Client.
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

// Close implements protocol.Client. Closes the event stream; safe to call
// more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LoggedOut reports whether Logout succeeded on this client.
func (c *Client) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// SentMessages returns a copy of all recorded messages.
func (c *Client) SentMessages() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// EmitPairingCode scripts a pairing-code event.
func (c *Client) EmitPairingCode(code string) {
	c.emit(protocol.Event{Type: protocol.EventPairingCode, PairingCode: code})
}

// EmitCredentials scripts a credential-mutation event.
func (c *Client) EmitCredentials(material []byte) {
	c.emit(protocol.Event{Type: protocol.EventCredentials, Credentials: material})
}

// EmitConnected scripts successful authentication: the identity becomes
// non-nil and a connected event is emitted.
func (c *Client) EmitConnected(id protocol.Identity) {
	c.mu.Lock()
	c.identity = &id
	c.mu.Unlock()
	c.emit(protocol.Event{Type: protocol.EventConnected, Identity: &id})
}

// EmitDisconnected scripts a connection-closed event. The identity is
// cleared; loggedOut marks the credentials as invalidated by the network.
func (c *Client) EmitDisconnected(loggedOut bool, reason string) {
	c.mu.Lock()
	c.identity = nil
	c.mu.Unlock()
	c.emit(protocol.Event{Type: protocol.EventDisconnected, LoggedOut: loggedOut, Reason: reason})
}

func (c *Client) emit(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}
