package session

import (
	"strings"
	"time"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
)

// Lifecycle event kinds published on the event bus.
const (
	EventKindQR           = "qr"
	EventKindConnected    = "connected"
	EventKindDisconnected = "disconnected"
	EventKindLoggedOut    = "loggedout"
)

// LifecycleEvent is the payload published for every session state change.
type LifecycleEvent struct {
	SessionID string             `json:"sessionId"`
	Event     string             `json:"event"`
	User      *protocol.Identity `json:"user,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// AllSessionsPattern matches every lifecycle topic for every session.
const AllSessionsPattern = "session.*.*"

// Topic returns the bus topic for one session and event kind. Dots in the
// session ID are folded so an ID cannot change the topic segment count.
func Topic(sessionID, kind string) string {
	return "session." + strings.ReplaceAll(sessionID, ".", "-") + "." + kind
}

func newLifecycleEvent(sessionID, kind string) LifecycleEvent {
	return LifecycleEvent{
		SessionID: sessionID,
		Event:     kind,
		Timestamp: time.Now().UTC(),
	}
}
