// Package webhook forwards session lifecycle events to an external HTTP
// endpoint. The notifier subscribes to the event bus and POSTs each event
// as JSON, retrying transient delivery failures with backoff.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/eventbus"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/session"
)

const (
	deliveryTimeout  = 10 * time.Second
	deliveryAttempts = 3
	deliveryDelay    = time.Second
	eventBuffer      = 64
)

// Notifier delivers session lifecycle events to a configured URL.
type Notifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	events <-chan eventbus.Event
	unsub  func()
	wg     sync.WaitGroup
}

// New subscribes a notifier to all session lifecycle topics on the bus.
// Call Start to begin delivery and Stop to drain and unsubscribe.
func New(url string, bus *eventbus.Bus, logger zerolog.Logger) *Notifier {
	events, unsub := bus.Subscribe(session.AllSessionsPattern, eventBuffer)
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: logger.With().Str("component", "webhook").Logger(),
		events: events,
		unsub:  unsub,
	}
}

// Start launches the delivery loop.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case ev, ok := <-n.events:
				if !ok {
					return
				}
				n.deliver(ctx, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes from the bus and waits for in-flight deliveries.
func (n *Notifier) Stop() {
	n.unsub()
	n.wg.Wait()
}

// deliver POSTs one event payload, retrying on failure. Undeliverable
// events are logged and dropped; delivery never feeds back into session
// state.
func (n *Notifier) deliver(ctx context.Context, ev eventbus.Event) {
	body, err := json.Marshal(ev.Data)
	if err != nil {
		n.logger.Error().Err(err).Str("topic", ev.Topic).Msg("unable to encode event")
		return
	}

	err = retry.Do(
		func() error {
			return n.post(ctx, body)
		},
		retry.Context(ctx),
		retry.Attempts(deliveryAttempts),
		retry.Delay(deliveryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		n.logger.Warn().Err(err).Str("topic", ev.Topic).Msg("webhook delivery failed, dropping event")
	}
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, rsp.Body)
		rsp.Body.Close()
	}()
	if rsp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", rsp.StatusCode)
	}
	return nil
}
