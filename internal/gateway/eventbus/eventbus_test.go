package eventbus

import (
	"testing"
	"time"
)

func receiveOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestSubscribeAndPublish(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe("session.alice.connected", 1)
	defer unsubscribe()

	bus.Publish("session.alice.connected", "payload")

	event := receiveOne(t, ch)
	if event.Topic != "session.alice.connected" {
		t.Errorf("unexpected topic %s", event.Topic)
	}
	if event.Data != "payload" {
		t.Errorf("unexpected data %v", event.Data)
	}
}

func TestWildcardPattern(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe("session.*.*", 4)
	defer unsubscribe()

	bus.Publish("session.alice.qr", 1)
	bus.Publish("session.bob.connected", 2)
	bus.Publish("other.alice.qr", 3) // different root segment, must not match

	if got := receiveOne(t, ch).Topic; got != "session.alice.qr" {
		t.Errorf("unexpected first topic %s", got)
	}
	if got := receiveOne(t, ch).Topic; got != "session.bob.connected" {
		t.Errorf("unexpected second topic %s", got)
	}
	select {
	case event := <-ch:
		t.Errorf("unexpected extra event on topic %s", event.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe("session.alice.qr", 1)

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// publishing after unsubscribe must not panic
	bus.Publish("session.alice.qr", nil)
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := New()
	_, unsubscribe := bus.Subscribe("session.alice.qr", 1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish("session.alice.qr", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestShutdown(t *testing.T) {
	bus := New()
	ch, _ := bus.Subscribe("*", 1)

	bus.Shutdown()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after shutdown")
	}
}
