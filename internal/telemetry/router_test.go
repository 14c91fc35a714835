package telemetry

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"mtmon/internal/bus"
	"mtmon/internal/domain"
	"mtmon/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) (*Router, bus.MessageBus, *int) {
	t.Helper()

	b := bus.New(discardLogger())
	t.Cleanup(b.Close)

	pongs := 0
	r := NewRouter(discardLogger(), b, func() error {
		pongs++
		return nil
	})

	return r, b, &pongs
}

func TestRouterPingShortCircuit(t *testing.T) {
	r, _, pongs := newTestRouter(t)

	var typedCalls, wildcardCalls int
	r.On(MsgPing, func(Message) { typedCalls++ })
	r.On(MsgWildcard, func(Message) { wildcardCalls++ })

	r.Dispatch([]byte(`{"type":"ping","timestamp":"2026-08-24T10:00:00"}`))

	if *pongs != 1 {
		t.Fatalf("pong sent %d times, want 1", *pongs)
	}
	if typedCalls != 0 || wildcardCalls != 0 {
		t.Fatalf("heartbeat reached listeners: typed=%d wildcard=%d", typedCalls, wildcardCalls)
	}
}

func TestRouterMalformedFrameDropped(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var calls int
	r.On(MsgWildcard, func(Message) { calls++ })

	r.Dispatch([]byte(`{"type":`))
	r.Dispatch([]byte(`{"machine_id":"M-001"}`))

	if calls != 0 {
		t.Fatalf("malformed frames delivered %d times, want 0", calls)
	}
}

func TestRouterListenerOrder(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var order []string
	r.On(MsgAlarm, func(Message) { order = append(order, "first") })
	r.On(MsgAlarm, func(Message) { order = append(order, "second") })
	r.On(MsgWildcard, func(Message) { order = append(order, "wildcard") })

	r.Dispatch([]byte(`{"type":"alarm","machine_id":"M-001","alarm":{"alarm_id":"A-1","machine_id":"M-001","level":"WARNING","message":"hot"}}`))

	want := []string{"first", "second", "wildcard"}
	if len(order) != len(want) {
		t.Fatalf("delivered %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivered %v, want %v", order, want)
		}
	}
}

func TestRouterPanicIsolation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var survived bool
	r.On(MsgAlarm, func(Message) { panic("listener bug") })
	r.On(MsgAlarm, func(Message) { survived = true })

	r.Dispatch([]byte(`{"type":"alarm","alarm":{"alarm_id":"A-1","level":"INFO"}}`))

	if !survived {
		t.Fatal("sibling listener did not run after a panic")
	}
}

func TestRouterOff(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var removed, kept int
	h, ok := r.On(MsgAlarm, func(Message) { removed++ })
	if !ok {
		t.Fatal("On returned false")
	}
	r.On(MsgAlarm, func(Message) { kept++ })

	if !r.Off(h) {
		t.Fatal("Off returned false for a live handle")
	}
	if r.Off(h) {
		t.Fatal("Off returned true for a dead handle")
	}

	r.Dispatch([]byte(`{"type":"alarm","alarm":{"alarm_id":"A-1","level":"INFO"}}`))

	if removed != 0 {
		t.Fatalf("removed listener ran %d times", removed)
	}
	if kept != 1 {
		t.Fatalf("surviving listener ran %d times, want 1", kept)
	}
}

func TestRouterUnknownTypeReachesWildcard(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var got Message
	r.On(MsgWildcard, func(msg Message) { got = msg })

	r.Dispatch([]byte(`{"type":"firmware_update","version":"2.1"}`))

	if got.Type != "firmware_update" {
		t.Fatalf("wildcard got type %q, want firmware_update", got.Type)
	}
}

func TestRouterListenerLimit(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for i := 0; i < maxListenersPerType; i++ {
		if _, ok := r.On(MsgAlarm, func(Message) {}); !ok {
			t.Fatalf("registration %d refused below the limit", i+1)
		}
	}
	if _, ok := r.On(MsgAlarm, func(Message) {}); ok {
		t.Fatal("registration above the limit accepted")
	}
}

func TestRouterDispatchLocalSkipsWildcard(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var typed, wildcard int
	r.On(MsgConnected, func(Message) { typed++ })
	r.On(MsgWildcard, func(Message) { wildcard++ })

	r.DispatchLocal(Message{Type: MsgConnected, Raw: []byte(`{"type":"connected"}`)})

	if typed != 1 {
		t.Fatalf("typed listener ran %d times, want 1", typed)
	}
	if wildcard != 0 {
		t.Fatalf("wildcard saw a local lifecycle message %d times", wildcard)
	}
}

func TestRouterPublishesMachineData(t *testing.T) {
	r, b, _ := newTestRouter(t)

	sub := b.Subscribe(events.TopicMachineData)
	defer b.Unsubscribe(sub, events.TopicMachineData)

	r.Dispatch([]byte(`{"type":"machine_data","machine_id":"M-001","timestamp":"2026-08-24T10:15:30.500000","data":{"temperature":72.5,"vibration":0.8,"current":12.1,"speed":1450,"pressure":5.2}}`))

	select {
	case raw := <-sub:
		data, ok := raw.(domain.MachineData)
		if !ok {
			t.Fatalf("published %T, want domain.MachineData", raw)
		}
		if data.MachineID != "M-001" {
			t.Fatalf("machine id = %q, want M-001", data.MachineID)
		}
		if data.Temperature != 72.5 {
			t.Fatalf("temperature = %v, want 72.5", data.Temperature)
		}
		if data.Timestamp.IsZero() {
			t.Fatal("envelope timestamp was not adopted")
		}
	case <-time.After(time.Second):
		t.Fatal("no machine data event published")
	}
}

func TestRouterPublishesSubscriptionAck(t *testing.T) {
	r, b, _ := newTestRouter(t)

	sub := b.Subscribe(events.TopicSubscriptionAck)
	defer b.Unsubscribe(sub, events.TopicSubscriptionAck)

	r.Dispatch([]byte(`{"type":"subscription_confirmed","machine_id":"M-007"}`))
	r.Dispatch([]byte(`{"type":"unsubscription_confirmed","machine_id":"M-007"}`))

	first := waitAck(t, sub)
	if !first.Subscribed || first.MachineID != "M-007" {
		t.Fatalf("first ack = %+v, want subscribed M-007", first)
	}
	second := waitAck(t, sub)
	if second.Subscribed {
		t.Fatalf("second ack = %+v, want unsubscribed", second)
	}
}

func waitAck(t *testing.T, sub bus.Subscription) events.SubscriptionAck {
	t.Helper()
	select {
	case raw := <-sub:
		ack, ok := raw.(events.SubscriptionAck)
		if !ok {
			t.Fatalf("published %T, want events.SubscriptionAck", raw)
		}
		return ack
	case <-time.After(time.Second):
		t.Fatal("no subscription ack published")
		return events.SubscriptionAck{}
	}
}
