package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mtmon/internal/bus"
	"mtmon/internal/config"
	"mtmon/internal/events"
	"mtmon/internal/transport"
)

const (
	readTimeout      = 60 * time.Second
	writeTimeout     = 8 * time.Second
	pongWriteTimeout = 5 * time.Second
	maxFramePreview  = 160
)

// Status is the consumer-facing connection snapshot.
type Status struct {
	State             events.ConnectionState
	ReconnectAttempts int
	Subscriptions     []string
}

// Client owns one connection to the monitoring platform's realtime
// feed: lifecycle, reconnection, subscriptions, and message fan-out.
// One Client per app is a deployment choice; instances share nothing.
type Client struct {
	logger    *slog.Logger
	bus       bus.MessageBus
	transport transport.Transport
	endpoint  string
	backoff   *Backoff
	registry  *Registry
	router    *Router

	mu        sync.Mutex
	state     events.ConnectionState
	runCancel context.CancelFunc
	runDone   chan struct{}
}

func NewClient(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, cfg config.AppConfig) *Client {
	c := &Client{
		logger:    logger,
		bus:       b,
		transport: tr,
		endpoint:  cfg.Server.Endpoint(),
		backoff:   NewBackoff(cfg.Reconnect),
		registry:  NewRegistry(),
		state:     events.ConnectionStateDisconnected,
	}
	c.router = NewRouter(logger, b, c.sendPong)

	return c
}

// Connect starts the connection run loop. It is a no-op while a loop
// is already running, so at most one attempt is ever in flight. A
// manual connect after giving up starts over with zero attempts.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.runCancel != nil {
		c.mu.Unlock()
		c.logger.Debug("connect skipped: already running")

		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.runCancel = cancel
	c.runDone = done
	c.mu.Unlock()

	c.backoff.Reset()
	go c.run(runCtx, done)
}

// Disconnect deliberately shuts the connection down with the normal
// closure code, cancels any pending reconnect timer, and suppresses
// auto-reconnect. It waits for the run loop to stop.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.runCancel
	done := c.runDone
	c.runCancel = nil
	c.runDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	// Unblocks a reader stuck in ReadFrame and tells the server the
	// shutdown is deliberate.
	_ = c.transport.Close()
	<-done
}

// Close tears the client down: connection, pending timers, and all
// registered listeners are released.
func (c *Client) Close() {
	c.Disconnect()
	c.router.Clear()
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.runDone == done {
			c.runCancel = nil
			c.runDone = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			c.setState(events.ConnectionStateDisconnected, nil)

			return
		}

		c.setState(events.ConnectionStateConnecting, nil)
		if err := c.transport.Connect(ctx); err != nil {
			c.setState(events.ConnectionStateDisconnected, err)
			c.emitLifecycle(MsgDisconnected)
			if !c.delayRetry(ctx) {
				return
			}

			continue
		}

		c.backoff.Reset()
		c.setState(events.ConnectionStateConnected, nil)
		c.emitLifecycle(MsgConnected)
		c.reassertSubscriptions(ctx)

		err := c.runReader(ctx)
		_ = c.transport.Close()
		c.setState(events.ConnectionStateDisconnected, err)
		c.emitLifecycle(MsgDisconnected)

		if ctx.Err() != nil || transport.IsNormalClosure(err) {
			return
		}
		if !c.delayRetry(ctx) {
			return
		}
	}
}

// delayRetry schedules exactly one retry sleep. It returns false when
// the loop must stop: budget exhausted (gave up) or context cancelled.
func (c *Client) delayRetry(ctx context.Context) bool {
	delay, ok := c.backoff.Next()
	if !ok {
		c.logger.Error("reconnect attempts exhausted", "attempts", c.backoff.Attempts(), "endpoint", c.endpoint)
		c.emitGaveUp()

		return false
	}
	c.logger.Info("reconnect scheduled", "delay", delay, "attempt", c.backoff.Attempts())

	return sleepWithContext(ctx, delay)
}

func (c *Client) runReader(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		payload, err := c.transport.ReadFrame(readCtx)
		cancel()
		if err != nil {
			return err
		}

		c.bus.Publish(events.TopicRawFrameIn, events.RawFrame{Preview: framePreview(payload), Len: len(payload)})
		c.router.Dispatch(payload)
	}
}

// Subscribe registers a machine topic. When connected the subscribe
// request goes out immediately; otherwise it is deferred until the
// next (re)connect re-asserts the registry.
func (c *Client) Subscribe(machineID string) error {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return errors.New("machine id is required")
	}

	c.registry.Add(machineID)
	if !c.Connected() {
		c.logger.Debug("subscribe deferred until connect", "machine_id", machineID)

		return nil
	}

	frame, err := encodeSubscribe(machineID)
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}

	return c.write(frame, writeTimeout)
}

// Unsubscribe removes a machine topic. Removal is local and immediate;
// when disconnected no request is sent and that is not an error.
func (c *Client) Unsubscribe(machineID string) error {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return errors.New("machine id is required")
	}

	if !c.registry.Remove(machineID) {
		return nil
	}
	if !c.Connected() {
		return nil
	}

	frame, err := encodeUnsubscribe(machineID)
	if err != nil {
		return fmt.Errorf("encode unsubscribe: %w", err)
	}

	return c.write(frame, writeTimeout)
}

// Send marshals v and transmits it. It fails fast when not connected;
// the caller decides whether to queue or drop.
func (c *Client) Send(v any) error {
	if !c.Connected() {
		return errors.New("send failed: not connected")
	}

	frame, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode outgoing message: %w", err)
	}

	return c.write(frame, writeTimeout)
}

// RequestSubscriptions asks the server for its view of this client's
// active topics; the reply arrives as a subscriptions_list message.
func (c *Client) RequestSubscriptions() error {
	if !c.Connected() {
		return errors.New("request failed: not connected")
	}

	frame, err := encodeGetSubscriptions()
	if err != nil {
		return fmt.Errorf("encode get_subscriptions: %w", err)
	}

	return c.write(frame, writeTimeout)
}

// On registers a listener. Reserved types: MsgWildcard for every server
// message, MsgConnected/MsgDisconnected/MsgGaveUp for lifecycle.
func (c *Client) On(msgType string, fn Handler) (Handle, bool) {
	return c.router.On(msgType, fn)
}

func (c *Client) Off(h Handle) bool {
	return c.router.Off(h)
}

// Status returns the consumer-facing snapshot of connection state,
// reconnect attempts, and registered subscriptions.
func (c *Client) Status() Status {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	return Status{
		State:             state,
		ReconnectAttempts: c.backoff.Attempts(),
		Subscriptions:     c.registry.Snapshot(),
	}
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state == events.ConnectionStateConnected
}

// reassertSubscriptions re-sends a subscribe request for every topic in
// the registry. This is the repair step that makes the server's view
// match the registry after every reconnect.
func (c *Client) reassertSubscriptions(ctx context.Context) {
	for _, machineID := range c.registry.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		frame, err := encodeSubscribe(machineID)
		if err != nil {
			c.logger.Warn("encode subscribe failed", "machine_id", machineID, "error", err)

			continue
		}
		if err := c.write(frame, writeTimeout); err != nil {
			c.logger.Warn("re-subscribe failed", "machine_id", machineID, "error", err)
		}
	}
}

func (c *Client) sendPong() error {
	frame, err := encodePong(time.Now())
	if err != nil {
		return fmt.Errorf("encode pong: %w", err)
	}

	return c.write(frame, pongWriteTimeout)
}

func (c *Client) write(frame []byte, timeout time.Duration) error {
	writeCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.transport.WriteFrame(writeCtx, frame); err != nil {
		return err
	}
	c.bus.Publish(events.TopicRawFrameOut, events.RawFrame{Preview: framePreview(frame), Len: len(frame)})

	return nil
}

func (c *Client) setState(state events.ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	status := events.ConnectionStatus{
		State:             state,
		Endpoint:          c.endpoint,
		ReconnectAttempts: c.backoff.Attempts(),
		Timestamp:         time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	c.bus.Publish(events.TopicConnStatus, status)
}

// emitLifecycle delivers a local event to its typed listeners. The
// wildcard channel carries server messages only.
func (c *Client) emitLifecycle(msgType string) {
	raw, err := json.Marshal(map[string]any{
		"type":     msgType,
		"endpoint": c.endpoint,
	})
	if err != nil {
		return
	}
	c.router.DispatchLocal(Message{Type: msgType, Raw: raw})
}

func (c *Client) emitGaveUp() {
	attempts := c.backoff.Attempts()
	c.bus.Publish(events.TopicReconnectGaveUp, events.ReconnectGaveUp{
		Attempts:  attempts,
		Endpoint:  c.endpoint,
		Timestamp: time.Now(),
	})
	raw, err := json.Marshal(map[string]any{
		"type":     MsgGaveUp,
		"attempts": attempts,
		"endpoint": c.endpoint,
	})
	if err != nil {
		return
	}
	c.router.DispatchLocal(Message{Type: MsgGaveUp, Raw: raw})
}

func framePreview(payload []byte) string {
	if len(payload) <= maxFramePreview {
		return string(payload)
	}

	return string(payload[:maxFramePreview]) + "..."
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
