package telemetry

import (
	"encoding/json"
	"log/slog"
	"sync"

	"mtmon/internal/bus"
	"mtmon/internal/domain"
	"mtmon/internal/events"
)

// Safety bound per listener channel; registrations past it are refused.
const maxListenersPerType = 64

// Handler receives one classified inbound message.
type Handler func(msg Message)

// Handle identifies a registered listener for removal.
type Handle struct {
	msgType string
	id      uint64
}

type listenerEntry struct {
	id uint64
	fn Handler
}

// Router classifies each inbound frame by its type tag and fans it out
// to the listeners registered for that type, then to the wildcard
// channel. Heartbeats are answered directly and never reach listeners.
type Router struct {
	logger   *slog.Logger
	bus      bus.MessageBus
	sendPong func() error

	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]listenerEntry
}

func NewRouter(logger *slog.Logger, b bus.MessageBus, sendPong func() error) *Router {
	return &Router{
		logger:    logger,
		bus:       b,
		sendPong:  sendPong,
		listeners: make(map[string][]listenerEntry),
	}
}

// On registers a listener for one message type (or MsgWildcard) and
// returns a handle for Off. Listeners run in registration order.
func (r *Router) On(msgType string, fn Handler) (Handle, bool) {
	if msgType == "" || fn == nil {
		return Handle{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.listeners[msgType]) >= maxListenersPerType {
		r.logger.Error("listener limit reached", "type", msgType, "limit", maxListenersPerType)

		return Handle{}, false
	}

	r.nextID++
	id := r.nextID
	r.listeners[msgType] = append(r.listeners[msgType], listenerEntry{id: id, fn: fn})

	return Handle{msgType: msgType, id: id}, true
}

// Off removes the addressed listener; other listeners on the same
// channel are unaffected.
func (r *Router) Off(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.listeners[h.msgType]
	for i, entry := range entries {
		if entry.id == h.id {
			r.listeners[h.msgType] = append(entries[:i:i], entries[i+1:]...)

			return true
		}
	}

	return false
}

// Clear drops every registered listener. Part of client teardown.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = make(map[string][]listenerEntry)
}

// Dispatch parses one wire frame and routes it. A malformed frame is
// logged and dropped; it never propagates an error to the reader.
func (r *Router) Dispatch(raw []byte) {
	var envelope typeOnlyFrame
	if err := json.Unmarshal(raw, &envelope); err != nil {
		r.logger.Warn("drop malformed frame", "len", len(raw), "error", err)

		return
	}
	if envelope.Type == "" {
		r.logger.Warn("drop frame without type tag", "len", len(raw))

		return
	}

	// Heartbeat short-circuit: reply, never forward.
	if envelope.Type == MsgPing {
		if err := r.sendPong(); err != nil {
			r.logger.Warn("pong send failed", "error", err)
		}

		return
	}

	msg := Message{Type: envelope.Type, Raw: raw}
	r.classify(msg)
	r.deliver(msg, true)
}

// DispatchLocal routes a client-generated lifecycle message to its
// typed listeners only; the wildcard channel carries server messages.
func (r *Router) DispatchLocal(msg Message) {
	r.deliver(msg, false)
}

func (r *Router) deliver(msg Message, wildcard bool) {
	r.mu.Lock()
	typed := append([]listenerEntry(nil), r.listeners[msg.Type]...)
	var wild []listenerEntry
	if wildcard {
		wild = append([]listenerEntry(nil), r.listeners[MsgWildcard]...)
	}
	r.mu.Unlock()

	for _, entry := range typed {
		r.invoke(entry, msg)
	}
	for _, entry := range wild {
		r.invoke(entry, msg)
	}
}

// invoke isolates listener failures: a panicking handler is logged and
// does not prevent sibling listeners from running.
func (r *Router) invoke(entry listenerEntry, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked", "type", msg.Type, "listener_id", entry.id, "panic", rec)
		}
	}()
	entry.fn(msg)
}

// classify decodes known payloads and republishes them as typed bus
// events for decoupled consumers (series buffers, notifications,
// event log). Decode failures drop the bus event, not the dispatch.
func (r *Router) classify(msg Message) {
	switch msg.Type {
	case MsgWelcome:
		var frame welcomeFrame
		if err := msg.Decode(&frame); err == nil {
			r.logger.Info("server welcome", "message", frame.Message)
		}
	case MsgMachineData:
		var frame machineDataFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode machine_data failed", "error", err)

			return
		}
		data := frame.Data
		if data.MachineID == "" {
			data.MachineID = frame.MachineID
		}
		if data.Timestamp.IsZero() {
			data.Timestamp = frame.Timestamp
		}
		r.bus.Publish(events.TopicMachineData, data)
	case MsgAlarm:
		var frame alarmFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode alarm failed", "error", err)

			return
		}
		alarm := frame.Alarm
		if alarm.MachineID == "" {
			alarm.MachineID = frame.MachineID
		}
		if alarm.Timestamp.IsZero() {
			alarm.Timestamp = frame.Timestamp
		}
		r.bus.Publish(events.TopicAlarm, alarm)
	case MsgStatusChange:
		var frame statusChangeFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode status_change failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicStatusChange, domain.StatusChange{
			MachineID: frame.MachineID,
			OldStatus: frame.OldStatus,
			NewStatus: frame.NewStatus,
			At:        frame.Timestamp.OrNow(),
		})
	case MsgControlResponse:
		var frame controlResponseFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode control_response failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicControlResponse, domain.ControlResponse{
			MachineID: frame.MachineID,
			CommandID: frame.CommandID,
			Response:  frame.Response,
			At:        frame.Timestamp.OrNow(),
		})
	case MsgSystemNotification:
		var frame systemNotificationFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode system_notification failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicSystemNotice, domain.SystemNotification{
			Title:   frame.Notification.Title,
			Message: frame.Notification.Message,
			Level:   frame.Notification.Level,
			At:      frame.Timestamp.OrNow(),
		})
	case MsgMaintenanceAlert:
		var frame maintenanceAlertFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode maintenance_alert failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicMaintenanceAlert, domain.MaintenanceAlert{
			MachineID: frame.MachineID,
			Info:      frame.MaintenanceInfo,
			At:        frame.Timestamp.OrNow(),
		})
	case MsgPerformanceReport:
		var frame performanceReportFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode performance_report failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicPerformanceReport, domain.PerformanceReport{
			MachineID: frame.MachineID,
			Report:    frame.Report,
			At:        frame.Timestamp.OrNow(),
		})
	case MsgSubscriptionConfirmed, MsgUnsubscribeConfirmed:
		var frame subscriptionAckFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode subscription ack failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicSubscriptionAck, events.SubscriptionAck{
			MachineID:  frame.MachineID,
			Subscribed: msg.Type == MsgSubscriptionConfirmed,
			Timestamp:  frame.Timestamp.OrNow(),
		})
	case MsgSubscriptionsList:
		var frame subscriptionsListFrame
		if err := msg.Decode(&frame); err == nil {
			r.logger.Info("server subscriptions", "machines", frame.Subscriptions)
		}
	case MsgRealTimeMetrics:
		var frame metricsFrame
		if err := msg.Decode(&frame); err != nil {
			r.logger.Warn("decode real_time_metrics failed", "error", err)

			return
		}
		r.bus.Publish(events.TopicMetrics, frame.Metrics)
	case MsgError:
		var frame errorFrame
		if err := msg.Decode(&frame); err == nil {
			r.logger.Warn("server error", "message", frame.Message)
		}
	default:
		// Unknown types are tolerated; wildcard listeners still see them.
		r.logger.Debug("unknown message type", "type", msg.Type)
	}
}
