package telemetry

import (
	"encoding/json"
	"time"

	"mtmon/internal/domain"
)

// Server→client message types consumed by the router.
const (
	MsgWelcome               = "welcome"
	MsgMachineData           = "machine_data"
	MsgAlarm                 = "alarm"
	MsgStatusChange          = "status_change"
	MsgControlResponse       = "control_response"
	MsgSystemNotification    = "system_notification"
	MsgMaintenanceAlert      = "maintenance_alert"
	MsgPerformanceReport     = "performance_report"
	MsgSubscriptionConfirmed = "subscription_confirmed"
	MsgUnsubscribeConfirmed  = "unsubscription_confirmed"
	MsgSubscriptionsList     = "subscriptions_list"
	MsgRealTimeMetrics       = "real_time_metrics"
	MsgPing                  = "ping"
	MsgError                 = "error"
)

// Reserved listener channels. Wildcard receives every server message;
// the other three report local lifecycle transitions.
const (
	MsgWildcard     = "message"
	MsgConnected    = "connected"
	MsgDisconnected = "disconnected"
	MsgGaveUp       = "max_reconnect_attempts_reached"
)

// Message is one inbound frame handed to listeners. It is transient:
// routed once, then discarded.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the full frame into v for listeners that want the
// structured payload.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}

type subscribeFrame struct {
	Type      string `json:"type"`
	MachineID string `json:"machine_id"`
}

type pongFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type typeOnlyFrame struct {
	Type string `json:"type"`
}

func encodeSubscribe(machineID string) ([]byte, error) {
	return json.Marshal(subscribeFrame{Type: "subscribe", MachineID: machineID})
}

func encodeUnsubscribe(machineID string) ([]byte, error) {
	return json.Marshal(subscribeFrame{Type: "unsubscribe", MachineID: machineID})
}

func encodePong(now time.Time) ([]byte, error) {
	return json.Marshal(pongFrame{Type: "pong", Timestamp: now.Format(time.RFC3339Nano)})
}

func encodeGetSubscriptions() ([]byte, error) {
	return json.Marshal(typeOnlyFrame{Type: "get_subscriptions"})
}

// Inbound frame envelopes, shaped after the platform server's payloads.

type machineDataFrame struct {
	MachineID string             `json:"machine_id"`
	Data      domain.MachineData `json:"data"`
	Timestamp domain.Timestamp   `json:"timestamp"`
}

type alarmFrame struct {
	MachineID string           `json:"machine_id"`
	Alarm     domain.Alarm     `json:"alarm"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

type statusChangeFrame struct {
	MachineID string               `json:"machine_id"`
	OldStatus domain.MachineStatus `json:"old_status"`
	NewStatus domain.MachineStatus `json:"new_status"`
	Timestamp domain.Timestamp     `json:"timestamp"`
}

type controlResponseFrame struct {
	MachineID string           `json:"machine_id"`
	CommandID string           `json:"command_id"`
	Response  map[string]any   `json:"response"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

type systemNotificationFrame struct {
	Notification struct {
		Title   string `json:"title"`
		Message string `json:"message"`
		Level   string `json:"level"`
	} `json:"notification"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

type maintenanceAlertFrame struct {
	MachineID       string           `json:"machine_id"`
	MaintenanceInfo map[string]any   `json:"maintenance_info"`
	Timestamp       domain.Timestamp `json:"timestamp"`
}

type performanceReportFrame struct {
	MachineID string           `json:"machine_id"`
	Report    map[string]any   `json:"report"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

type subscriptionAckFrame struct {
	MachineID string           `json:"machine_id"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

type subscriptionsListFrame struct {
	Subscriptions []string `json:"subscriptions"`
}

type metricsFrame struct {
	Metrics   map[string]any   `json:"metrics"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

type errorFrame struct {
	Message string `json:"message"`
}

type welcomeFrame struct {
	Message string `json:"message"`
}
