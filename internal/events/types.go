package events

import "time"

// ConnectionState describes the client lifecycle state shown to consumers.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot of current client status.
type ConnectionStatus struct {
	State             ConnectionState
	Err               string
	Endpoint          string
	ReconnectAttempts int
	Timestamp         time.Time
}

// ReconnectGaveUp is published once when the retry budget is exhausted.
// No further automatic attempts happen until a manual connect.
type ReconnectGaveUp struct {
	Attempts  int
	Endpoint  string
	Timestamp time.Time
}

// SubscriptionAck reports a server subscribe/unsubscribe confirmation.
type SubscriptionAck struct {
	MachineID  string
	Subscribed bool
	Timestamp  time.Time
}

// RawFrame carries frame diagnostics for debug/log views.
type RawFrame struct {
	Preview string
	Len     int
}
