package notifications

// Payload is a generic user-facing notification payload. Urgent marks
// notifications that must cut through (critical alarms, gave-up).
type Payload struct {
	Title   string
	Content string
	Urgent  bool
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}
