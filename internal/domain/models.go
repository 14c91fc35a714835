package domain

import "time"

// MachineStatus mirrors the platform's machine state enum.
type MachineStatus string

const (
	MachineStatusRunning     MachineStatus = "RUNNING"
	MachineStatusIdle        MachineStatus = "IDLE"
	MachineStatusMaintenance MachineStatus = "MAINTENANCE"
	MachineStatusError       MachineStatus = "ERROR"
	MachineStatusOffline     MachineStatus = "OFFLINE"
)

// AlarmLevel mirrors the platform's alarm severity enum.
type AlarmLevel string

const (
	AlarmLevelInfo     AlarmLevel = "INFO"
	AlarmLevelWarning  AlarmLevel = "WARNING"
	AlarmLevelError    AlarmLevel = "ERROR"
	AlarmLevelCritical AlarmLevel = "CRITICAL"
)

// Severe reports whether the level warrants an intrusive alert.
func (l AlarmLevel) Severe() bool {
	return l == AlarmLevelError || l == AlarmLevelCritical
}

// MachineData is one telemetry sample pushed for a subscribed machine.
type MachineData struct {
	MachineID        string    `json:"machine_id"`
	Timestamp        Timestamp `json:"timestamp"`
	Temperature      float64   `json:"temperature"`
	Vibration        float64   `json:"vibration"`
	Current          float64   `json:"current"`
	Speed            float64   `json:"speed"`
	Pressure         float64   `json:"pressure"`
	PositionX        *float64  `json:"position_x,omitempty"`
	PositionY        *float64  `json:"position_y,omitempty"`
	PositionZ        *float64  `json:"position_z,omitempty"`
	ToolWear         *float64  `json:"tool_wear,omitempty"`
	PowerConsumption *float64  `json:"power_consumption,omitempty"`
}

// Metrics returns the chartable variables of the sample keyed by name.
// Optional fields appear only when the sample carries them.
func (d MachineData) Metrics() map[string]float64 {
	metrics := map[string]float64{
		"temperature": d.Temperature,
		"vibration":   d.Vibration,
		"current":     d.Current,
		"speed":       d.Speed,
		"pressure":    d.Pressure,
	}
	if d.ToolWear != nil {
		metrics["tool_wear"] = *d.ToolWear
	}
	if d.PowerConsumption != nil {
		metrics["power_consumption"] = *d.PowerConsumption
	}

	return metrics
}

// Alarm is a threshold violation relayed by the server. Threshold logic
// itself stays server-side.
type Alarm struct {
	AlarmID        string     `json:"alarm_id"`
	MachineID      string     `json:"machine_id"`
	Timestamp      Timestamp  `json:"timestamp"`
	Level          AlarmLevel `json:"level"`
	Type           string     `json:"type"`
	Message        string     `json:"message"`
	Parameter      string     `json:"parameter"`
	Value          float64    `json:"value"`
	Threshold      float64    `json:"threshold"`
	IsAcknowledged bool       `json:"is_acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
}

// StatusChange reports a machine moving between states.
type StatusChange struct {
	MachineID string
	OldStatus MachineStatus
	NewStatus MachineStatus
	At        time.Time
}

// MaintenanceAlert carries server-scheduled maintenance info.
type MaintenanceAlert struct {
	MachineID string
	Info      map[string]any
	At        time.Time
}

// PerformanceReport carries periodic per-machine KPI summaries.
type PerformanceReport struct {
	MachineID string
	Report    map[string]any
	At        time.Time
}

// SystemNotification is a platform-wide broadcast message.
type SystemNotification struct {
	Title   string
	Message string
	Level   string
	At      time.Time
}

// ControlResponse reports the outcome of a control command.
type ControlResponse struct {
	MachineID string
	CommandID string
	Response  map[string]any
	At        time.Time
}
