package events

const (
	TopicConnStatus        = "conn.status"
	TopicReconnectGaveUp   = "conn.gaveup"
	TopicMachineData       = "machine.data"
	TopicAlarm             = "machine.alarm"
	TopicStatusChange      = "machine.status"
	TopicControlResponse   = "machine.control"
	TopicMaintenanceAlert  = "machine.maintenance"
	TopicPerformanceReport = "machine.performance"
	TopicSystemNotice      = "system.notification"
	TopicMetrics           = "system.metrics"
	TopicSubscriptionAck   = "subscription.ack"
	TopicRawFrameIn        = "raw.frame.in"
	TopicRawFrameOut       = "raw.frame.out"
)
