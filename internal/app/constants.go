package app

const (
	Name             = "mtmon"
	ConfigFilename   = "config.json"
	DBFilename       = "events.db"
	LogFilename      = "mtmon.log"
	RecentAlarmsLoad = 100
)
