package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mtmon/internal/bus"
	"mtmon/internal/config"
	"mtmon/internal/domain"
	"mtmon/internal/events"
	"mtmon/internal/notifications"
)

// NotificationService listens to bus events and emits user-facing
// notifications. A transient drop and an exhausted reconnect budget
// are deliberately kept apart: the latter is urgent and persistent.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    events.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	alarmSub := s.bus.Subscribe(events.TopicAlarm)
	noticeSub := s.bus.Subscribe(events.TopicSystemNotice)
	maintSub := s.bus.Subscribe(events.TopicMaintenanceAlert)
	connSub := s.bus.Subscribe(events.TopicConnStatus)
	gaveUpSub := s.bus.Subscribe(events.TopicReconnectGaveUp)

	go func() {
		defer s.bus.Unsubscribe(alarmSub, events.TopicAlarm)
		defer s.bus.Unsubscribe(noticeSub, events.TopicSystemNotice)
		defer s.bus.Unsubscribe(maintSub, events.TopicMaintenanceAlert)
		defer s.bus.Unsubscribe(connSub, events.TopicConnStatus)
		defer s.bus.Unsubscribe(gaveUpSub, events.TopicReconnectGaveUp)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-alarmSub:
				if !ok {
					return
				}
				alarm, ok := raw.(domain.Alarm)
				if !ok {
					continue
				}
				s.handleAlarm(alarm)
			case raw, ok := <-noticeSub:
				if !ok {
					return
				}
				notice, ok := raw.(domain.SystemNotification)
				if !ok {
					continue
				}
				s.handleSystemNotification(notice)
			case raw, ok := <-maintSub:
				if !ok {
					return
				}
				alert, ok := raw.(domain.MaintenanceAlert)
				if !ok {
					continue
				}
				s.handleMaintenanceAlert(alert)
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(events.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			case raw, ok := <-gaveUpSub:
				if !ok {
					return
				}
				gaveUp, ok := raw.(events.ReconnectGaveUp)
				if !ok {
					continue
				}
				s.handleReconnectGaveUp(gaveUp)
			}
		}
	}()
}

func (s *NotificationService) handleAlarm(alarm domain.Alarm) {
	prefs := s.notificationPrefs()
	if !prefs.Events.Alarm {
		return
	}

	machine := strings.TrimSpace(alarm.MachineID)
	if machine == "" {
		machine = "unknown machine"
	}
	message := strings.TrimSpace(alarm.Message)
	if message == "" {
		message = fmt.Sprintf("%s: %.2f exceeds threshold %.2f", alarm.Parameter, alarm.Value, alarm.Threshold)
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("[%s] %s alarm", alarm.Level, machine),
		Content: message,
		Urgent:  alarm.Level.Severe(),
	})
}

func (s *NotificationService) handleSystemNotification(notice domain.SystemNotification) {
	prefs := s.notificationPrefs()
	if !prefs.Events.SystemNotification {
		return
	}

	title := strings.TrimSpace(notice.Title)
	if title == "" {
		title = "System notification"
	}

	s.send(notifications.Payload{
		Title:   title,
		Content: notice.Message,
	})
}

func (s *NotificationService) handleMaintenanceAlert(alert domain.MaintenanceAlert) {
	prefs := s.notificationPrefs()
	if !prefs.Events.MaintenanceAlert {
		return
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("Maintenance due: %s", alert.MachineID),
		Content: maintenanceAlertContent(alert),
	})
}

func (s *NotificationService) handleConnectionStatus(status events.ConnectionStatus) {
	prefs := s.notificationPrefs()
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	if status.State == events.ConnectionStateConnecting {
		return
	}
	if !prefs.Events.ConnectionStatus {
		return
	}

	details := strings.TrimSpace(status.Endpoint)
	if details == "" {
		details = "No connection details"
	}
	if status.State == events.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("Telemetry feed %s", status.State),
		Content: details,
	})
}

func (s *NotificationService) handleReconnectGaveUp(gaveUp events.ReconnectGaveUp) {
	prefs := s.notificationPrefs()
	if !prefs.Events.ConnectionStatus {
		return
	}

	s.send(notifications.Payload{
		Title:   "Telemetry feed offline",
		Content: fmt.Sprintf("Gave up after %d reconnect attempts to %s. Reconnect manually.", gaveUp.Attempts, gaveUp.Endpoint),
		Urgent:  true,
	})
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title, "urgent", notification.Urgent)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
		Urgent:  notification.Urgent,
	})
}

func maintenanceAlertContent(alert domain.MaintenanceAlert) string {
	if reason, ok := alert.Info["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		return reason
	}
	if desc, ok := alert.Info["description"].(string); ok && strings.TrimSpace(desc) != "" {
		return desc
	}

	return "Scheduled maintenance required"
}
