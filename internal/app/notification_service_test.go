package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"mtmon/internal/bus"
	"mtmon/internal/config"
	"mtmon/internal/domain"
	"mtmon/internal/events"
	"mtmon/internal/notifications"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []notifications.Payload
}

func (s *fakeSender) Send(payload notifications.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, payload)
}

func (s *fakeSender) snapshot() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Payload(nil), s.sent...)
}

func (s *fakeSender) waitForCount(t *testing.T, want int) []notifications.Payload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := s.snapshot()
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("received %d notifications, want %d", len(s.snapshot()), want)
	return nil
}

func startTestService(t *testing.T, cfg config.AppConfig) (bus.MessageBus, *fakeSender) {
	t.Helper()

	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(b.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sender := &fakeSender{}
	svc := NewNotificationService(b, func() config.AppConfig { return cfg }, sender, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.Start(ctx)

	return b, sender
}

func TestAlarmNotification(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	b.Publish(events.TopicAlarm, domain.Alarm{
		MachineID: "M-001",
		Level:     domain.AlarmLevelCritical,
		Message:   "spindle overheating",
	})

	sent := sender.waitForCount(t, 1)
	if !strings.Contains(sent[0].Title, "M-001") {
		t.Fatalf("title = %q, want machine id", sent[0].Title)
	}
	if sent[0].Content != "spindle overheating" {
		t.Fatalf("content = %q", sent[0].Content)
	}
	if !sent[0].Urgent {
		t.Fatal("critical alarm not marked urgent")
	}
}

func TestWarningAlarmNotUrgent(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	b.Publish(events.TopicAlarm, domain.Alarm{
		MachineID: "M-001",
		Level:     domain.AlarmLevelWarning,
		Parameter: "vibration",
		Value:     1.4,
		Threshold: 1.0,
	})

	sent := sender.waitForCount(t, 1)
	if sent[0].Urgent {
		t.Fatal("warning alarm marked urgent")
	}
	if !strings.Contains(sent[0].Content, "vibration") {
		t.Fatalf("fallback content = %q, want parameter summary", sent[0].Content)
	}
}

func TestAlarmNotificationDisabledByPrefs(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Events.Alarm = false
	b, sender := startTestService(t, cfg)

	b.Publish(events.TopicAlarm, domain.Alarm{MachineID: "M-001", Level: domain.AlarmLevelCritical, Message: "x"})

	time.Sleep(100 * time.Millisecond)
	if got := sender.snapshot(); len(got) != 0 {
		t.Fatalf("disabled alarm event still notified: %+v", got)
	}
}

func TestConnectionStatusDedupe(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	status := events.ConnectionStatus{State: events.ConnectionStateConnected, Endpoint: "ws://gw:8000/ws"}
	b.Publish(events.TopicConnStatus, status)
	b.Publish(events.TopicConnStatus, status)
	b.Publish(events.TopicConnStatus, status)

	sent := sender.waitForCount(t, 1)
	time.Sleep(100 * time.Millisecond)
	if got := sender.snapshot(); len(got) != len(sent) {
		t.Fatalf("duplicate state notified %d times", len(got))
	}
}

func TestConnectingStateSuppressed(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	b.Publish(events.TopicConnStatus, events.ConnectionStatus{State: events.ConnectionStateConnecting})
	b.Publish(events.TopicConnStatus, events.ConnectionStatus{State: events.ConnectionStateConnected, Endpoint: "ws://gw:8000/ws"})

	sent := sender.waitForCount(t, 1)
	if !strings.Contains(sent[0].Title, "connected") {
		t.Fatalf("first notification = %q, want the connected transition", sent[0].Title)
	}
}

func TestReconnectGaveUpNotification(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	b.Publish(events.TopicReconnectGaveUp, events.ReconnectGaveUp{Attempts: 5, Endpoint: "ws://gw:8000/ws"})

	sent := sender.waitForCount(t, 1)
	if !sent[0].Urgent {
		t.Fatal("gave-up notification not urgent")
	}
	if !strings.Contains(sent[0].Content, "5") {
		t.Fatalf("content = %q, want attempt count", sent[0].Content)
	}
}

func TestSystemNotification(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	b.Publish(events.TopicSystemNotice, domain.SystemNotification{
		Title:   "Planned downtime",
		Message: "Platform restarts at 22:00",
	})

	sent := sender.waitForCount(t, 1)
	if sent[0].Title != "Planned downtime" || sent[0].Content != "Platform restarts at 22:00" {
		t.Fatalf("notification = %+v", sent[0])
	}
}

func TestMaintenanceAlertContent(t *testing.T) {
	b, sender := startTestService(t, config.Default())

	b.Publish(events.TopicMaintenanceAlert, domain.MaintenanceAlert{
		MachineID: "M-004",
		Info:      map[string]any{"reason": "tool wear above 80%"},
	})

	sent := sender.waitForCount(t, 1)
	if sent[0].Content != "tool wear above 80%" {
		t.Fatalf("content = %q", sent[0].Content)
	}
}
