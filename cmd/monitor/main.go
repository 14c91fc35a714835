package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mtmon/internal/app"
	"mtmon/internal/bus"
	"mtmon/internal/config"
	"mtmon/internal/domain"
	"mtmon/internal/events"
	"mtmon/internal/logging"
	"mtmon/internal/notifications"
	"mtmon/internal/persistence"
	"mtmon/internal/telemetry"
	"mtmon/internal/transport"
)

const eventLogRetention = 30 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("run monitor", "error", err)
		os.Exit(1)
	}
}

func run() error {
	host := flag.String("host", "", "platform server host")
	port := flag.Int("port", 0, "platform server port")
	machines := flag.String("machines", "", "comma-separated machine IDs to subscribe")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 5m (default: until interrupt)")
	notify := flag.Bool("notify", false, "send desktop notifications for alarms and connection changes")
	noPersist := flag.Bool("no-persist", false, "disable the sqlite event log")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(*host) != "" {
		cfg.Server.Host = strings.TrimSpace(*host)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: set --host or save server host in %s: %w", paths.ConfigFile, err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting mtmon monitor", "version", app.BuildVersionWithDate(), "endpoint", cfg.Server.Endpoint())

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	if !*noPersist {
		db, err := persistence.Open(ctx, paths.DBFile)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Warn("close sqlite", "error", closeErr)
			}
		}()

		if err := persistence.PruneEventLog(ctx, db, eventLogRetention); err != nil {
			logger.Warn("prune event log", "error", err)
		}

		alarmRepo := persistence.NewAlarmRepo(db)
		statusRepo := persistence.NewStatusRepo(db)

		alarms, err := alarmRepo.ListRecent(ctx, app.RecentAlarmsLoad)
		if err != nil {
			return fmt.Errorf("load recent alarms: %w", err)
		}
		logger.Info("event log", "recent_alarms", len(alarms))

		writer := persistence.NewWriterQueue(logMgr.Logger("persistence"), 256)
		writer.Start(ctx)
		domain.StartEventLogProjection(ctx, b, writer, alarmRepo, statusRepo)
	}

	series := domain.NewSeriesStore(cfg.Telemetry.SeriesCapacity)
	series.Start(ctx, b)

	if *notify {
		sender := notifications.NewBeeepSender(logMgr.Logger("notifications"))
		svc := app.NewNotificationService(b, func() config.AppConfig { return cfg }, sender, logMgr.Logger("app.notifications"))
		svc.Start(ctx)
	}

	tr := transport.NewWSTransport(cfg.Server.Endpoint())
	client := telemetry.NewClient(logMgr.Logger("telemetry"), b, tr, cfg)
	defer client.Close()

	watch(ctx, b, logger)
	client.Connect(ctx)

	for _, machineID := range splitMachines(*machines) {
		if err := client.Subscribe(machineID); err != nil {
			logger.Warn("subscribe failed", "machine_id", machineID, "error", err)
		}
	}

	if *listenFor > 0 {
		logger.Info("listen mode", "duration", *listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(*listenFor):
		}
	} else {
		logger.Info("listening until interrupt")
		<-ctx.Done()
	}

	logSeriesSummary(logger, series)
	client.Disconnect()

	return nil
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	connSub := b.Subscribe(events.TopicConnStatus)
	gaveUpSub := b.Subscribe(events.TopicReconnectGaveUp)
	dataSub := b.Subscribe(events.TopicMachineData)
	alarmSub := b.Subscribe(events.TopicAlarm)
	statusSub := b.Subscribe(events.TopicStatusChange)
	maintSub := b.Subscribe(events.TopicMaintenanceAlert)
	perfSub := b.Subscribe(events.TopicPerformanceReport)
	ackSub := b.Subscribe(events.TopicSubscriptionAck)
	rawInSub := b.Subscribe(events.TopicRawFrameIn)
	rawOutSub := b.Subscribe(events.TopicRawFrameOut)

	go func() {
		defer b.Unsubscribe(connSub, events.TopicConnStatus)
		defer b.Unsubscribe(gaveUpSub, events.TopicReconnectGaveUp)
		defer b.Unsubscribe(dataSub, events.TopicMachineData)
		defer b.Unsubscribe(alarmSub, events.TopicAlarm)
		defer b.Unsubscribe(statusSub, events.TopicStatusChange)
		defer b.Unsubscribe(maintSub, events.TopicMaintenanceAlert)
		defer b.Unsubscribe(perfSub, events.TopicPerformanceReport)
		defer b.Unsubscribe(ackSub, events.TopicSubscriptionAck)
		defer b.Unsubscribe(rawInSub, events.TopicRawFrameIn)
		defer b.Unsubscribe(rawOutSub, events.TopicRawFrameOut)

		for {
			select {
			case <-ctx.Done():
				return
			case raw := <-connSub:
				if status, ok := raw.(events.ConnectionStatus); ok {
					logger.Info("conn", "state", status.State, "attempts", status.ReconnectAttempts, "error", status.Err)
				}
			case raw := <-gaveUpSub:
				if gaveUp, ok := raw.(events.ReconnectGaveUp); ok {
					logger.Error("reconnect gave up", "attempts", gaveUp.Attempts, "endpoint", gaveUp.Endpoint)
				}
			case raw := <-dataSub:
				if data, ok := raw.(domain.MachineData); ok {
					logger.Info("data", "machine", data.MachineID, "temperature", data.Temperature, "speed", data.Speed, "vibration", data.Vibration)
				}
			case raw := <-alarmSub:
				if alarm, ok := raw.(domain.Alarm); ok {
					logger.Warn("alarm", "machine", alarm.MachineID, "level", alarm.Level, "message", alarm.Message)
				}
			case raw := <-statusSub:
				if change, ok := raw.(domain.StatusChange); ok {
					logger.Info("status", "machine", change.MachineID, "old", change.OldStatus, "new", change.NewStatus)
				}
			case raw := <-maintSub:
				if alert, ok := raw.(domain.MaintenanceAlert); ok {
					logger.Info("maintenance", "machine", alert.MachineID)
				}
			case raw := <-perfSub:
				if report, ok := raw.(domain.PerformanceReport); ok {
					logger.Info("performance", "machine", report.MachineID)
				}
			case raw := <-ackSub:
				if ack, ok := raw.(events.SubscriptionAck); ok {
					logger.Info("subscription ack", "machine", ack.MachineID, "subscribed", ack.Subscribed)
				}
			case raw := <-rawInSub:
				if frame, ok := raw.(events.RawFrame); ok {
					logger.Debug("raw-in", "len", frame.Len, "preview", frame.Preview)
				}
			case raw := <-rawOutSub:
				if frame, ok := raw.(events.RawFrame); ok {
					logger.Debug("raw-out", "len", frame.Len, "preview", frame.Preview)
				}
			}
		}
	}()
}

func logSeriesSummary(logger *slog.Logger, series *domain.SeriesStore) {
	ids := series.SeriesIDs()
	logger.Info("series summary", "count", len(ids))
	for i, id := range ids {
		if i >= 10 {
			logger.Info("series summary truncated", "remaining", len(ids)-i)
			break
		}
		samples := series.Snapshot(id)
		if len(samples) == 0 {
			continue
		}
		last := samples[len(samples)-1]
		logger.Info("series", "id", id, "samples", len(samples), "last_value", last.Value, "last_at", last.At.Format(time.RFC3339))
	}
}

func splitMachines(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}

	return out
}
