package domain

import (
	"context"

	"mtmon/internal/bus"
	"mtmon/internal/events"
)

// WriteQueue serializes persistence writes from async domain events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartEventLogProjection mirrors alarms and status changes from the
// bus into the persistent event log. Telemetry samples are deliberately
// not persisted; the rolling buffers are their only window.
func StartEventLogProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, alarmRepo AlarmRepository, statusRepo StatusRepository) {
	alarmSub := b.Subscribe(events.TopicAlarm)
	statusSub := b.Subscribe(events.TopicStatusChange)

	go func() {
		defer b.Unsubscribe(alarmSub, events.TopicAlarm)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-alarmSub:
				if !ok {
					return
				}
				alarm, ok := raw.(Alarm)
				if !ok {
					continue
				}
				queue.Enqueue("insert_alarm", func(writeCtx context.Context) error {
					_, err := alarmRepo.Insert(writeCtx, alarm)
					return err
				})
			}
		}
	}()

	go func() {
		defer b.Unsubscribe(statusSub, events.TopicStatusChange)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-statusSub:
				if !ok {
					return
				}
				change, ok := raw.(StatusChange)
				if !ok {
					continue
				}
				queue.Enqueue("insert_status_change", func(writeCtx context.Context) error {
					_, err := statusRepo.Insert(writeCtx, change)
					return err
				})
			}
		}
	}()
}
