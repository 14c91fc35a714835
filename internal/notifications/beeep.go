package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// BeeepSender delivers desktop notifications through the OS facility.
type BeeepSender struct {
	logger *slog.Logger
}

func NewBeeepSender(logger *slog.Logger) *BeeepSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &BeeepSender{logger: logger}
}

func (s *BeeepSender) Send(payload Payload) {
	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return
	}

	var err error
	if payload.Urgent {
		err = beeep.Alert(title, content, "")
	} else {
		err = beeep.Notify(title, content, "")
	}
	if err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}
