package notification

import (
	"context"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"go.uber.org/zap"
)

// LogNotifier writes reminders to the log instead of sending them. It is
// used when SMTP is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the message and never fails
func (n *LogNotifier) Notify(ctx context.Context, msg invoicing.Message) error {
	n.logger.Info("Reminder notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)))
	return nil
}
