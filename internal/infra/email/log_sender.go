package email

import (
	"context"

	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
)

// LogSender writes messages to the log instead of delivering them. Useful for development environments.
type LogSender struct {
	logger *zap.Logger
}

var _ port.EmailSender = (*LogSender)(nil)

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{logger: log}
}

func (s *LogSender) Send(_ context.Context, msg port.EmailMessage) error {
	s.logger.Info("email suppressed by log sender",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
