// Package email wraps the delivery collaborator. The real provider client is
// external; this package defines the boundary and a logging default used
// when no provider is configured.
package email

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
)

// Sender delivers a generated report to one recipient.
type Sender interface {
	Send(ctx context.Context, report *domain.Report, recipient string) (domain.DeliveryStatus, error)
}

// LogSender logs deliveries instead of sending them. Used in local mode and
// as the default when no provider is wired.
type LogSender struct {
	Logger *zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, report *domain.Report, recipient string) (domain.DeliveryStatus, error) {
	s.Logger.Info().
		Str("report_id", report.ID).
		Str("recipient", recipient).
		Int("threads", report.ThreadCount).
		Msg("email delivery skipped (log sender)")

	return domain.DeliverySent, nil
}
