package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

func newEventHeader(userID string, at time.Time) domain.EventHeader {
	return domain.EventHeader{ID: uuid.NewString(), UserID: userID, OccurredAt: at.UTC()}
}

// publishEvent sends event when a publisher is configured. Failures are logged
// and never fail the calling flow.
func publishEvent(ctx context.Context, events port.EventPublisher, log *zap.Logger, event domain.Event) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, event); err != nil {
		log.Warn("publish event failed",
			zap.String("event_type", event.Type()),
			zap.String("user_id", event.Header().UserID),
			zap.Error(err),
		)
	}
}

func publishUserRegistered(ctx context.Context, events port.EventPublisher, log *zap.Logger, user domain.User, method string, meta RequestMeta) {
	publishEvent(ctx, events, log, domain.UserRegisteredEvent{
		EventHeader:        newEventHeader(user.ID, user.CreatedAt),
		Email:              user.Email,
		Name:               user.Name,
		RegistrationMethod: method,
		UserAgent:          meta.UserAgent,
	})
}
