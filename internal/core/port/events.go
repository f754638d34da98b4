package port

import (
	"context"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
)

// EventPublisher hands account events to the message bus. Publishing is best
// effort: callers log a failure and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
