package service

import (
	"context"

	"github.com/diagnosis/puffit/pkg/events"
	"github.com/diagnosis/puffit/pkg/logger"
)

// publish never fails the caller; events are a side channel.
func publish(ctx context.Context, bus events.Publisher, subject string, payload interface{}) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
