// Package command contains write operations (CQRS - Commands).
package command

import (
	"time"

	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/pkg/logger"
)

// publish sends event after the change it describes has committed.
// A publish failure is logged; the change itself stands.
func publish(pub shared.EventPublisher, log *logger.Logger, event shared.Event) {
	if err := pub.Publish(event); err != nil {
		log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
	}
}

// orNow returns at, or the current time when at is zero.
func orNow(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now()
	}
	return at
}

func withDefaults(pub shared.EventPublisher, log *logger.Logger) (shared.EventPublisher, *logger.Logger) {
	if pub == nil {
		pub = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	return pub, log
}
