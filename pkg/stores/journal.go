package stores

import (
	"context"
	"time"

	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// JournalSubscriber returns an event subscriber that records every event in the
// journal. Write failures are logged and otherwise ignored.
func JournalSubscriber(store Store, logger *telemetry.Logger) telemetry.EventSubscriber {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	logger = logger.NewComponentLogger("journal")

	return func(event telemetry.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		entry := &JournalEntry{
			ID:        event.ID,
			Type:      event.Type,
			Source:    event.Source,
			Key:       event.Key,
			Message:   event.Message,
			Level:     event.Level,
			Data:      event.Data,
			CreatedAt: event.Timestamp,
		}
		if err := store.AppendJournal(ctx, entry); err != nil {
			logger.WithError(err).WithField("event", event.Type).Warn("Failed to journal event")
		}
	}
}
