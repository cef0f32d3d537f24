package notifier

import (
	"github.com/pfrederiksen/sydney-events/internal/event"
)

// Notifier defines the interface for posting event notifications
type Notifier interface {
	// Notify posts notifications for newly discovered events
	Notify(events []*event.Record) error
}
