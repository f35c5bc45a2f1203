package service

import (
	"strings"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
)

// Broadcaster pushes events to connected dashboards. Satisfied by
// notifier.Hub; fire-and-forget from the caller's point of view.
type Broadcaster interface {
	Broadcast(event notifier.Event)
}

// nopBroadcaster is used when no hub is wired, e.g. in tests.
type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(notifier.Event) {}

// NopBroadcaster returns a Broadcaster that discards all events.
func NopBroadcaster() Broadcaster { return nopBroadcaster{} }

// normalizeCurrency canonicalizes a currency/method code.
func normalizeCurrency(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
