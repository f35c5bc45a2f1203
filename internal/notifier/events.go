package notifier

import "time"

// Event types pushed to connected dashboards. This is a live-convenience
// channel with no replay; clients reconcile by re-fetching.
const (
	EventNewOrder            = "new_order"
	EventOrderUpdate         = "order_update"
	EventNewMessage          = "new_message"
	EventStatusChange        = "status_change"
	EventBalanceUpdate       = "balance_update"
	EventExchangeRateUpdate  = "exchange_rate_update"
	EventCurrencyLimitUpdate = "currency_limit_update"
)

type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent builds a timestamped event.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}
