package service

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimerManager schedules one auto-completion timer per order when it enters
// "paid". Timers are in-memory only: a restart loses them, and the cron sweep
// over scheduled_completion_at picks up what was dropped.
type TimerManager struct {
	mu     sync.Mutex
	window time.Duration
	timers map[string]*time.Timer
	onFire func(orderID string)
}

func NewTimerManager(window time.Duration) *TimerManager {
	return &TimerManager{
		window: window,
		timers: make(map[string]*time.Timer),
	}
}

// SetOnFire installs the completion callback. Must be called before Start;
// wiring happens once in main, after the order service exists.
func (m *TimerManager) SetOnFire(fn func(orderID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFire = fn
}

// Start schedules the one-shot completion timer for an order, superseding
// any timer already running for the same id.
func (m *TimerManager) Start(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.timers[orderID]; ok {
		existing.Stop()
	}

	m.timers[orderID] = time.AfterFunc(m.window, func() {
		m.fire(orderID)
	})

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"window":   m.window.String(),
	}).Info("processing timer started")
}

func (m *TimerManager) fire(orderID string) {
	m.mu.Lock()
	delete(m.timers, orderID)
	onFire := m.onFire
	m.mu.Unlock()

	if onFire != nil {
		onFire(orderID)
	}
}

// Clear cancels the timer for an order if one exists. No-op otherwise.
func (m *TimerManager) Clear(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timer, ok := m.timers[orderID]; ok {
		timer.Stop()
		delete(m.timers, orderID)
		logrus.WithField("order_id", orderID).Debug("processing timer cleared")
	}
}

// IsProcessing reports whether a timer is active for the order.
func (m *TimerManager) IsProcessing(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[orderID]
	return ok
}

// RemainingMinutes reports the display value for an active timer. It is the
// full window, not the elapsed-adjusted remainder: the UI always shows a
// fresh countdown. Zero when no timer is active.
func (m *TimerManager) RemainingMinutes(orderID string) int {
	if !m.IsProcessing(orderID) {
		return 0
	}
	return int(m.window.Minutes())
}

// ActiveCount returns the number of scheduled timers, for diagnostics.
func (m *TimerManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Stop cancels every timer, used on shutdown.
func (m *TimerManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}
