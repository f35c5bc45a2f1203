package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
)

// OrderCompleter finishes orders whose processing window has elapsed.
type OrderCompleter interface {
	AutoComplete(ctx context.Context, orderID string) error
}

// Sweeper periodically completes paid orders whose scheduled completion time
// has passed. In-memory timers cover the normal path; the sweep exists so a
// restart cannot strand a paid order.
type Sweeper struct {
	orders    repository.OrderRepository
	completer OrderCompleter
	cron      *cron.Cron
	interval  time.Duration
}

func NewSweeper(orders repository.OrderRepository, completer OrderCompleter, interval time.Duration) *Sweeper {
	return &Sweeper{
		orders:    orders,
		completer: completer,
		cron:      cron.New(),
		interval:  interval,
	}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("@every "+s.interval.String(), s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	logrus.WithField("interval", s.interval.String()).Info("overdue order sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	overdue, err := s.orders.ListOverdue(ctx, time.Now())
	if err != nil {
		logrus.WithError(err).Error("failed to list overdue orders")
		return
	}
	if len(overdue) == 0 {
		return
	}

	logrus.WithField("count", len(overdue)).Info("sweeping overdue orders")
	for i := range overdue {
		order := &overdue[i]
		if order.Status != models.OrderStatusPaid {
			continue
		}
		if err := s.completer.AutoComplete(ctx, order.OrderID); err != nil {
			logrus.WithError(err).WithField("order_id", order.OrderID).
				Error("failed to auto-complete overdue order")
		}
	}
}
