package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
)

// CancellationGuard rate-limits cancellations per customer. This is advisory
// abuse prevention, not a financial control: when the store is unreachable
// the guard fails open.
type CancellationGuard interface {
	// CheckLimit reports whether the customer may still cancel and how many
	// cancellations remain in the current window.
	CheckLimit(ctx context.Context, identifier string) (allowed bool, remaining int, err error)
	RecordCancellation(ctx context.Context, identifier string) error
}

type cancellationGuard struct {
	store  repository.CancellationStore
	limit  int
	window time.Duration
}

func NewCancellationGuard(store repository.CancellationStore, limit int, window time.Duration) CancellationGuard {
	return &cancellationGuard{
		store:  store,
		limit:  limit,
		window: window,
	}
}

func (g *cancellationGuard) CheckLimit(ctx context.Context, identifier string) (bool, int, error) {
	if identifier == "" {
		return true, g.limit, nil
	}

	count, err := g.store.Count(ctx, identifier)
	if err != nil {
		logrus.WithError(err).WithField("identifier", identifier).
			Warn("cancellation guard unavailable, allowing")
		return true, g.limit, nil
	}

	remaining := g.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count < int64(g.limit), remaining, nil
}

func (g *cancellationGuard) RecordCancellation(ctx context.Context, identifier string) error {
	if identifier == "" {
		return nil
	}

	count, err := g.store.Increment(ctx, identifier, g.window)
	if err != nil {
		logrus.WithError(err).WithField("identifier", identifier).
			Warn("failed to record cancellation")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"identifier": identifier,
		"count":      count,
	}).Info("cancellation recorded")
	return nil
}
