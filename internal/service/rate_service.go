package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

// inverseRatePlaces is the rounding applied to inverse-derived rates.
const inverseRatePlaces = 6

// RateUpdateResult is returned by UpdateRate. The limits are the resolved,
// untouched limits for both currencies of the pair: the caller gets explicit
// confirmation that a rate change left the limits alone.
type RateUpdateResult struct {
	Rate       *models.ExchangeRate `json:"rate"`
	FromLimits models.LimitRange    `json:"from_limits"`
	ToLimits   models.LimitRange    `json:"to_limits"`
}

type RateService interface {
	ResolveRate(ctx context.Context, from, to string) (*models.ResolvedRate, error)
	ResolveLimits(ctx context.Context, currency string) (models.LimitRange, error)
	UpdateRate(ctx context.Context, from, to string, rate decimal.Decimal, changedBy, reason string) (*RateUpdateResult, error)
	ListRates(ctx context.Context) ([]models.ExchangeRate, error)
	ListHistory(ctx context.Context, from, to string, limit int) ([]models.ExchangeRateHistory, error)
	UpdateLimit(ctx context.Context, currency string, min, max decimal.Decimal) (*models.CurrencyLimit, error)
	DeleteLimit(ctx context.Context, currency string) error
	ListLimits(ctx context.Context) ([]models.CurrencyLimit, models.LimitRange, error)
	SetUniversalDefaults(ctx context.Context, min, max decimal.Decimal) error
}

type rateService struct {
	rateRepo    repository.RateRepository
	limitRepo   repository.LimitRepository
	broadcaster Broadcaster
}

func NewRateService(
	rateRepo repository.RateRepository,
	limitRepo repository.LimitRepository,
	broadcaster Broadcaster,
) RateService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster()
	}
	return &rateService{
		rateRepo:    rateRepo,
		limitRepo:   limitRepo,
		broadcaster: broadcaster,
	}
}

// ResolveRate looks up the rate for a pair: the direct row first, then the
// reverse row inverted and rounded to six decimals. No synthetic default is
// ever fabricated.
func (s *rateService) ResolveRate(ctx context.Context, from, to string) (*models.ResolvedRate, error) {
	from = normalizeCurrency(from)
	to = normalizeCurrency(to)

	direct, err := s.rateRepo.GetRate(ctx, from, to)
	if err == nil {
		return &models.ResolvedRate{
			From:      from,
			To:        to,
			Rate:      direct.Rate,
			UpdatedAt: direct.UpdatedAt,
		}, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	reverse, err := s.rateRepo.GetRate(ctx, to, from)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewRateNotConfigured(from, to)
		}
		return nil, err
	}
	if reverse.Rate.IsZero() {
		return nil, apperrors.NewRateNotConfigured(from, to)
	}

	inverted := decimal.NewFromInt(1).DivRound(reverse.Rate, inverseRatePlaces)
	return &models.ResolvedRate{
		From:      from,
		To:        to,
		Rate:      inverted,
		Inverted:  true,
		UpdatedAt: reverse.UpdatedAt,
	}, nil
}

// ResolveLimits returns the currency override if one exists, otherwise the
// universal defaults.
func (s *rateService) ResolveLimits(ctx context.Context, currency string) (models.LimitRange, error) {
	currency = normalizeCurrency(currency)

	override, err := s.limitRepo.GetOverride(ctx, currency)
	if err == nil {
		return models.LimitRange{Min: override.MinAmount, Max: override.MaxAmount}, nil
	}
	if !repository.IsNotFound(err) {
		return models.LimitRange{}, err
	}

	return s.limitRepo.GetDefaults(ctx)
}

func (s *rateService) UpdateRate(ctx context.Context, from, to string, rate decimal.Decimal, changedBy, reason string) (*RateUpdateResult, error) {
	from = normalizeCurrency(from)
	to = normalizeCurrency(to)

	if from == to {
		return nil, apperrors.NewValidationError("From and to currencies must differ")
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.NewValidationError("Exchange rate must be positive")
	}

	oldRate := decimal.Zero
	if existing, err := s.rateRepo.GetRate(ctx, from, to); err == nil {
		oldRate = existing.Rate
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	updated := &models.ExchangeRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
	}
	if err := s.rateRepo.UpsertRate(ctx, updated); err != nil {
		return nil, err
	}

	history := &models.ExchangeRateHistory{
		FromCurrency: from,
		ToCurrency:   to,
		OldRate:      oldRate,
		NewRate:      rate,
		ChangedBy:    changedBy,
		ChangeReason: reason,
	}
	if err := s.rateRepo.AppendHistory(ctx, history); err != nil {
		// History is an audit trail; the rate change itself already stuck.
		logrus.WithError(err).WithFields(logrus.Fields{
			"from": from,
			"to":   to,
		}).Error("failed to append exchange rate history")
	}

	fromLimits, err := s.ResolveLimits(ctx, from)
	if err != nil {
		return nil, err
	}
	toLimits, err := s.ResolveLimits(ctx, to)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(notifier.NewEvent(notifier.EventExchangeRateUpdate, updated))

	logrus.WithFields(logrus.Fields{
		"from":       from,
		"to":         to,
		"old_rate":   oldRate.String(),
		"new_rate":   rate.String(),
		"changed_by": changedBy,
	}).Info("exchange rate updated")

	return &RateUpdateResult{
		Rate:       updated,
		FromLimits: fromLimits,
		ToLimits:   toLimits,
	}, nil
}

func (s *rateService) ListRates(ctx context.Context) ([]models.ExchangeRate, error) {
	return s.rateRepo.ListRates(ctx)
}

func (s *rateService) ListHistory(ctx context.Context, from, to string, limit int) ([]models.ExchangeRateHistory, error) {
	return s.rateRepo.ListHistory(ctx, normalizeCurrency(from), normalizeCurrency(to), limit)
}

func (s *rateService) UpdateLimit(ctx context.Context, currency string, min, max decimal.Decimal) (*models.CurrencyLimit, error) {
	currency = normalizeCurrency(currency)

	if err := validateLimitRange(min, max); err != nil {
		return nil, err
	}

	limit := &models.CurrencyLimit{
		Currency:  currency,
		MinAmount: min,
		MaxAmount: max,
	}
	if err := s.limitRepo.UpsertOverride(ctx, limit); err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(notifier.NewEvent(notifier.EventCurrencyLimitUpdate, limit))

	return limit, nil
}

func (s *rateService) DeleteLimit(ctx context.Context, currency string) error {
	currency = normalizeCurrency(currency)

	if err := s.limitRepo.DeleteOverride(ctx, currency); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFoundError("Currency limit")
		}
		return err
	}

	s.broadcaster.Broadcast(notifier.NewEvent(notifier.EventCurrencyLimitUpdate, map[string]string{
		"currency": currency,
		"action":   "deleted",
	}))
	return nil
}

func (s *rateService) ListLimits(ctx context.Context) ([]models.CurrencyLimit, models.LimitRange, error) {
	overrides, err := s.limitRepo.ListOverrides(ctx)
	if err != nil {
		return nil, models.LimitRange{}, err
	}
	defaults, err := s.limitRepo.GetDefaults(ctx)
	if err != nil {
		return nil, models.LimitRange{}, err
	}
	return overrides, defaults, nil
}

// SetUniversalDefaults replaces the process-wide defaults and purges every
// per-currency override, so the new defaults apply to all currencies at once.
// The purge is the documented contract of this operation, not a side effect
// to apologize for.
func (s *rateService) SetUniversalDefaults(ctx context.Context, min, max decimal.Decimal) error {
	if err := validateLimitRange(min, max); err != nil {
		return err
	}

	defaults := models.LimitRange{Min: min, Max: max}
	if err := s.limitRepo.SetDefaults(ctx, defaults); err != nil {
		return err
	}
	if err := s.limitRepo.PurgeOverrides(ctx); err != nil {
		return err
	}

	s.broadcaster.Broadcast(notifier.NewEvent(notifier.EventCurrencyLimitUpdate, map[string]string{
		"min":   min.String(),
		"max":   max.String(),
		"scope": "universal",
	}))

	logrus.WithFields(logrus.Fields{
		"min": min.String(),
		"max": max.String(),
	}).Info("universal limits replaced, currency overrides purged")

	return nil
}

func validateLimitRange(min, max decimal.Decimal) error {
	if min.LessThan(decimal.Zero) {
		return apperrors.NewValidationError("Minimum amount cannot be negative")
	}
	if max.LessThanOrEqual(min) {
		return apperrors.NewValidationError(
			fmt.Sprintf("Maximum amount must exceed minimum (%s)", min.String()))
	}
	return nil
}
