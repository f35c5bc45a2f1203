package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

// aliasGroups lists currency codes that refer to the same underlying rail.
// Writes to any member go through to every member; reads reconcile by max.
var aliasGroups = [][]string{
	{"evc", "evcplus"},
}

type BalanceService interface {
	// GetBalance returns the available amount for a currency, zero if unset,
	// and zero for everything while the system kill-switch is off.
	GetBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	ListBalances(ctx context.Context) ([]models.CurrencyBalance, error)
	Reserve(ctx context.Context, currency string, amount decimal.Decimal) error
	Release(ctx context.Context, currency string, amount decimal.Decimal) error
	ManualCredit(ctx context.Context, currency string, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	ManualDebit(ctx context.Context, currency string, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	SetAbsolute(ctx context.Context, currency string, amount decimal.Decimal) (decimal.Decimal, error)
	SystemStatus(ctx context.Context) (string, error)
	SetSystemStatus(ctx context.Context, status string) error
}

type balanceService struct {
	repo        repository.BalanceRepository
	settings    repository.SettingsRepository
	locker      *repository.CurrencyLockManager
	lockTTL     time.Duration
	broadcaster Broadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	aliases map[string][]string
}

// NewBalanceService builds the ledger. locker may be nil in tests; with it,
// mutations also take a cross-process redis lock so a scaled-out deployment
// cannot double-spend a currency.
func NewBalanceService(
	repo repository.BalanceRepository,
	settings repository.SettingsRepository,
	locker *repository.CurrencyLockManager,
	lockTTL time.Duration,
	broadcaster Broadcaster,
) BalanceService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster()
	}

	aliases := make(map[string][]string)
	for _, group := range aliasGroups {
		for _, code := range group {
			aliases[code] = group
		}
	}

	return &balanceService{
		repo:        repo,
		settings:    settings,
		locker:      locker,
		lockTTL:     lockTTL,
		broadcaster: broadcaster,
		locks:       make(map[string]*sync.Mutex),
		aliases:     aliases,
	}
}

const lockRetryDelay = 50 * time.Millisecond

// acquireSharedLock takes the cross-process currency lock, retrying on
// contention until the context expires. Nil when no locker is configured.
func (s *balanceService) acquireSharedLock(ctx context.Context, currency string) (*repository.DistributedLock, error) {
	if s.locker == nil {
		return nil, nil
	}

	key := s.aliasSet(currency)[0]
	for {
		lock, err := s.locker.LockCurrency(ctx, key, s.lockTTL)
		if err == nil {
			return lock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

func (s *balanceService) releaseSharedLock(ctx context.Context, lock *repository.DistributedLock) {
	if lock == nil {
		return
	}
	if err := s.locker.ReleaseLock(ctx, lock); err != nil {
		logrus.WithError(err).WithField("key", lock.Key).Warn("failed to release currency lock")
	}
}

// aliasSet returns every code that shares a rail with currency, currency
// included.
func (s *balanceService) aliasSet(currency string) []string {
	if group, ok := s.aliases[currency]; ok {
		return group
	}
	return []string{currency}
}

// currencyLock returns the mutex serializing mutations for a currency. Alias
// groups share one mutex, keyed by the group's first member.
func (s *balanceService) currencyLock(currency string) *sync.Mutex {
	key := s.aliasSet(currency)[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// read returns the stored amount, reconciling alias divergence by max.
func (s *balanceService) read(ctx context.Context, currency string) (decimal.Decimal, error) {
	amount := decimal.Zero
	for _, code := range s.aliasSet(currency) {
		balance, err := s.repo.GetByCurrency(ctx, code)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return decimal.Zero, err
		}
		if balance.Amount.GreaterThan(amount) {
			amount = balance.Amount
		}
	}
	return amount, nil
}

// writeThrough persists the amount to every alias row.
func (s *balanceService) writeThrough(ctx context.Context, currency string, amount decimal.Decimal) error {
	for _, code := range s.aliasSet(currency) {
		if err := s.repo.Upsert(ctx, &models.CurrencyBalance{Currency: code, Amount: amount}); err != nil {
			return err
		}
	}
	return nil
}

func (s *balanceService) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	status, err := s.settings.GetSystemStatus(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if status == models.SystemStatusOff {
		return decimal.Zero, nil
	}
	return s.read(ctx, normalizeCurrency(currency))
}

func (s *balanceService) ListBalances(ctx context.Context) ([]models.CurrencyBalance, error) {
	balances, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	status, err := s.settings.GetSystemStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status == models.SystemStatusOff {
		for i := range balances {
			balances[i].Amount = decimal.Zero
		}
	}
	return balances, nil
}

// Reserve debits the currency for an order's receive amount. The check and
// the decrement happen under the currency mutex so concurrent reservations
// cannot both pass a stale availability check.
func (s *balanceService) Reserve(ctx context.Context, currency string, amount decimal.Decimal) error {
	currency = normalizeCurrency(currency)
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("Amount must be positive")
	}

	newAmount, err := s.adjust(ctx, currency, amount.Neg())
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"currency": currency,
		"reserved": amount.String(),
		"balance":  newAmount.String(),
	}).Info("balance reserved")
	return nil
}

// Release credits a previously reserved amount back, e.g. on cancellation.
func (s *balanceService) Release(ctx context.Context, currency string, amount decimal.Decimal) error {
	currency = normalizeCurrency(currency)
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("Amount must be positive")
	}

	newAmount, err := s.adjust(ctx, currency, amount)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"currency": currency,
		"released": amount.String(),
		"balance":  newAmount.String(),
	}).Info("balance released")
	return nil
}

func (s *balanceService) ManualCredit(ctx context.Context, currency string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	currency = normalizeCurrency(currency)
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperrors.NewValidationError("Amount must be positive")
	}

	newAmount, err := s.adjust(ctx, currency, amount)
	if err != nil {
		return decimal.Zero, err
	}

	logrus.WithFields(logrus.Fields{
		"currency": currency,
		"credit":   amount.String(),
		"balance":  newAmount.String(),
		"reason":   reason,
	}).Info("manual balance credit")
	return newAmount, nil
}

func (s *balanceService) ManualDebit(ctx context.Context, currency string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	currency = normalizeCurrency(currency)
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperrors.NewValidationError("Amount must be positive")
	}

	newAmount, err := s.adjust(ctx, currency, amount.Neg())
	if err != nil {
		return decimal.Zero, err
	}

	logrus.WithFields(logrus.Fields{
		"currency": currency,
		"debit":    amount.String(),
		"balance":  newAmount.String(),
		"reason":   reason,
	}).Info("manual balance debit")
	return newAmount, nil
}

func (s *balanceService) SetAbsolute(ctx context.Context, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	currency = normalizeCurrency(currency)
	if amount.LessThan(decimal.Zero) {
		return decimal.Zero, apperrors.NewValidationError("Balance cannot be negative")
	}

	lock := s.currencyLock(currency)
	lock.Lock()
	shared, err := s.acquireSharedLock(ctx, currency)
	if err != nil {
		lock.Unlock()
		return decimal.Zero, err
	}
	err = s.writeThrough(ctx, currency, amount)
	s.releaseSharedLock(ctx, shared)
	lock.Unlock()
	if err != nil {
		return decimal.Zero, err
	}

	s.broadcastUpdate(currency, amount)
	return amount, nil
}

// adjust applies a signed delta under the currency mutex, rejecting any
// result below zero with the balance left unchanged.
func (s *balanceService) adjust(ctx context.Context, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	lock := s.currencyLock(currency)
	lock.Lock()

	shared, err := s.acquireSharedLock(ctx, currency)
	if err != nil {
		lock.Unlock()
		return decimal.Zero, err
	}

	current, err := s.read(ctx, currency)
	if err != nil {
		s.releaseSharedLock(ctx, shared)
		lock.Unlock()
		return decimal.Zero, err
	}

	newAmount := current.Add(delta)
	if newAmount.LessThan(decimal.Zero) {
		s.releaseSharedLock(ctx, shared)
		lock.Unlock()
		return decimal.Zero, apperrors.NewInsufficientBalance(currency)
	}

	if err := s.writeThrough(ctx, currency, newAmount); err != nil {
		s.releaseSharedLock(ctx, shared)
		lock.Unlock()
		return decimal.Zero, err
	}
	s.releaseSharedLock(ctx, shared)
	lock.Unlock()

	s.broadcastUpdate(currency, newAmount)
	return newAmount, nil
}

// broadcastUpdate runs outside the currency mutex.
func (s *balanceService) broadcastUpdate(currency string, amount decimal.Decimal) {
	s.broadcaster.Broadcast(notifier.NewEvent(notifier.EventBalanceUpdate, map[string]string{
		"currency": currency,
		"amount":   amount.String(),
	}))
}

func (s *balanceService) SystemStatus(ctx context.Context) (string, error) {
	return s.settings.GetSystemStatus(ctx)
}

// SetSystemStatus flips the availability kill-switch. Stored amounts are not
// touched; only reads are affected while off.
func (s *balanceService) SetSystemStatus(ctx context.Context, status string) error {
	if status != models.SystemStatusOn && status != models.SystemStatusOff {
		return apperrors.NewValidationError("System status must be 'on' or 'off'")
	}

	if err := s.settings.SetSystemStatus(ctx, status); err != nil {
		return err
	}

	s.broadcaster.Broadcast(notifier.NewEvent(notifier.EventStatusChange, map[string]string{
		"system_status": status,
	}))

	logrus.WithField("status", status).Warn("system status changed")
	return nil
}
