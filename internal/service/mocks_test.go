package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) Update(ctx context.Context, order *models.Order, prev models.OrderStatus) error {
	args := m.Called(ctx, order, prev)
	return args.Error(0)
}

func (m *mockOrderRepo) List(ctx context.Context, filter *repository.OrderFilter) ([]models.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Order), args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderRepo) ListOverdue(ctx context.Context, now time.Time) ([]models.Order, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) Get(ctx context.Context, method string) (*models.WalletAddress, error) {
	args := m.Called(ctx, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletAddress), args.Error(1)
}

func (m *mockWalletRepo) Upsert(ctx context.Context, wallet *models.WalletAddress) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *mockWalletRepo) List(ctx context.Context) ([]models.WalletAddress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WalletAddress), args.Error(1)
}

type mockRateRepo struct {
	mock.Mock
}

func (m *mockRateRepo) GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExchangeRate), args.Error(1)
}

func (m *mockRateRepo) UpsertRate(ctx context.Context, rate *models.ExchangeRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *mockRateRepo) ListRates(ctx context.Context) ([]models.ExchangeRate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExchangeRate), args.Error(1)
}

func (m *mockRateRepo) AppendHistory(ctx context.Context, entry *models.ExchangeRateHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockRateRepo) ListHistory(ctx context.Context, from, to string, limit int) ([]models.ExchangeRateHistory, error) {
	args := m.Called(ctx, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExchangeRateHistory), args.Error(1)
}

type mockLimitRepo struct {
	mock.Mock
}

func (m *mockLimitRepo) GetOverride(ctx context.Context, currency string) (*models.CurrencyLimit, error) {
	args := m.Called(ctx, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CurrencyLimit), args.Error(1)
}

func (m *mockLimitRepo) UpsertOverride(ctx context.Context, limit *models.CurrencyLimit) error {
	args := m.Called(ctx, limit)
	return args.Error(0)
}

func (m *mockLimitRepo) DeleteOverride(ctx context.Context, currency string) error {
	args := m.Called(ctx, currency)
	return args.Error(0)
}

func (m *mockLimitRepo) ListOverrides(ctx context.Context) ([]models.CurrencyLimit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CurrencyLimit), args.Error(1)
}

func (m *mockLimitRepo) PurgeOverrides(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockLimitRepo) GetDefaults(ctx context.Context) (models.LimitRange, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.LimitRange), args.Error(1)
}

func (m *mockLimitRepo) SetDefaults(ctx context.Context, defaults models.LimitRange) error {
	args := m.Called(ctx, defaults)
	return args.Error(0)
}

type mockBalanceRepo struct {
	mock.Mock
}

func (m *mockBalanceRepo) GetByCurrency(ctx context.Context, currency string) (*models.CurrencyBalance, error) {
	args := m.Called(ctx, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CurrencyBalance), args.Error(1)
}

func (m *mockBalanceRepo) Upsert(ctx context.Context, balance *models.CurrencyBalance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

func (m *mockBalanceRepo) List(ctx context.Context) ([]models.CurrencyBalance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CurrencyBalance), args.Error(1)
}

type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) GetSystemStatus(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSettingsRepo) SetSystemStatus(ctx context.Context, status string) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

type mockCancellationStore struct {
	mock.Mock
}

func (m *mockCancellationStore) Increment(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	args := m.Called(ctx, identifier, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCancellationStore) Count(ctx context.Context, identifier string) (int64, error) {
	args := m.Called(ctx, identifier)
	return args.Get(0).(int64), args.Error(1)
}

type mockRateResolver struct {
	mock.Mock
}

func (m *mockRateResolver) ResolveRate(ctx context.Context, from, to string) (*models.ResolvedRate, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResolvedRate), args.Error(1)
}

func (m *mockRateResolver) ResolveLimits(ctx context.Context, currency string) (models.LimitRange, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(models.LimitRange), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockLedger) Reserve(ctx context.Context, currency string, amount decimal.Decimal) error {
	args := m.Called(ctx, currency, amount)
	return args.Error(0)
}

func (m *mockLedger) Release(ctx context.Context, currency string, amount decimal.Decimal) error {
	args := m.Called(ctx, currency, amount)
	return args.Error(0)
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) CheckLimit(ctx context.Context, identifier string) (bool, int, error) {
	args := m.Called(ctx, identifier)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockGuard) RecordCancellation(ctx context.Context, identifier string) error {
	args := m.Called(ctx, identifier)
	return args.Error(0)
}

// fakeMailer records which notifications were sent.
type fakeMailer struct {
	confirmations []string
	payments      []string
	completions   []string
	updates       []string
}

func (f *fakeMailer) SendOrderConfirmation(order *models.Order) bool {
	f.confirmations = append(f.confirmations, order.OrderID)
	return true
}

func (f *fakeMailer) SendPaymentConfirmation(order *models.Order) bool {
	f.payments = append(f.payments, order.OrderID)
	return true
}

func (f *fakeMailer) SendOrderCompletion(order *models.Order) bool {
	f.completions = append(f.completions, order.OrderID)
	return true
}

func (f *fakeMailer) SendStatusUpdate(order *models.Order) bool {
	f.updates = append(f.updates, order.OrderID)
	return true
}

// fakeTimers records timer operations.
type fakeTimers struct {
	started []string
	cleared []string
}

func (f *fakeTimers) Start(orderID string) { f.started = append(f.started, orderID) }
func (f *fakeTimers) Clear(orderID string) { f.cleared = append(f.cleared, orderID) }

// captureBroadcaster collects events for assertions.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (c *captureBroadcaster) Broadcast(event notifier.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureBroadcaster) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}
