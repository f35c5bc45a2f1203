package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

type orderFixture struct {
	orderRepo   *mockOrderRepo
	walletRepo  *mockWalletRepo
	rates       *mockRateResolver
	ledger      *mockLedger
	timers      *fakeTimers
	guard       *mockGuard
	mailer      *fakeMailer
	broadcaster *captureBroadcaster
	svc         OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		orderRepo:   new(mockOrderRepo),
		walletRepo:  new(mockWalletRepo),
		rates:       new(mockRateResolver),
		ledger:      new(mockLedger),
		timers:      &fakeTimers{},
		guard:       new(mockGuard),
		mailer:      &fakeMailer{},
		broadcaster: &captureBroadcaster{},
	}
	f.svc = NewOrderService(
		f.orderRepo, f.walletRepo, f.rates, f.ledger,
		f.timers, f.guard, f.mailer, nil, f.broadcaster,
		decimal.RequireFromString("0.02"), 15*time.Minute,
	)
	return f
}

func validInput() *CreateOrderInput {
	return &CreateOrderInput{
		FullName:      "Ayan Warsame",
		PhoneNumber:   "+252611234567",
		Email:         "ayan@example.com",
		SenderAccount: "611234567",
		SendMethod:    "zaad",
		ReceiveMethod: "premier",
		SendAmount:    decimal.RequireFromString("100"),
		ReceiveAmount: decimal.RequireFromString("98"),
		WalletAddress: "premier-acct-99",
	}
}

func wideLimits() models.LimitRange {
	return models.LimitRange{
		Min: decimal.RequireFromString("5"),
		Max: decimal.RequireFromString("10000"),
	}
}

func (f *orderFixture) expectHappyCreate() {
	f.rates.On("ResolveRate", mock.Anything, "zaad", "premier").Return(&models.ResolvedRate{
		From: "zaad", To: "premier", Rate: decimal.RequireFromString("0.98"),
	}, nil)
	f.rates.On("ResolveLimits", mock.Anything, mock.Anything).Return(wideLimits(), nil)
	f.ledger.On("GetBalance", mock.Anything, "premier").Return(decimal.RequireFromString("5000"), nil)
	f.walletRepo.On("Get", mock.Anything, "premier").Return(&models.WalletAddress{
		Method: "premier", Address: "exchange-premier-1",
	}, nil)
}

func TestCreateOrder(t *testing.T) {
	f := newOrderFixture()
	f.expectHappyCreate()
	f.orderRepo.On("Create", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.Status == models.OrderStatusPending &&
			o.PaymentWallet == "exchange-premier-1" &&
			o.ExchangeRate.Equal(decimal.RequireFromString("0.98")) &&
			o.ScheduledCompletionAt == nil
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Order).OrderID = "DGL-2026-000001"
	})

	order, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Contains(t, f.mailer.confirmations, "DGL-2026-000001")
	assert.Contains(t, f.broadcaster.types(), "new_order")
	f.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertExpectations(t)
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateOrderInput)
	}{
		{"missing full name", func(in *CreateOrderInput) { in.FullName = "" }},
		{"missing phone", func(in *CreateOrderInput) { in.PhoneNumber = "" }},
		{"missing wallet address", func(in *CreateOrderInput) { in.WalletAddress = "" }},
		{"same currency both sides", func(in *CreateOrderInput) { in.ReceiveMethod = "ZAAD" }},
		{"non-positive amount", func(in *CreateOrderInput) { in.SendAmount = decimal.Zero }},
		{"sender account required for zaad", func(in *CreateOrderInput) { in.SenderAccount = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			in := validInput()
			tt.mutate(in)

			_, err := f.svc.CreateOrder(context.Background(), in)

			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
			f.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_RateNotConfigured(t *testing.T) {
	f := newOrderFixture()
	f.rates.On("ResolveRate", mock.Anything, "zaad", "premier").
		Return(nil, apperrors.NewRateNotConfigured("zaad", "premier"))

	_, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeRateNotConfigured))
}

func TestCreateOrder_AmountOutOfRange(t *testing.T) {
	f := newOrderFixture()
	f.rates.On("ResolveRate", mock.Anything, "zaad", "premier").Return(&models.ResolvedRate{
		Rate: decimal.RequireFromString("0.98"),
	}, nil)
	f.rates.On("ResolveLimits", mock.Anything, "zaad").Return(models.LimitRange{
		Min: decimal.RequireFromString("200"),
		Max: decimal.RequireFromString("500"),
	}, nil)

	_, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeAmountOutOfRange))
	appErr, _ := apperrors.AsAppError(err)
	assert.Contains(t, appErr.Message, "$200.00")
	assert.Contains(t, appErr.Message, "$500.00")
}

func TestCreateOrder_InsufficientBalance(t *testing.T) {
	f := newOrderFixture()
	f.rates.On("ResolveRate", mock.Anything, "zaad", "premier").Return(&models.ResolvedRate{
		Rate: decimal.RequireFromString("0.98"),
	}, nil)
	f.rates.On("ResolveLimits", mock.Anything, mock.Anything).Return(wideLimits(), nil)
	f.ledger.On("GetBalance", mock.Anything, "premier").Return(decimal.RequireFromString("10"), nil)

	_, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientBalance))
	f.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_AmountMismatch(t *testing.T) {
	f := newOrderFixture()
	f.expectHappyCreate()

	in := validInput()
	// 100 * 0.98 = 98; anything more than 0.02 away is rejected.
	in.ReceiveAmount = decimal.RequireFromString("98.05")

	_, err := f.svc.CreateOrder(context.Background(), in)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeAmountMismatch))
}

func TestCreateOrder_WithinTolerance(t *testing.T) {
	f := newOrderFixture()
	f.expectHappyCreate()
	f.orderRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	in := validInput()
	in.ReceiveAmount = decimal.RequireFromString("98.02")

	_, err := f.svc.CreateOrder(context.Background(), in)

	assert.NoError(t, err)
}

func TestCreateOrder_WalletNotConfigured(t *testing.T) {
	f := newOrderFixture()
	f.rates.On("ResolveRate", mock.Anything, "zaad", "premier").Return(&models.ResolvedRate{
		Rate: decimal.RequireFromString("0.98"),
	}, nil)
	f.rates.On("ResolveLimits", mock.Anything, mock.Anything).Return(wideLimits(), nil)
	f.ledger.On("GetBalance", mock.Anything, "premier").Return(decimal.RequireFromString("5000"), nil)
	f.walletRepo.On("Get", mock.Anything, "premier").Return(nil, repository.ErrNotFound)

	_, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeWalletNotConfigured))
}

func pendingOrder() *models.Order {
	return &models.Order{
		OrderID:       "DGL-2026-000007",
		FullName:      "Ayan Warsame",
		PhoneNumber:   "+252611234567",
		SendMethod:    "zaad",
		ReceiveMethod: "premier",
		SendAmount:    decimal.RequireFromString("100"),
		ReceiveAmount: decimal.RequireFromString("98"),
		Status:        models.OrderStatusPending,
	}
}

func TestUpdateStatus_PendingToPaid(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.ledger.On("Reserve", mock.Anything, "premier", order.ReceiveAmount).Return(nil)
	f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.Status == models.OrderStatusPaid && o.ScheduledCompletionAt != nil
	}), models.OrderStatusPending).Return(nil)

	updated, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusPaid, "customer")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)
	assert.Contains(t, f.timers.started, order.OrderID)
	assert.Contains(t, f.mailer.payments, order.OrderID)
	assert.Contains(t, f.broadcaster.types(), "order_update")
}

func TestUpdateStatus_PaidFailsWhenReserveFails(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.ledger.On("Reserve", mock.Anything, "premier", order.ReceiveAmount).
		Return(apperrors.NewInsufficientBalance("premier"))

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusPaid, "customer")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientBalance))
	f.orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.timers.started)
}

func TestUpdateStatus_PaidRollsBackReservationOnUpdateFailure(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.ledger.On("Reserve", mock.Anything, "premier", order.ReceiveAmount).Return(nil)
	f.orderRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("write failed"))
	f.ledger.On("Release", mock.Anything, "premier", order.ReceiveAmount).Return(nil)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusPaid, "customer")

	assert.Error(t, err)
	f.ledger.AssertCalled(t, "Release", mock.Anything, "premier", order.ReceiveAmount)
	assert.Empty(t, f.timers.started)
}

func TestUpdateStatus_PaidLostRaceReleasesReservation(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.ledger.On("Reserve", mock.Anything, "premier", order.ReceiveAmount).Return(nil)
	// A concurrent transition committed between our read and our write.
	f.orderRepo.On("Update", mock.Anything, mock.Anything, models.OrderStatusPending).
		Return(repository.ErrStatusConflict)
	f.ledger.On("Release", mock.Anything, "premier", order.ReceiveAmount).Return(nil)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusPaid, "customer")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatus), "got %v", err)
	appErr, _ := apperrors.AsAppError(err)
	assert.Equal(t, 409, appErr.Status)
	// Only the winning transition's reservation may stand.
	f.ledger.AssertCalled(t, "Release", mock.Anything, "premier", order.ReceiveAmount)
	assert.Empty(t, f.timers.started)
	assert.Empty(t, f.mailer.payments)
}

func TestUpdateStatus_CancelLostRaceReReserves(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	order.Status = models.OrderStatusPaid
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.guard.On("CheckLimit", mock.Anything, order.PhoneNumber).Return(true, 2, nil)
	f.ledger.On("Release", mock.Anything, "premier", order.ReceiveAmount).Return(nil)
	f.orderRepo.On("Update", mock.Anything, mock.Anything, models.OrderStatusPaid).
		Return(repository.ErrStatusConflict)
	f.ledger.On("Reserve", mock.Anything, "premier", order.ReceiveAmount).Return(nil)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusCancelled, "customer")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatus))
	f.ledger.AssertCalled(t, "Reserve", mock.Anything, "premier", order.ReceiveAmount)
	f.guard.AssertNotCalled(t, "RecordCancellation", mock.Anything, mock.Anything)
}

func TestUpdateStatus_TerminalOrdersAreImmutable(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newOrderFixture()
			order := pendingOrder()
			order.Status = status
			f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)

			_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusPaid, "admin")

			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatus))
		})
	}
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.UpdateStatus(context.Background(), "DGL-2026-000007", "shipped", "admin")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatus))
}

func TestUpdateStatus_ProcessingOnlyFromPaid(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusProcessing, "admin")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatus))
}

func TestUpdateStatus_CompletedFromPaid(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	order.Status = models.OrderStatusPaid
	scheduled := time.Now().Add(10 * time.Minute)
	order.ScheduledCompletionAt = &scheduled
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.Status == models.OrderStatusCompleted && o.ScheduledCompletionAt == nil
	}), models.OrderStatusPaid).Return(nil)

	updated, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusCompleted, "admin")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)
	assert.Contains(t, f.timers.cleared, order.OrderID)
	assert.Contains(t, f.mailer.completions, order.OrderID)
	// Completion never touches the ledger; the paid transition already did.
	f.ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_CancelPendingSkipsRelease(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.guard.On("CheckLimit", mock.Anything, order.PhoneNumber).Return(true, 2, nil)
	f.orderRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.guard.On("RecordCancellation", mock.Anything, order.PhoneNumber).Return(nil)

	updated, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusCancelled, "customer")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	f.ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.mailer.completions)
}

func TestUpdateStatus_CancelPaidReleasesReservation(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	order.Status = models.OrderStatusPaid
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.guard.On("CheckLimit", mock.Anything, order.PhoneNumber).Return(true, 1, nil)
	f.ledger.On("Release", mock.Anything, "premier", order.ReceiveAmount).Return(nil)
	f.orderRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.guard.On("RecordCancellation", mock.Anything, order.PhoneNumber).Return(nil)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusCancelled, "customer")

	assert.NoError(t, err)
	f.ledger.AssertCalled(t, "Release", mock.Anything, "premier", order.ReceiveAmount)
	assert.Contains(t, f.timers.cleared, order.OrderID)
}

func TestUpdateStatus_CancelBlockedByGuard(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
	f.guard.On("CheckLimit", mock.Anything, order.PhoneNumber).Return(false, 0, nil)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusCancelled, "customer")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCancellationLimitExceeded))
	f.orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	f.guard.AssertNotCalled(t, "RecordCancellation", mock.Anything, mock.Anything)
}

func TestUpdateStatus_SameStatusIsNoOp(t *testing.T) {
	f := newOrderFixture()
	order := pendingOrder()
	order.Status = models.OrderStatusPaid
	f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)

	updated, err := f.svc.UpdateStatus(context.Background(), order.OrderID, models.OrderStatusPaid, "admin")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)
	f.orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoComplete(t *testing.T) {
	t.Run("completes a paid order", func(t *testing.T) {
		f := newOrderFixture()
		order := pendingOrder()
		order.Status = models.OrderStatusPaid
		f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
			return o.Status == models.OrderStatusCompleted
		}), models.OrderStatusPaid).Return(nil)

		err := f.svc.AutoComplete(context.Background(), order.OrderID)

		assert.NoError(t, err)
		assert.Contains(t, f.mailer.completions, order.OrderID)
	})

	t.Run("skips an order that left paid", func(t *testing.T) {
		f := newOrderFixture()
		order := pendingOrder()
		order.Status = models.OrderStatusCancelled
		f.orderRepo.On("GetByOrderID", mock.Anything, order.OrderID).Return(order, nil)

		err := f.svc.AutoComplete(context.Background(), order.OrderID)

		assert.NoError(t, err)
		f.orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown order is not an error", func(t *testing.T) {
		f := newOrderFixture()
		f.orderRepo.On("GetByOrderID", mock.Anything, "DGL-2026-999999").
			Return(nil, repository.ErrNotFound)

		err := f.svc.AutoComplete(context.Background(), "DGL-2026-999999")

		assert.NoError(t, err)
	})
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newOrderFixture()
	f.orderRepo.On("GetByOrderID", mock.Anything, "DGL-2026-999999").
		Return(nil, repository.ErrNotFound)

	_, err := f.svc.GetOrder(context.Background(), "DGL-2026-999999")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
