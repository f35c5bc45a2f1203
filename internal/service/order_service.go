package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/monitoring"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

// senderAccountRequired lists send methods where the customer must identify
// the account the payment will come from.
var senderAccountRequired = map[string]bool{
	"zaad":    true,
	"sahal":   true,
	"evc":     true,
	"evcplus": true,
	"edahab":  true,
	"premier": true,
}

// RateResolver is the slice of the rate service the order workflow needs.
type RateResolver interface {
	ResolveRate(ctx context.Context, from, to string) (*models.ResolvedRate, error)
	ResolveLimits(ctx context.Context, currency string) (models.LimitRange, error)
}

// BalanceLedger is the slice of the balance service the order workflow needs.
type BalanceLedger interface {
	GetBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	Reserve(ctx context.Context, currency string, amount decimal.Decimal) error
	Release(ctx context.Context, currency string, amount decimal.Decimal) error
}

// OrderMailer sends transactional emails. All sends are best-effort.
type OrderMailer interface {
	SendOrderConfirmation(order *models.Order) bool
	SendPaymentConfirmation(order *models.Order) bool
	SendOrderCompletion(order *models.Order) bool
	SendStatusUpdate(order *models.Order) bool
}

// EventPublisher pushes order events to the message broker, best-effort.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error
}

// Timers is the slice of the timer manager the order workflow needs.
type Timers interface {
	Start(orderID string)
	Clear(orderID string)
}

type CreateOrderInput struct {
	FullName      string
	PhoneNumber   string
	Email         string
	SenderAccount string
	SendMethod    string
	ReceiveMethod string
	SendAmount    decimal.Decimal
	ReceiveAmount decimal.Decimal
	WalletAddress string
}

type OrderService interface {
	CreateOrder(ctx context.Context, input *CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, filter *repository.OrderFilter) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, changedBy string) (*models.Order, error)
	// AutoComplete finishes a paid order whose processing window elapsed.
	// No-op when the order already left "paid".
	AutoComplete(ctx context.Context, orderID string) error
}

type orderService struct {
	orderRepo  repository.OrderRepository
	walletRepo repository.WalletAddressRepository
	rates      RateResolver
	balances   BalanceLedger
	timers     Timers
	guard      CancellationGuard
	mailer     OrderMailer
	publisher  EventPublisher
	broadcast  Broadcaster

	tolerance decimal.Decimal
	window    time.Duration
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	walletRepo repository.WalletAddressRepository,
	rates RateResolver,
	balances BalanceLedger,
	timers Timers,
	guard CancellationGuard,
	orderMailer OrderMailer,
	publisher EventPublisher,
	broadcast Broadcaster,
	tolerance decimal.Decimal,
	window time.Duration,
) OrderService {
	if broadcast == nil {
		broadcast = NopBroadcaster()
	}
	return &orderService{
		orderRepo:  orderRepo,
		walletRepo: walletRepo,
		rates:      rates,
		balances:   balances,
		timers:     timers,
		guard:      guard,
		mailer:     orderMailer,
		publisher:  publisher,
		broadcast:  broadcast,
		tolerance:  tolerance,
		window:     window,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*models.Order, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	sendMethod := normalizeCurrency(input.SendMethod)
	receiveMethod := normalizeCurrency(input.ReceiveMethod)

	resolved, err := s.rates.ResolveRate(ctx, sendMethod, receiveMethod)
	if err != nil {
		return nil, err
	}

	sendLimits, err := s.rates.ResolveLimits(ctx, sendMethod)
	if err != nil {
		return nil, err
	}
	if !sendLimits.Contains(input.SendAmount) {
		return nil, apperrors.NewAmountOutOfRange(fmt.Sprintf(
			"Send amount must be between $%s and $%s",
			sendLimits.Min.StringFixed(2), sendLimits.Max.StringFixed(2)))
	}

	receiveLimits, err := s.rates.ResolveLimits(ctx, receiveMethod)
	if err != nil {
		return nil, err
	}
	if !receiveLimits.Contains(input.ReceiveAmount) {
		return nil, apperrors.NewAmountOutOfRange(fmt.Sprintf(
			"Receive amount must be between $%s and $%s",
			receiveLimits.Min.StringFixed(2), receiveLimits.Max.StringFixed(2)))
	}

	available, err := s.balances.GetBalance(ctx, receiveMethod)
	if err != nil {
		return nil, err
	}
	if input.ReceiveAmount.GreaterThan(available) {
		return nil, apperrors.NewInsufficientBalance(receiveMethod)
	}

	// Guard against stale client-side rate math.
	expected := input.SendAmount.Mul(resolved.Rate)
	if expected.Sub(input.ReceiveAmount).Abs().GreaterThan(s.tolerance) {
		return nil, apperrors.NewAmountMismatch(expected.StringFixed(2), input.ReceiveAmount.StringFixed(2))
	}

	paymentWallet, err := s.walletRepo.Get(ctx, receiveMethod)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewWalletNotConfigured(receiveMethod)
		}
		return nil, err
	}

	order := &models.Order{
		FullName:      input.FullName,
		PhoneNumber:   input.PhoneNumber,
		Email:         input.Email,
		SenderAccount: input.SenderAccount,
		SendMethod:    sendMethod,
		ReceiveMethod: receiveMethod,
		SendAmount:    input.SendAmount,
		ReceiveAmount: input.ReceiveAmount,
		ExchangeRate:  resolved.Rate,
		WalletAddress: input.WalletAddress,
		PaymentWallet: paymentWallet.Address,
		Status:        models.OrderStatusPending,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	monitoring.RecordOrderCreated(sendMethod, receiveMethod)

	// Side effects are best-effort: the order exists regardless.
	s.mailer.SendOrderConfirmation(order)
	s.broadcast.Broadcast(notifier.NewEvent(notifier.EventNewOrder, order))
	s.publishEvent(ctx, "created", order)

	logrus.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"send":     fmt.Sprintf("%s %s", order.SendAmount, sendMethod),
		"receive":  fmt.Sprintf("%s %s", order.ReceiveAmount, receiveMethod),
	}).Info("order created")

	return order, nil
}

func (s *orderService) validateInput(input *CreateOrderInput) error {
	if input == nil {
		return apperrors.NewValidationError("Request body is required")
	}
	if input.FullName == "" {
		return apperrors.NewValidationError("Full name is required")
	}
	if input.PhoneNumber == "" {
		return apperrors.NewValidationError("Phone number is required")
	}
	if input.WalletAddress == "" {
		return apperrors.NewValidationError("Wallet address is required")
	}
	if input.SendMethod == "" || input.ReceiveMethod == "" {
		return apperrors.NewValidationError("Send and receive methods are required")
	}
	if normalizeCurrency(input.SendMethod) == normalizeCurrency(input.ReceiveMethod) {
		return apperrors.NewValidationError("Send and receive methods must differ")
	}
	if input.SendAmount.LessThanOrEqual(decimal.Zero) || input.ReceiveAmount.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("Amounts must be positive")
	}
	if senderAccountRequired[normalizeCurrency(input.SendMethod)] && input.SenderAccount == "" {
		return apperrors.NewValidationError(
			fmt.Sprintf("Sender account is required for %s", input.SendMethod))
	}
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("Order")
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter *repository.OrderFilter) ([]models.Order, int64, error) {
	return s.orderRepo.List(ctx, filter)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, changedBy string) (*models.Order, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewInvalidStatus(string(newStatus))
	}

	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("Order")
		}
		return nil, err
	}

	if order.IsFinal() {
		return nil, apperrors.NewInvalidStatus(fmt.Sprintf(
			"order is already %s", order.Status))
	}
	if order.Status == newStatus {
		return order, nil
	}

	switch newStatus {
	case models.OrderStatusPaid:
		err = s.transitionToPaid(ctx, order)
	case models.OrderStatusProcessing:
		err = s.transitionToProcessing(ctx, order)
	case models.OrderStatusCompleted:
		err = s.transitionToCompleted(ctx, order)
	case models.OrderStatusCancelled:
		err = s.transitionToCancelled(ctx, order)
	default:
		err = apperrors.NewInvalidStatus(string(newStatus))
	}
	if err != nil {
		return nil, err
	}

	monitoring.RecordStatusTransition(string(newStatus))

	// Broadcast fires on every committed transition, whatever the email did.
	s.broadcast.Broadcast(notifier.NewEvent(notifier.EventOrderUpdate, order))
	s.publishEvent(ctx, string(newStatus), order)

	logrus.WithFields(logrus.Fields{
		"order_id":   order.OrderID,
		"status":     order.Status,
		"changed_by": changedBy,
	}).Info("order status updated")

	return order, nil
}

// transitionToPaid reserves the receive amount and starts the processing
// timer. Reservation happens here, not at creation: creation only checks
// availability.
func (s *orderService) transitionToPaid(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderStatusPending {
		return apperrors.NewInvalidStatus(fmt.Sprintf(
			"cannot mark a %s order as paid", order.Status))
	}

	if err := s.balances.Reserve(ctx, order.ReceiveMethod, order.ReceiveAmount); err != nil {
		return err
	}

	scheduled := time.Now().Add(s.window)
	order.Status = models.OrderStatusPaid
	order.ScheduledCompletionAt = &scheduled

	if err := s.orderRepo.Update(ctx, order, models.OrderStatusPending); err != nil {
		// Roll the reservation back; the transition must not half-commit.
		// This also covers the lost-race case, where a concurrent transition
		// committed first and only one reservation may stand.
		if relErr := s.balances.Release(ctx, order.ReceiveMethod, order.ReceiveAmount); relErr != nil {
			logrus.WithError(relErr).WithField("order_id", order.OrderID).
				Error("failed to roll back reservation after update failure")
		}
		order.Status = models.OrderStatusPending
		order.ScheduledCompletionAt = nil
		if errors.Is(err, repository.ErrStatusConflict) {
			return apperrors.NewStatusConflict()
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	s.timers.Start(order.OrderID)
	s.mailer.SendPaymentConfirmation(order)
	return nil
}

func (s *orderService) transitionToProcessing(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderStatusPaid {
		return apperrors.NewInvalidStatus(fmt.Sprintf(
			"cannot move a %s order to processing", order.Status))
	}

	order.Status = models.OrderStatusProcessing
	if err := s.orderRepo.Update(ctx, order, models.OrderStatusPaid); err != nil {
		order.Status = models.OrderStatusPaid
		if errors.Is(err, repository.ErrStatusConflict) {
			return apperrors.NewStatusConflict()
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	s.mailer.SendStatusUpdate(order)
	return nil
}

func (s *orderService) transitionToCompleted(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderStatusPaid && order.Status != models.OrderStatusProcessing {
		return apperrors.NewInvalidStatus(fmt.Sprintf(
			"cannot complete a %s order", order.Status))
	}

	prev := order.Status
	prevScheduled := order.ScheduledCompletionAt
	order.Status = models.OrderStatusCompleted
	order.ScheduledCompletionAt = nil

	if err := s.orderRepo.Update(ctx, order, prev); err != nil {
		order.Status = prev
		order.ScheduledCompletionAt = prevScheduled
		if errors.Is(err, repository.ErrStatusConflict) {
			return apperrors.NewStatusConflict()
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	// Balance was reserved at the paid transition; completion changes nothing.
	s.timers.Clear(order.OrderID)
	s.mailer.SendOrderCompletion(order)
	return nil
}

func (s *orderService) transitionToCancelled(ctx context.Context, order *models.Order) error {
	if !order.IsCancellable() {
		return apperrors.NewInvalidStatus(fmt.Sprintf(
			"cannot cancel a %s order", order.Status))
	}

	identifier := order.CustomerIdentifier()
	allowed, _, err := s.guard.CheckLimit(ctx, identifier)
	if err == nil && !allowed {
		return apperrors.NewCancellationLimitExceeded()
	}

	wasReserved := order.Status == models.OrderStatusPaid
	if wasReserved {
		if err := s.balances.Release(ctx, order.ReceiveMethod, order.ReceiveAmount); err != nil {
			return err
		}
	}

	prev := order.Status
	prevScheduled := order.ScheduledCompletionAt
	order.Status = models.OrderStatusCancelled
	order.ScheduledCompletionAt = nil

	if err := s.orderRepo.Update(ctx, order, prev); err != nil {
		order.Status = prev
		order.ScheduledCompletionAt = prevScheduled
		if wasReserved {
			if resErr := s.balances.Reserve(ctx, order.ReceiveMethod, order.ReceiveAmount); resErr != nil {
				logrus.WithError(resErr).WithField("order_id", order.OrderID).
					Error("failed to re-reserve after cancellation rollback")
			}
		}
		if errors.Is(err, repository.ErrStatusConflict) {
			return apperrors.NewStatusConflict()
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	s.timers.Clear(order.OrderID)
	if err := s.guard.RecordCancellation(ctx, identifier); err != nil {
		logrus.WithError(err).WithField("order_id", order.OrderID).
			Warn("cancellation not recorded")
	}
	// Cancellation sends no completion email.
	return nil
}

func (s *orderService) AutoComplete(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			logrus.WithField("order_id", orderID).Warn("auto-complete for unknown order")
			return nil
		}
		return err
	}

	// The timer may race a manual transition; fire is a no-op once the
	// order has left paid.
	if order.Status != models.OrderStatusPaid {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"status":   order.Status,
		}).Debug("auto-complete skipped, order no longer paid")
		return nil
	}

	_, err = s.UpdateStatus(ctx, orderID, models.OrderStatusCompleted, "system")
	return err
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, eventType, order); err != nil {
		logrus.WithError(err).WithField("order_id", order.OrderID).
			Warn("failed to publish order event")
	}
}
