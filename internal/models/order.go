package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the five recognized order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order represents a customer exchange order between two payment methods
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OrderID       string             `bson:"order_id" json:"order_id"`
	FullName      string             `bson:"full_name" json:"full_name"`
	PhoneNumber   string             `bson:"phone_number" json:"phone_number"`
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`
	SenderAccount string             `bson:"sender_account,omitempty" json:"sender_account,omitempty"`

	SendMethod    string          `bson:"send_method" json:"send_method"`
	ReceiveMethod string          `bson:"receive_method" json:"receive_method"`
	SendAmount    decimal.Decimal `bson:"send_amount" json:"send_amount"`
	ReceiveAmount decimal.Decimal `bson:"receive_amount" json:"receive_amount"`
	ExchangeRate  decimal.Decimal `bson:"exchange_rate" json:"exchange_rate"`

	// WalletAddress is the customer's payout destination; PaymentWallet is
	// the exchange-owned address the customer pays into, resolved from the
	// wallet-address table at creation time.
	WalletAddress string `bson:"wallet_address" json:"wallet_address"`
	PaymentWallet string `bson:"payment_wallet" json:"payment_wallet"`

	Status                OrderStatus `bson:"status" json:"status"`
	ScheduledCompletionAt *time.Time  `bson:"scheduled_completion_at,omitempty" json:"scheduled_completion_at,omitempty"`
	CreatedAt             time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time   `bson:"updated_at" json:"updated_at"`
}

// IsFinal reports whether the order is in a terminal state.
func (o *Order) IsFinal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// IsCancellable reports whether cancellation is still permitted.
func (o *Order) IsCancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPaid
}

// CustomerIdentifier returns the identifier used by the cancellation guard:
// phone number when present, otherwise email.
func (o *Order) CustomerIdentifier() string {
	if o.PhoneNumber != "" {
		return o.PhoneNumber
	}
	return o.Email
}

// NewOrderID builds the public order number, e.g. DGL-2026-000042.
func NewOrderID(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, time.Now().Year(), seq)
}
