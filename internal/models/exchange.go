package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExchangeRate is an admin-configured rate for a currency pair. Only stored
// rates exist; a missing pair may still resolve through the inverse pair.
type ExchangeRate struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	FromCurrency string             `bson:"from_currency" json:"from_currency"`
	ToCurrency   string             `bson:"to_currency" json:"to_currency"`
	Rate         decimal.Decimal    `bson:"rate" json:"rate"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// ExchangeRateHistory is an append-only record of a rate change.
type ExchangeRateHistory struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	FromCurrency string             `bson:"from_currency" json:"from_currency"`
	ToCurrency   string             `bson:"to_currency" json:"to_currency"`
	OldRate      decimal.Decimal    `bson:"old_rate" json:"old_rate"`
	NewRate      decimal.Decimal    `bson:"new_rate" json:"new_rate"`
	ChangedBy    string             `bson:"changed_by" json:"changed_by"`
	ChangeReason string             `bson:"change_reason,omitempty" json:"change_reason,omitempty"`
	ChangedAt    time.Time          `bson:"changed_at" json:"changed_at"`
}

// ResolvedRate is the result of a rate lookup, direct or inverse-derived.
type ResolvedRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Inverted  bool            `json:"inverted"`
	UpdatedAt time.Time       `json:"last_updated"`
}

// CurrencyLimit is a per-currency min/max transaction override.
type CurrencyLimit struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Currency  string             `bson:"currency" json:"currency"`
	MinAmount decimal.Decimal    `bson:"min_amount" json:"min_amount"`
	MaxAmount decimal.Decimal    `bson:"max_amount" json:"max_amount"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// LimitRange is a resolved min/max pair, override or universal defaults.
type LimitRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Contains reports whether amount falls inside the inclusive range.
func (l LimitRange) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(l.Min) && amount.LessThanOrEqual(l.Max)
}

// WalletAddress maps a payment method to the exchange-owned deposit address
// shown to customers.
type WalletAddress struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Method    string             `bson:"method" json:"method"`
	Address   string             `bson:"address" json:"address"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// CurrencyBalance is the exchange's available balance for one currency.
type CurrencyBalance struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Currency  string             `bson:"currency" json:"currency"`
	Amount    decimal.Decimal    `bson:"amount" json:"amount"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ContactMessage is a customer inquiry with at most one admin reply.
type ContactMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	Subject       string             `bson:"subject" json:"subject"`
	Message       string             `bson:"message" json:"message"`
	AdminResponse string             `bson:"admin_response,omitempty" json:"admin_response,omitempty"`
	ResponseDate  *time.Time         `bson:"response_date,omitempty" json:"response_date,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// System status values for the balance kill-switch.
const (
	SystemStatusOn  = "on"
	SystemStatusOff = "off"
)
