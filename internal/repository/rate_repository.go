package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
)

type RateRepository interface {
	GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
	UpsertRate(ctx context.Context, rate *models.ExchangeRate) error
	ListRates(ctx context.Context) ([]models.ExchangeRate, error)
	AppendHistory(ctx context.Context, entry *models.ExchangeRateHistory) error
	ListHistory(ctx context.Context, from, to string, limit int) ([]models.ExchangeRateHistory, error)
}

type rateRepository struct {
	rates   *mongo.Collection
	history *mongo.Collection
}

func NewRateRepository(db *Database) RateRepository {
	return &rateRepository{
		rates:   db.GetCollection("exchange_rates"),
		history: db.GetCollection("exchange_rate_history"),
	}
}

func (r *rateRepository) GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	filter := bson.M{"from_currency": from, "to_currency": to}

	err := r.rates.FindOne(ctx, filter).Decode(&rate)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	return &rate, nil
}

func (r *rateRepository) UpsertRate(ctx context.Context, rate *models.ExchangeRate) error {
	rate.UpdatedAt = time.Now()

	filter := bson.M{"from_currency": rate.FromCurrency, "to_currency": rate.ToCurrency}
	update := bson.M{"$set": bson.M{
		"from_currency": rate.FromCurrency,
		"to_currency":   rate.ToCurrency,
		"rate":          rate.Rate,
		"updated_at":    rate.UpdatedAt,
	}}

	_, err := r.rates.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert exchange rate: %w", err)
	}
	return nil
}

func (r *rateRepository) ListRates(ctx context.Context) ([]models.ExchangeRate, error) {
	cursor, err := r.rates.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{
		{Key: "from_currency", Value: 1},
		{Key: "to_currency", Value: 1},
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange rates: %w", err)
	}
	defer cursor.Close(ctx)

	var rates []models.ExchangeRate
	if err := cursor.All(ctx, &rates); err != nil {
		return nil, fmt.Errorf("failed to decode exchange rates: %w", err)
	}
	return rates, nil
}

func (r *rateRepository) AppendHistory(ctx context.Context, entry *models.ExchangeRateHistory) error {
	entry.ChangedAt = time.Now()
	if _, err := r.history.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append rate history: %w", err)
	}
	return nil
}

func (r *rateRepository) ListHistory(ctx context.Context, from, to string, limit int) ([]models.ExchangeRateHistory, error) {
	filter := bson.M{}
	if from != "" {
		filter["from_currency"] = from
	}
	if to != "" {
		filter["to_currency"] = to
	}

	opts := options.Find().SetSort(bson.M{"changed_at": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate history: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.ExchangeRateHistory
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode rate history: %w", err)
	}
	return entries, nil
}
