package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
)

type LimitRepository interface {
	GetOverride(ctx context.Context, currency string) (*models.CurrencyLimit, error)
	UpsertOverride(ctx context.Context, limit *models.CurrencyLimit) error
	DeleteOverride(ctx context.Context, currency string) error
	ListOverrides(ctx context.Context) ([]models.CurrencyLimit, error)
	// PurgeOverrides removes every per-currency override. It accompanies a
	// universal-defaults update: the reset applies the new defaults to all
	// currencies, deliberately discarding customization.
	PurgeOverrides(ctx context.Context) error
	GetDefaults(ctx context.Context) (models.LimitRange, error)
	SetDefaults(ctx context.Context, defaults models.LimitRange) error
}

type limitRepository struct {
	limits   *mongo.Collection
	settings *mongo.Collection
}

func NewLimitRepository(db *Database) LimitRepository {
	return &limitRepository{
		limits:   db.GetCollection("currency_limits"),
		settings: db.GetCollection("settings"),
	}
}

func (r *limitRepository) GetOverride(ctx context.Context, currency string) (*models.CurrencyLimit, error) {
	var limit models.CurrencyLimit
	err := r.limits.FindOne(ctx, bson.M{"currency": currency}).Decode(&limit)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get currency limit: %w", err)
	}
	return &limit, nil
}

func (r *limitRepository) UpsertOverride(ctx context.Context, limit *models.CurrencyLimit) error {
	limit.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"currency":   limit.Currency,
		"min_amount": limit.MinAmount,
		"max_amount": limit.MaxAmount,
		"updated_at": limit.UpdatedAt,
	}}

	_, err := r.limits.UpdateOne(ctx, bson.M{"currency": limit.Currency}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert currency limit: %w", err)
	}
	return nil
}

func (r *limitRepository) DeleteOverride(ctx context.Context, currency string) error {
	result, err := r.limits.DeleteOne(ctx, bson.M{"currency": currency})
	if err != nil {
		return fmt.Errorf("failed to delete currency limit: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *limitRepository) ListOverrides(ctx context.Context) ([]models.CurrencyLimit, error) {
	cursor, err := r.limits.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"currency": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list currency limits: %w", err)
	}
	defer cursor.Close(ctx)

	var limits []models.CurrencyLimit
	if err := cursor.All(ctx, &limits); err != nil {
		return nil, fmt.Errorf("failed to decode currency limits: %w", err)
	}
	return limits, nil
}

func (r *limitRepository) PurgeOverrides(ctx context.Context) error {
	if _, err := r.limits.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to purge currency limits: %w", err)
	}
	return nil
}

type universalLimitsDoc struct {
	ID        string          `bson:"_id"`
	Min       decimal.Decimal `bson:"min"`
	Max       decimal.Decimal `bson:"max"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

func (r *limitRepository) GetDefaults(ctx context.Context) (models.LimitRange, error) {
	var doc universalLimitsDoc
	err := r.settings.FindOne(ctx, bson.M{"_id": "universal_limits"}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Process-wide defaults before any admin has set them.
			return models.LimitRange{
				Min: decimal.NewFromInt(5),
				Max: decimal.NewFromInt(10000),
			}, nil
		}
		return models.LimitRange{}, fmt.Errorf("failed to get universal limits: %w", err)
	}
	return models.LimitRange{Min: doc.Min, Max: doc.Max}, nil
}

func (r *limitRepository) SetDefaults(ctx context.Context, defaults models.LimitRange) error {
	update := bson.M{"$set": universalLimitsDoc{
		ID:        "universal_limits",
		Min:       defaults.Min,
		Max:       defaults.Max,
		UpdatedAt: time.Now(),
	}}

	_, err := r.settings.UpdateOne(ctx, bson.M{"_id": "universal_limits"}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set universal limits: %w", err)
	}
	return nil
}
