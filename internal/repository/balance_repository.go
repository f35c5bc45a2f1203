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

// BalanceRepository stores per-currency balances. Mutations are serialized by
// the balance service; the repository itself only reads and writes documents.
type BalanceRepository interface {
	GetByCurrency(ctx context.Context, currency string) (*models.CurrencyBalance, error)
	Upsert(ctx context.Context, balance *models.CurrencyBalance) error
	List(ctx context.Context) ([]models.CurrencyBalance, error)
}

type balanceRepository struct {
	collection *mongo.Collection
}

func NewBalanceRepository(db *Database) BalanceRepository {
	return &balanceRepository{
		collection: db.GetCollection("balances"),
	}
}

func (r *balanceRepository) GetByCurrency(ctx context.Context, currency string) (*models.CurrencyBalance, error) {
	var balance models.CurrencyBalance
	err := r.collection.FindOne(ctx, bson.M{"currency": currency}).Decode(&balance)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

func (r *balanceRepository) Upsert(ctx context.Context, balance *models.CurrencyBalance) error {
	balance.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"currency":   balance.Currency,
		"amount":     balance.Amount,
		"updated_at": balance.UpdatedAt,
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"currency": balance.Currency}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

func (r *balanceRepository) List(ctx context.Context) ([]models.CurrencyBalance, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"currency": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer cursor.Close(ctx)

	var balances []models.CurrencyBalance
	if err := cursor.All(ctx, &balances); err != nil {
		return nil, fmt.Errorf("failed to decode balances: %w", err)
	}
	return balances, nil
}
