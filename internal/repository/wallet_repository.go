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

type WalletAddressRepository interface {
	Get(ctx context.Context, method string) (*models.WalletAddress, error)
	Upsert(ctx context.Context, wallet *models.WalletAddress) error
	List(ctx context.Context) ([]models.WalletAddress, error)
}

type walletAddressRepository struct {
	collection *mongo.Collection
}

func NewWalletAddressRepository(db *Database) WalletAddressRepository {
	return &walletAddressRepository{
		collection: db.GetCollection("wallet_addresses"),
	}
}

func (r *walletAddressRepository) Get(ctx context.Context, method string) (*models.WalletAddress, error) {
	var wallet models.WalletAddress
	err := r.collection.FindOne(ctx, bson.M{"method": method}).Decode(&wallet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet address: %w", err)
	}
	return &wallet, nil
}

func (r *walletAddressRepository) Upsert(ctx context.Context, wallet *models.WalletAddress) error {
	wallet.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"method":     wallet.Method,
		"address":    wallet.Address,
		"updated_at": wallet.UpdatedAt,
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"method": wallet.Method}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert wallet address: %w", err)
	}
	return nil
}

func (r *walletAddressRepository) List(ctx context.Context) ([]models.WalletAddress, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"method": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet addresses: %w", err)
	}
	defer cursor.Close(ctx)

	var wallets []models.WalletAddress
	if err := cursor.All(ctx, &wallets); err != nil {
		return nil, fmt.Errorf("failed to decode wallet addresses: %w", err)
	}
	return wallets, nil
}
