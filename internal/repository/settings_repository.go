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

type SettingsRepository interface {
	GetSystemStatus(ctx context.Context) (string, error)
	SetSystemStatus(ctx context.Context, status string) error
}

type settingsRepository struct {
	collection *mongo.Collection
}

func NewSettingsRepository(db *Database) SettingsRepository {
	return &settingsRepository{
		collection: db.GetCollection("settings"),
	}
}

func (r *settingsRepository) GetSystemStatus(ctx context.Context) (string, error) {
	var doc struct {
		Value string `bson:"value"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": "system_status"}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.SystemStatusOn, nil
		}
		return "", fmt.Errorf("failed to get system status: %w", err)
	}
	return doc.Value, nil
}

func (r *settingsRepository) SetSystemStatus(ctx context.Context, status string) error {
	update := bson.M{"$set": bson.M{
		"value":      status,
		"updated_at": time.Now(),
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": "system_status"}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set system status: %w", err)
	}
	return nil
}
