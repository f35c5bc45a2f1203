package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
)

// ErrStatusConflict is returned when an order update loses a race: the order
// exists but its status is no longer the one the caller read.
var ErrStatusConflict = errors.New("order status changed concurrently")

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status   models.OrderStatus
	Phone    string
	Page     int
	PageSize int
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	// Update persists the order only while its stored status still equals
	// prev, so concurrent transitions cannot both commit. A lost race is
	// reported as ErrStatusConflict.
	Update(ctx context.Context, order *models.Order, prev models.OrderStatus) error
	List(ctx context.Context, filter *OrderFilter) ([]models.Order, int64, error)
	// ListOverdue returns paid orders whose scheduled completion time has
	// passed, used by the restart-recovery sweep.
	ListOverdue(ctx context.Context, now time.Time) ([]models.Order, error)
}

type orderRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	prefix     string
}

func NewOrderRepository(db *Database, orderNumberPrefix string) OrderRepository {
	return &orderRepository{
		collection: db.GetCollection("orders"),
		counters:   db.GetCollection("counters"),
		prefix:     orderNumberPrefix,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	if order.OrderID == "" {
		seq, err := r.nextSequence(ctx)
		if err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}
		order.OrderID = models.NewOrderID(r.prefix, seq)
	}

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("order %s already exists", order.OrderID)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *orderRepository) nextSequence(ctx context.Context) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "orders"},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *models.Order, prev models.OrderStatus) error {
	order.UpdatedAt = time.Now()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": order.ID, "status": prev},
		bson.M{"$set": order},
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a vanished order from a transition that lost the race.
		if err := r.collection.FindOne(ctx, bson.M{"_id": order.ID}).Err(); err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter *OrderFilter) ([]models.Order, int64, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Status != "" {
			query["status"] = filter.Status
		}
		if filter.Phone != "" {
			query["phone_number"] = filter.Phone
		}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if filter != nil && filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * filter.PageSize))
		opts.SetLimit(int64(filter.PageSize))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.Order, error) {
	query := bson.M{
		"status":                  models.OrderStatusPaid,
		"scheduled_completion_at": bson.M{"$lte": now},
	}

	cursor, err := r.collection.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode overdue orders: %w", err)
	}

	return orders, nil
}
