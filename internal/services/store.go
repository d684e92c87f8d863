package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobhubke/mpesa-relay-gobackend/internal/models"
)

// PaymentStore persists payment records. The Mongo implementation below is
// the production one; tests substitute their own.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	ResolvePending(ctx context.Context, checkoutRequestID, status, receipt string) (*models.Payment, error)
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, statusFilter, startDate, endDate *string) ([]models.Payment, error)
	ListByUserID(ctx context.Context, userID string, statusFilter, startDate, endDate *string) ([]models.Payment, error)
}

type MongoPaymentStore struct {
	collection *mongo.Collection
}

func NewMongoPaymentStore(db *mongo.Database) *MongoPaymentStore {
	return &MongoPaymentStore{collection: db.Collection("payments")}
}

// EnsureIndexes creates the indexes the lookups depend on. The unique
// checkout_request_id index is what makes callback correlation safe.
func (s *MongoPaymentStore) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.M{"checkout_request_id": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.M{"reference_id": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		log.Printf("Failed to create indexes: %v", err)
		return fmt.Errorf("failed to create indexes: %v", err)
	}
	return nil
}

func (s *MongoPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if _, err := s.collection.InsertOne(ctx, payment); err != nil {
		log.Printf("Failed to save payment %s: %v", payment.ID.Hex(), err)
		return fmt.Errorf("failed to save payment: %v", err)
	}
	return nil
}

// ResolvePending applies the terminal status to the pending payment matching
// checkoutRequestID. The status filter makes the transition a guarded,
// idempotent single update: a payment already in a terminal state is never
// overwritten, and concurrent duplicate callbacks race on one conditional
// update. Returns mongo.ErrNoDocuments when no pending match exists.
func (s *MongoPaymentStore) ResolvePending(ctx context.Context, checkoutRequestID, status, receipt string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	updateFields := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if receipt != "" {
		updateFields["transaction_id"] = receipt
	}

	filter := bson.M{"checkout_request_id": checkoutRequestID, "status": models.StatusPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Payment
	err := s.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": updateFields}, opts).Decode(&updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *MongoPaymentStore) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payment models.Payment
	if err := s.collection.FindOne(ctx, bson.M{"checkout_request_id": checkoutRequestID}).Decode(&payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *MongoPaymentStore) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		log.Printf("Invalid paymentID format: %s, error: %v", id, err)
		return nil, fmt.Errorf("invalid payment_id format: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payment models.Payment
	if err := s.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List retrieves payments with optional filtering by status and date range,
// newest first.
func (s *MongoPaymentStore) List(ctx context.Context, statusFilter, startDate, endDate *string) ([]models.Payment, error) {
	return s.list(ctx, bson.M{}, statusFilter, startDate, endDate)
}

func (s *MongoPaymentStore) ListByUserID(ctx context.Context, userID string, statusFilter, startDate, endDate *string) ([]models.Payment, error) {
	return s.list(ctx, bson.M{"user_id": userID}, statusFilter, startDate, endDate)
}

func (s *MongoPaymentStore) list(ctx context.Context, query bson.M, statusFilter, startDate, endDate *string) ([]models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if statusFilter != nil && *statusFilter != "" {
		if !map[string]bool{models.StatusPending: true, models.StatusSuccess: true, models.StatusFailed: true}[*statusFilter] {
			log.Printf("Invalid status filter: %s", *statusFilter)
			return nil, fmt.Errorf("invalid status filter, must be pending, success, or failed")
		}
		query["status"] = *statusFilter
	}

	if startDate != nil && *startDate != "" && endDate != nil && *endDate != "" {
		start, err := time.Parse(time.RFC3339, *startDate)
		if err != nil {
			log.Printf("Invalid start_date format: %s, error: %v", *startDate, err)
			return nil, fmt.Errorf("invalid start_date format: %v", err)
		}
		end, err := time.Parse(time.RFC3339, *endDate)
		if err != nil {
			log.Printf("Invalid end_date format: %s, error: %v", *endDate, err)
			return nil, fmt.Errorf("invalid end_date format: %v", err)
		}
		query["created_at"] = bson.M{
			"$gte": start,
			"$lte": end,
		}
	}

	cur, err := s.collection.Find(ctx, query, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		log.Printf("Failed to fetch payments: %v", err)
		return nil, fmt.Errorf("failed to fetch payments: %v", err)
	}
	defer cur.Close(ctx)

	var payments []models.Payment
	if err := cur.All(ctx, &payments); err != nil {
		log.Printf("Failed to decode payments: %v", err)
		return nil, fmt.Errorf("failed to decode payments: %v", err)
	}
	return payments, nil
}
