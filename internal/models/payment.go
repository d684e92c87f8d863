package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment statuses. A payment is created pending and moves exactly once
// to success or failed when the provider callback arrives.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Payment represents an STK Push charge document in MongoDB.
type Payment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReferenceID       string             `bson:"reference_id" json:"reference_id"`
	UserID            string             `bson:"user_id" json:"user_id"`
	Phone             string             `bson:"phone" json:"phone"`
	Amount            float64            `bson:"amount" json:"amount"`
	CheckoutRequestID string             `bson:"checkout_request_id" json:"checkout_request_id"`
	MerchantRequestID string             `bson:"merchant_request_id" json:"merchant_request_id"`
	TransactionID     string             `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"` // M-Pesa receipt number
	Status            string             `bson:"status" json:"status"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
