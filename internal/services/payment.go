package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jobhubke/mpesa-relay-gobackend/internal/models"
)

// StkPusher is the slice of the Daraja client the payment flow needs.
type StkPusher interface {
	STKPush(ctx context.Context, phone string, amount float64, accountRef, description string) (*STKPushResponse, error)
}

type PaymentService struct {
	store PaymentStore
	mpesa StkPusher
}

func NewPaymentService(store PaymentStore, mpesa StkPusher) *PaymentService {
	return &PaymentService{store: store, mpesa: mpesa}
}

// InitiatePayment triggers an STK push on the payer's phone and records the
// pending payment. No record is written unless the provider accepts the
// push, so a provider failure leaves the store untouched.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID, phone string, amount float64) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	userID = strings.TrimSpace(userID)
	phone = strings.TrimSpace(phone)

	if userID == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}
	if phone == "" {
		return nil, fmt.Errorf("phone cannot be empty")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	accountRef := "JobPortal-" + userID
	resp, err := s.mpesa.STKPush(ctx, phone, amount, accountRef, "Job application fee")
	if err != nil {
		log.Printf("STK push failed for user %s: %v", userID, err)
		return nil, err
	}

	payment := &models.Payment{
		ReferenceID:       uuid.NewString(),
		UserID:            userID,
		Phone:             phone,
		Amount:            amount,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Status:            models.StatusPending,
	}
	if err := s.store.Create(ctx, payment); err != nil {
		// The prompt is already on the payer's phone at this point; the
		// record loss is surfaced, not silently swallowed.
		log.Printf("Failed to persist pending payment for CheckoutRequestID=%s: %v", resp.CheckoutRequestID, err)
		return nil, err
	}

	log.Printf("Payment created: ID=%s, CheckoutRequestID=%s, user=%s", payment.ID.Hex(), payment.CheckoutRequestID, userID)
	return payment, nil
}

// HandleCallback resolves a pending payment from a Daraja result callback.
// ResultCode 0 is success, anything else failure. A callback for a payment
// already in a terminal state is a duplicate delivery and a no-op.
func (s *PaymentService) HandleCallback(ctx context.Context, envelope *models.STKCallbackEnvelope) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return fmt.Errorf("%w: missing CheckoutRequestID", ErrInvalidCallback)
	}

	status := models.StatusFailed
	receipt := ""
	if cb.ResultCode == 0 {
		status = models.StatusSuccess
		receipt = cb.ReceiptNumber()
	}

	updated, err := s.store.ResolvePending(ctx, cb.CheckoutRequestID, status, receipt)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Failed to resolve payment for CheckoutRequestID=%s: %v", cb.CheckoutRequestID, err)
			return fmt.Errorf("failed to update payment: %v", err)
		}
		// No pending match: either the payment is unknown or it was
		// already resolved by an earlier delivery.
		existing, findErr := s.store.FindByCheckoutID(ctx, cb.CheckoutRequestID)
		if findErr != nil {
			if errors.Is(findErr, mongo.ErrNoDocuments) {
				log.Printf("Callback for unknown CheckoutRequestID=%s", cb.CheckoutRequestID)
				return fmt.Errorf("%w: CheckoutRequestID=%s", ErrPaymentNotFound, cb.CheckoutRequestID)
			}
			log.Printf("Failed to look up payment for CheckoutRequestID=%s: %v", cb.CheckoutRequestID, findErr)
			return fmt.Errorf("failed to fetch payment: %v", findErr)
		}
		log.Printf("Duplicate callback for CheckoutRequestID=%s ignored, status already %s", cb.CheckoutRequestID, existing.Status)
		return nil
	}

	log.Printf("Payment resolved: ID=%s, CheckoutRequestID=%s, status=%s, receipt=%s",
		updated.ID.Hex(), cb.CheckoutRequestID, updated.Status, updated.TransactionID)
	return nil
}

// GetPaymentByID retrieves a single payment by its ID.
func (s *PaymentService) GetPaymentByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Payment not found for ID %s", paymentID)
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// GetPayments retrieves all payments with optional status and date filters.
func (s *PaymentService) GetPayments(ctx context.Context, statusFilter, startDate, endDate *string) ([]models.Payment, error) {
	return s.store.List(ctx, statusFilter, startDate, endDate)
}

func (s *PaymentService) GetPaymentsByUserID(ctx context.Context, userID string, statusFilter, startDate, endDate *string) ([]models.Payment, error) {
	return s.store.ListByUserID(ctx, userID, statusFilter, startDate, endDate)
}
