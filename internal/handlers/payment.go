package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jobhubke/mpesa-relay-gobackend/internal/models"
	"github.com/jobhubke/mpesa-relay-gobackend/internal/services"
)

type PaymentHandler struct {
	service *services.PaymentService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type stkPushRequest struct {
	UserID string  `json:"userId"`
	Phone  string  `json:"phone"`
	Amount float64 `json:"amount"`
}

// STKPush accepts a charge request and triggers the payment prompt.
func (h *PaymentHandler) STKPush(w http.ResponseWriter, r *http.Request) {
	var req stkPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		http.Error(w, `{"error":"userId is required"}`, http.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		http.Error(w, `{"error":"phone is required"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"amount must be positive"}`, http.StatusBadRequest)
		return
	}

	payment, err := h.service.InitiatePayment(r.Context(), req.UserID, req.Phone, req.Amount)
	if err != nil {
		// All upstream and persistence failures collapse to one generic
		// response; the cause goes to the log only.
		log.Printf("STK push initiation failed: %v", err)
		http.Error(w, `{"error":"STK Push failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"message":   "STK Push initiated",
		"paymentId": payment.ID.Hex(),
	}); err != nil {
		log.Printf("Failed to encode STK push response: %v", err)
	}
}

// Callback receives the asynchronous Daraja result notification. It always
// acknowledges with 200: Daraja retries non-2xx acks, and a malformed or
// unmatched callback will not become valid on redelivery.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var envelope models.STKCallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		log.Printf("Failed to decode callback payload: %v", err)
		acknowledge(w)
		return
	}

	if err := h.service.HandleCallback(r.Context(), &envelope); err != nil {
		log.Printf("Callback processing failed: %v", err)
	}
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"message": "Callback received"}); err != nil {
		log.Printf("Failed to encode callback ack: %v", err)
	}
}

// GetPayment retrieves a single payment by its ID.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentID"]
	if paymentID == "" {
		http.Error(w, `{"error":"Payment ID is required"}`, http.StatusBadRequest)
		return
	}

	payment, err := h.service.GetPaymentByID(r.Context(), paymentID)
	if err != nil {
		log.Printf("Failed to get payment %s: %v", paymentID, err)
		if errors.Is(err, services.ErrPaymentNotFound) {
			http.Error(w, `{"error":"payment not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf(`{"error":"Failed to fetch payment: %v"}`, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payment); err != nil {
		log.Printf("Failed to encode payment: %v", err)
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

// GetPayments lists payments with optional status and date range filters.
func (h *PaymentHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	statusPtr, startDatePtr, endDatePtr, ok := listFilters(w, r)
	if !ok {
		return
	}

	payments, err := h.service.GetPayments(r.Context(), statusPtr, startDatePtr, endDatePtr)
	if err != nil {
		log.Printf("Failed to fetch payments: %v", err)
		http.Error(w, fmt.Sprintf(`{"error":"Failed to fetch payments: %v"}`, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payments); err != nil {
		log.Printf("Failed to encode payments: %v", err)
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

func (h *PaymentHandler) GetPaymentsByUserID(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, `{"error":"User ID is required"}`, http.StatusBadRequest)
		return
	}

	statusPtr, startDatePtr, endDatePtr, ok := listFilters(w, r)
	if !ok {
		return
	}

	payments, err := h.service.GetPaymentsByUserID(r.Context(), userID, statusPtr, startDatePtr, endDatePtr)
	if err != nil {
		log.Printf("Failed to fetch payments for user %s: %v", userID, err)
		http.Error(w, fmt.Sprintf(`{"error":"Failed to fetch payments: %v"}`, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payments); err != nil {
		log.Printf("Failed to encode payments: %v", err)
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

func listFilters(w http.ResponseWriter, r *http.Request) (status, startDate, endDate *string, ok bool) {
	statusFilter := r.URL.Query().Get("status")
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")

	if statusFilter != "" && statusFilter != models.StatusPending && statusFilter != models.StatusSuccess && statusFilter != models.StatusFailed {
		http.Error(w, `{"error":"Invalid status filter, must be pending, success, or failed"}`, http.StatusBadRequest)
		return nil, nil, nil, false
	}

	if statusFilter != "" {
		status = &statusFilter
	}
	if start != "" {
		startDate = &start
	}
	if end != "" {
		endDate = &end
	}
	return status, startDate, endDate, true
}
