package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/jobhubke/mpesa-relay-gobackend/internal/config"
	"github.com/jobhubke/mpesa-relay-gobackend/internal/db"
	"github.com/jobhubke/mpesa-relay-gobackend/internal/handlers"
	"github.com/jobhubke/mpesa-relay-gobackend/internal/services"
)

func main() {
	// Load .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to MongoDB
	client, err := db.Connect(context.Background(), cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	log.Println("Successfully connected to MongoDB")

	database := client.Database(cfg.DBName)

	// Initialize store, services and handlers
	store := services.NewMongoPaymentStore(database)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Printf("Warning: failed to ensure indexes: %v", err)
		}
		cancel()
	}

	darajaClient := services.NewDarajaClient(cfg.Mpesa)
	paymentService := services.NewPaymentService(store, darajaClient)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	// Set up router
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/payment/stkpush", paymentHandler.STKPush).Methods("POST")
	router.HandleFunc("/api/payment/callback", paymentHandler.Callback).Methods("POST")
	router.HandleFunc("/api/payments", paymentHandler.GetPayments).Methods("GET")
	router.HandleFunc("/api/payment/{paymentID}", paymentHandler.GetPayment).Methods("GET")
	router.HandleFunc("/api/userid/{userID}/payments", paymentHandler.GetPaymentsByUserID).Methods("GET")

	// Start server
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}
