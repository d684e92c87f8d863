package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobhubke/mpesa-relay-gobackend/internal/config"
)

func testMpesaConfig(baseURL string) config.MpesaConfig {
	return config.MpesaConfig{
		BaseURL:        baseURL,
		ShortCode:      "174379",
		PassKey:        "testpasskey",
		ConsumerKey:    "ckey",
		ConsumerSecret: "csecret",
		CallbackURL:    "https://example.com/api/payment/callback",
		HTTPTimeout:    5 * time.Second,
	}
}

func TestTimestampFormat(t *testing.T) {
	c := NewDarajaClient(testMpesaConfig("http://unused"))
	at := time.Date(2026, time.March, 7, 9, 5, 3, 0, time.UTC)

	got := c.Timestamp(at)
	if got != "20260307090503" {
		t.Errorf("Timestamp() = %q, want %q", got, "20260307090503")
	}
}

func TestPasswordDerivation(t *testing.T) {
	cfg := testMpesaConfig("http://unused")
	c := NewDarajaClient(cfg)
	at := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

	password, timestamp := c.Password(at)
	if timestamp != "20260102150405" {
		t.Errorf("timestamp = %q, want %q", timestamp, "20260102150405")
	}

	want := base64.StdEncoding.EncodeToString([]byte(cfg.ShortCode + cfg.PassKey + timestamp))
	if password != want {
		t.Errorf("password = %q, want %q", password, want)
	}
}

func TestAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("missing grant_type query parameter")
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ckey" || pass != "csecret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123", "expires_in": "3599"})
	}))
	defer server.Close()

	c := NewDarajaClient(testMpesaConfig(server.URL))
	token, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error: %v", err)
	}
	if token != "token-123" {
		t.Errorf("token = %q, want %q", token, "token-123")
	}
}

func TestAccessTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewDarajaClient(testMpesaConfig(server.URL))
	_, err := c.AccessToken(context.Background())
	if !errors.Is(err, ErrUpstreamAuth) {
		t.Errorf("AccessToken() error = %v, want ErrUpstreamAuth", err)
	}
}

func TestSTKPush(t *testing.T) {
	var gotPush map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
		case "/mpesa/stkpush/v1/processrequest":
			if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
				t.Errorf("Authorization = %q, want bearer token", got)
			}
			if err := json.NewDecoder(r.Body).Decode(&gotPush); err != nil {
				t.Fatalf("decode push request: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResponseCode":      "0",
				"CustomerMessage":   "Success. Request accepted for processing",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewDarajaClient(testMpesaConfig(server.URL))
	c.now = func() time.Time { return time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC) }

	resp, err := c.STKPush(context.Background(), "254712345678", 500, "JobPortal-u1", "Job application fee")
	if err != nil {
		t.Fatalf("STKPush() error: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("CheckoutRequestID = %q", resp.CheckoutRequestID)
	}

	wantPassword, _ := c.Password(c.now())
	checks := map[string]interface{}{
		"BusinessShortCode": "174379",
		"Password":          wantPassword,
		"Timestamp":         "20260102150405",
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            float64(500),
		"PartyA":            "254712345678",
		"PartyB":            "174379",
		"PhoneNumber":       "254712345678",
		"CallBackURL":       "https://example.com/api/payment/callback",
		"AccountReference":  "JobPortal-u1",
		"TransactionDesc":   "Job application fee",
	}
	for field, want := range checks {
		if gotPush[field] != want {
			t.Errorf("push request %s = %v, want %v", field, gotPush[field], want)
		}
	}
}

func TestSTKPushTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mpesa/stkpush/v1/processrequest" {
			t.Error("push endpoint called despite token failure")
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewDarajaClient(testMpesaConfig(server.URL))
	_, err := c.STKPush(context.Background(), "254712345678", 500, "JobPortal-u1", "Job application fee")
	if !errors.Is(err, ErrUpstreamAuth) {
		t.Errorf("STKPush() error = %v, want ErrUpstreamAuth", err)
	}
}

func TestSTKPushRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewDarajaClient(testMpesaConfig(server.URL))
	_, err := c.STKPush(context.Background(), "254712345678", 500, "JobPortal-u1", "Job application fee")
	if !errors.Is(err, ErrProviderRequest) {
		t.Errorf("STKPush() error = %v, want ErrProviderRequest", err)
	}
}
