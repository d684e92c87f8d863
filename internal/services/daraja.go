package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jobhubke/mpesa-relay-gobackend/internal/config"
)

// DarajaClient talks to the Safaricom Daraja API: token acquisition,
// password derivation and the STK push call itself.
type DarajaClient struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewDarajaClient(cfg config.MpesaConfig) *DarajaClient {
	return &DarajaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		now:        time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string  `json:"BusinessShortCode"`
	Password          string  `json:"Password"`
	Timestamp         string  `json:"Timestamp"`
	TransactionType   string  `json:"TransactionType"`
	Amount            float64 `json:"Amount"`
	PartyA            string  `json:"PartyA"`
	PartyB            string  `json:"PartyB"`
	PhoneNumber       string  `json:"PhoneNumber"`
	CallBackURL       string  `json:"CallBackURL"`
	AccountReference  string  `json:"AccountReference"`
	TransactionDesc   string  `json:"TransactionDesc"`
}

// STKPushResponse is the acceptance Daraja returns synchronously. The
// CheckoutRequestID is the correlation key the result callback carries.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// AccessToken fetches a fresh bearer token from the Daraja OAuth endpoint.
// Tokens are not cached; every push re-authenticates.
func (c *DarajaClient) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Daraja token request failed with status %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: status %d", ErrUpstreamAuth, resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrUpstreamAuth, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUpstreamAuth)
	}
	return tokenResp.AccessToken, nil
}

// Timestamp formats t the way Daraja expects: YYYYMMDDHHmmss.
func (c *DarajaClient) Timestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// Password derives the Lipa na M-Pesa password for t, returning the
// password and the timestamp it was derived from. The formula is
// base64(shortCode + passKey + timestamp).
func (c *DarajaClient) Password(t time.Time) (password, timestamp string) {
	timestamp = c.Timestamp(t)
	password = base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp))
	return password, timestamp
}

// STKPush triggers a payment prompt on the payer's phone. A fresh token is
// acquired per call; neither call is retried.
func (c *DarajaClient) STKPush(ctx context.Context, phone string, amount float64, accountRef, description string) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.Password(c.now())
	reqBody := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   description,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal push request: %v", ErrProviderRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("STK push request failed with status %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderRequest, resp.StatusCode, string(body))
	}

	var pushResp STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("%w: decode push response: %v", ErrProviderRequest, err)
	}
	if pushResp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: response missing CheckoutRequestID", ErrProviderRequest)
	}

	log.Printf("STK push accepted: MerchantRequestID=%s, CheckoutRequestID=%s", pushResp.MerchantRequestID, pushResp.CheckoutRequestID)
	return &pushResp, nil
}
