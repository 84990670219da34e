package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Treasury reports the funds available for disbursing payouts.
type Treasury interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// WhishService reads the payout account balance from the Whish API
type WhishService struct {
	baseURL    string
	channel    string
	secret     string
	websiteURL string
	client     *http.Client
	log        *logrus.Entry
}

// NewWhishService creates a new Whish service instance
func NewWhishService(baseURL, channel, secret, websiteURL string, log *logrus.Logger) *WhishService {
	entry := log.WithField("component", "whish")
	if channel == "" || secret == "" || websiteURL == "" {
		entry.Warn("Whish credentials not fully configured; treasury checks will fail")
	}
	return &WhishService{
		baseURL:    baseURL,
		channel:    channel,
		secret:     secret,
		websiteURL: websiteURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        entry,
	}
}

// getHeaders returns the standard headers required for Whish API requests
func (s *WhishService) getHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"channel":      s.channel,
		"secret":       s.secret,
		"websiteurl":   s.websiteURL,
	}
}

// makeRequest performs an HTTP request to the Whish API
func (s *WhishService) makeRequest(ctx context.Context, method, endpoint string) (*models.WhishResponse, error) {
	if s.channel == "" || s.secret == "" || s.websiteURL == "" {
		return nil, fmt.Errorf("missing Whish credentials")
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.getHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	s.log.WithFields(logrus.Fields{"endpoint": endpoint, "status": resp.StatusCode}).Debug("whish response received")

	var whishResp models.WhishResponse
	if err := json.Unmarshal(respBody, &whishResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !whishResp.Status {
		code := "unknown"
		if whishResp.Code != nil {
			code = fmt.Sprintf("%v", whishResp.Code)
		}
		if dialogMap, ok := whishResp.Dialog.(map[string]interface{}); ok {
			if msg, ok := dialogMap["message"].(string); ok {
				return &whishResp, fmt.Errorf("whish API error: %s - %s", code, msg)
			}
		}
		return &whishResp, fmt.Errorf("whish API error: %s", code)
	}

	return &whishResp, nil
}

// Balance retrieves the real balance of the payout account
func (s *WhishService) Balance(ctx context.Context) (decimal.Decimal, error) {
	resp, err := s.makeRequest(ctx, http.MethodGet, "payment/account/balance")
	if err != nil {
		return decimal.Zero, err
	}

	if balanceDetails, ok := resp.Data["balanceDetails"].(map[string]interface{}); ok {
		if balance, ok := balanceDetails["balance"].(float64); ok {
			return decimal.NewFromFloat(balance), nil
		}
	}

	return decimal.Zero, fmt.Errorf("failed to parse balance from response")
}
