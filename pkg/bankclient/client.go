/**
 * @description
 * This package provides a client for the account-aggregation provider. Given a
 * connected credential, it fetches one account's transaction history for a
 * date range and maps each returned item to a domain transaction.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is a client for the aggregation provider's API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new aggregation API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HistoryRequest is the payload for the transaction-history endpoint.
type HistoryRequest struct {
	Organization  string `json:"organization"`
	ConnectedID   string `json:"connectedId"`
	Account       string `json:"account"`
	StartDate     string `json:"startDate"` // YYYYMMDD
	EndDate       string `json:"endDate"`   // YYYYMMDD
	OrderBy       string `json:"orderBy"`   // "0" desc / "1" asc
	InquiryType   string `json:"inquiryType"`
	Currency      string `json:"currency"`
}

// HistoryItem is one ledger row as returned by the provider. Amounts arrive
// as strings and are parsed defensively.
type HistoryItem struct {
	TrDate     string `json:"resAccountTrDate"` // YYYYMMDD
	TrTime     string `json:"resAccountTrTime"` // HHMMSS
	Desc       string `json:"resAccountDesc"`
	Withdrawal string `json:"resAccountOut"`
	Deposit    string `json:"resAccountIn"`
	Balance    string `json:"resAfterTranBalance"`
}

// HistoryResponse is the provider's transaction-history envelope.
type HistoryResponse struct {
	Result struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Data struct {
		Items []HistoryItem `json:"resTrHistoryList"`
	} `json:"data"`
}

// ErrorResponse represents an error payload from the provider.
type ErrorResponse struct {
	Result struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
}

func (e *ErrorResponse) Error() string {
	if e.Result.Code != "" {
		return fmt.Sprintf("aggregation api error: %s - %s", e.Result.Code, e.Result.Message)
	}
	return "unknown aggregation api error"
}

// FetchHistory requests one account's transaction history for the window
// [startDate, endDate], both YYYYMMDD. An empty item list is a valid result.
func (c *Client) FetchHistory(ctx context.Context, organization, connectedID, account, startDate, endDate, orderBy string) ([]HistoryItem, error) {
	reqPayload := HistoryRequest{
		Organization: organization,
		ConnectedID:  connectedID,
		Account:      account,
		StartDate:    startDate,
		EndDate:      endDate,
		OrderBy:      orderBy,
		InquiryType:  "1",
		Currency:     "KRW",
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/kr/bank/account/transaction-list", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute history request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read history response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=bank_client op=fetch_history status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=bank_client op=fetch_history status=%d code=%q message=%q", resp.StatusCode, errResp.Result.Code, errResp.Result.Message)
		return nil, &errResp
	}

	var historyResp HistoryResponse
	if err := json.Unmarshal(bodyBytes, &historyResp); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	return historyResp.Data.Items, nil
}

// ParseAmount converts one of the provider's string amount fields to an
// int64 in won. Commas are tolerated; an empty or garbled field degrades to
// zero rather than failing the item.
func ParseAmount(raw string) int64 {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return 0
	}
	value, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
