package bankclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/kr/bank/account/transaction-list" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %q", got)
		}

		var req HistoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.StartDate != "20250311" || req.EndDate != "20250315" {
			t.Errorf("unexpected window: %s - %s", req.StartDate, req.EndDate)
		}
		if req.InquiryType != "1" || req.Currency != "KRW" {
			t.Errorf("unexpected fixed fields: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": {"code": "CF-00000", "message": "success"},
			"data": {"resTrHistoryList": [
				{"resAccountTrDate": "20250311", "resAccountTrTime": "101500", "resAccountDesc": "스타벅스 강남점", "resAccountOut": "4500", "resAccountIn": "", "resAfterTranBalance": "995,500"},
				{"resAccountTrDate": "20250312", "resAccountTrTime": "183000", "resAccountDesc": "급여", "resAccountOut": "", "resAccountIn": "2,500,000", "resAfterTranBalance": "3495500"}
			]}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	items, err := client.FetchHistory(context.Background(), "0004", "conn-abc", "110-123-456789", "20250311", "20250315", "0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Desc != "스타벅스 강남점" || items[0].Withdrawal != "4500" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Deposit != "2,500,000" {
		t.Errorf("expected raw comma-formatted deposit, got %q", items[1].Deposit)
	}
}

func TestFetchHistoryEmptyListIsValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"code": "CF-00000"}, "data": {"resTrHistoryList": []}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	items, err := client.FetchHistory(context.Background(), "0004", "conn-abc", "110-123-456789", "20250311", "20250315", "0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list, got %d items", len(items))
	}
}

func TestFetchHistoryProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"result": {"code": "CF-09002", "message": "invalid token"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key")
	_, err := client.FetchHistory(context.Background(), "0004", "conn-abc", "110-123-456789", "20250311", "20250315", "0")
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ErrorResponse, got %T: %v", err, err)
	}
	if apiErr.Result.Code != "CF-09002" {
		t.Fatalf("unexpected error code: %s", apiErr.Result.Code)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"4500", 4500},
		{"2,500,000", 2500000},
		{" 1,000 ", 1000},
		{"", 0},
		{"-12000", -12000},
		{"abc", 0},
		{"12.50", 0},
	}
	for _, tt := range tests {
		if got := ParseAmount(tt.raw); got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
