package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"ceraunus/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// checkSignature verifies that a url-encoded query carries a valid signature
// over everything before it.
func checkSignature(t *testing.T, rawQuery, secret string) url.Values {
	t.Helper()

	idx := len(rawQuery) - sha256.Size*2 - len("&signature=")
	if idx <= 0 || rawQuery[idx:idx+len("&signature=")] != "&signature=" {
		t.Fatalf("query %q has no trailing signature", rawQuery)
	}
	payload, sig := rawQuery[:idx], rawQuery[idx+len("&signature="):]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Fatalf("signature = %s, want %s", sig, want)
	}

	values, err := url.ParseQuery(payload)
	if err != nil {
		t.Fatalf("parse signed query: %v", err)
	}
	return values
}

func TestOpenOrder(t *testing.T) {
	t.Parallel()

	order := types.NewOrder(types.BTCUSDT, types.Buy, types.Limit,
		decimal.RequireFromString("100.5"), decimal.NewFromInt(1), types.GoodUntilCancel, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/fapi/v1/order" {
			t.Errorf("%s %s, want POST /fapi/v1/order", r.Method, r.URL.Path)
		}
		if got := r.Header.Get(HeaderAPIKey); got != "test-key" {
			t.Errorf("api key header = %q, want test-key", got)
		}

		body, _ := io.ReadAll(r.Body)
		values := checkSignature(t, string(body), "test-secret")
		if values.Get("symbol") != "BTCUSDT" || values.Get("side") != "BUY" || values.Get("type") != "LIMIT" {
			t.Errorf("query = %v", values)
		}
		if values.Get("price") != "100.5" || values.Get("quantity") != "1" || values.Get("timeInForce") != "GTC" {
			t.Errorf("query = %v", values)
		}
		if values.Get("newClientOrderId") != order.ClientOrderID.String() {
			t.Errorf("newClientOrderId = %q", values.Get("newClientOrderId"))
		}
		if values.Get("timestamp") == "" {
			t.Error("timestamp missing")
		}
		if values.Get("goodTillDate") != "" {
			t.Error("goodTillDate should be omitted when zero")
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"orderId":8886774,"symbol":"BTCUSDT","status":"NEW","clientOrderId":"`+
			order.ClientOrderID.String()+`","price":"100.5","avgPrice":"0","origQty":"1","executedQty":"0","cumQty":"0","cumQuote":"0","side":"BUY","timeInForce":"GTC","type":"LIMIT","updateTime":1568879465650}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewSigner("test-key", "test-secret"), testLogger())
	ack, err := c.OpenOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("OpenOrder: %v", err)
	}
	if ack.OrderID != 8886774 || ack.Status != types.StatusNew {
		t.Errorf("ack = %+v", ack)
	}
	if ack.ClientOrderID != order.ClientOrderID {
		t.Errorf("ack client order id = %v, want %v", ack.ClientOrderID, order.ClientOrderID)
	}
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()

	id := types.NewOrder(types.ETHUSDT, types.Sell, types.Limit,
		decimal.NewFromInt(2500), decimal.NewFromInt(1), types.GoodUntilCancel, 0).ClientOrderID

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/fapi/v1/order" {
			t.Errorf("%s %s, want DELETE /fapi/v1/order", r.Method, r.URL.Path)
		}
		values := checkSignature(t, r.URL.RawQuery, "test-secret")
		if values.Get("symbol") != "ETHUSDT" {
			t.Errorf("symbol = %q", values.Get("symbol"))
		}
		if values.Get("origClientOrderId") != id.String() {
			t.Errorf("origClientOrderId = %q", values.Get("origClientOrderId"))
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"orderId":42,"symbol":"ETHUSDT","status":"CANCELED","clientOrderId":"`+
			id.String()+`","origQty":"1","executedQty":"0","updateTime":1568879465651}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewSigner("test-key", "test-secret"), testLogger())
	ack, err := c.CancelOrder(context.Background(), types.ETHUSDT, id)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if ack.Status != types.StatusCanceled {
		t.Errorf("status = %v, want CANCELED", ack.Status)
	}
}

func TestListenKeyLifecycle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/listenKey" {
			t.Errorf("path = %s, want /fapi/v1/listenKey", r.URL.Path)
		}
		if got := r.Header.Get(HeaderAPIKey); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			io.WriteString(w, `{"listenKey":"pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1"}`)
		case http.MethodPut:
			io.WriteString(w, `{}`)
		default:
			t.Errorf("method = %s", r.Method)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewSigner("test-key", "test-secret"), testLogger())

	key, err := c.CreateListenKey(context.Background())
	if err != nil {
		t.Fatalf("CreateListenKey: %v", err)
	}
	if key == "" {
		t.Fatal("empty listen key")
	}

	if err := c.KeepAliveListenKey(context.Background()); err != nil {
		t.Fatalf("KeepAliveListenKey: %v", err)
	}
}

func TestDepthSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/depth" {
			t.Errorf("path = %s, want /fapi/v1/depth", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("query = %v", r.URL.Query())
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"lastUpdateId":1027024,"E":1589436922972,"T":1589436922959,"bids":[["4.00000000","431.00000000"]],"asks":[["4.00000200","12.00000000"]]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewSigner("k", "s"), testLogger())
	snap, err := c.DepthSnapshot(context.Background(), types.BTCUSDT, 100)
	if err != nil {
		t.Fatalf("DepthSnapshot: %v", err)
	}
	if snap.LastUpdateID != 1027024 {
		t.Errorf("lastUpdateId = %d", snap.LastUpdateID)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Errorf("levels = %d/%d", len(snap.Bids), len(snap.Asks))
	}
}

func TestAPIErrorCategories(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   APICategory
	}{
		{"rate limited by status", http.StatusTooManyRequests, `{"code":-1015,"msg":"Too many orders"}`, CategoryRateLimit},
		{"rate limited by code", http.StatusBadRequest, `{"code":-1003,"msg":"Way too many requests"}`, CategoryRateLimit},
		{"balance", http.StatusBadRequest, `{"code":-2019,"msg":"Margin is insufficient"}`, CategoryBalanceInsufficient},
		{"rejected", http.StatusBadRequest, `{"code":-2010,"msg":"Order would immediately trigger"}`, CategoryOrderRejected},
		{"other", http.StatusBadRequest, `{"code":-1102,"msg":"Mandatory parameter missing"}`, CategoryOther},
		{"non-json body", http.StatusServiceUnavailable, `upstream unavailable`, CategoryOther},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			apiErr := newAPIError(tc.status, []byte(tc.body))
			if apiErr.Category != tc.want {
				t.Errorf("category = %v, want %v", apiErr.Category, tc.want)
			}
			if apiErr.Status != tc.status {
				t.Errorf("status = %d, want %d", apiErr.Status, tc.status)
			}
		})
	}
}

func TestOpenOrderAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":-2019,"msg":"Margin is insufficient."}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewSigner("k", "s"), testLogger())
	order := types.NewOrder(types.BTCUSDT, types.Buy, types.Limit,
		decimal.NewFromInt(100), decimal.NewFromInt(1), types.GoodUntilCancel, 0)

	_, err := c.OpenOrder(context.Background(), order)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Category != CategoryBalanceInsufficient {
		t.Errorf("category = %v, want balance_insufficient", apiErr.Category)
	}
	if apiErr.Code != -2019 {
		t.Errorf("code = %d, want -2019", apiErr.Code)
	}
}
