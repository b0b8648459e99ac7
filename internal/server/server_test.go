package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	"github.com/Israr974/BuyZaar-sub001/internal/handler"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/memory"
	"github.com/Israr974/BuyZaar-sub001/internal/metrics"
	"github.com/Israr974/BuyZaar-sub001/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testApp struct {
	handler http.Handler
	store   *memory.Store
	buyer   model.User
	admin   model.User
	address model.Address
	product model.Product
}

// 後続タスクはその場で実行する
type syncFollowUps struct{}

func (syncFollowUps) Submit(task usecase.FollowUpTask) {
	_ = task.Run(context.Background())
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store := memory.NewStore()
	buyer := store.AddUser(model.User{Email: "buyer@example.com", Role: model.RoleUser, IsActive: true})
	admin := store.AddUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true})
	addr := store.AddAddress(model.Address{UserID: buyer.ID, Pincode: "560001", Name: "Asha", Line1: "1 MG Road", City: "Bengaluru", State: "KA"})
	product := store.AddProduct(model.Product{Name: "Kettle", Price: decimal.NewFromInt(100), Stock: 5, IsActive: true})

	cfg := config.Config{Port: "0", JWTSecret: testSecret}
	timeout := time.Second
	followUps := syncFollowUps{}

	ledger := usecase.NewOrderLedger(store, nil, nil, nil, usecase.LedgerOptions{Timeout: timeout})
	inventory := usecase.NewInventoryAdjuster(store, nil, timeout)
	orderUC := usecase.NewOrderUsecase(usecase.OrderDeps{
		Users:     store.Users(),
		Addresses: store.Addresses(),
		Guard:     usecase.NewAvailabilityGuard(usecase.NewCatalogReader(store.Products(), timeout), usecase.CODPolicy{MaxOrderTotal: decimal.NewFromInt(1000)}),
		Pricing:   usecase.NewPriceEngine(usecase.DefaultPricingConfig()),
		Ledger:    ledger,
		Inventory: inventory,
		History:   usecase.NewHistoryRecorder(store.History(), model.HistoryLimit, timeout),
		FollowUps: followUps,
		Timeout:   timeout,
	})

	reg := prometheus.NewRegistry()
	srv := New(cfg, store.Users(), Handlers{
		Orders:      handler.NewOrderHandler(orderUC),
		Cart:        handler.NewCartHandler(usecase.NewCartUsecase(store.CartLines(), store.Products(), timeout)),
		AdminOrders: handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(ledger, inventory, followUps, nil, config.CancelRestockNone, nil)),
		Inventory:   handler.NewAdminInventoryHandler(inventory),
		Audit:       handler.NewAdminAuditHandler(usecase.NewAuditLogUsecase(store.AuditLogs(), timeout)),
	}, zap.NewNop(), metrics.NewHTTPMetrics(reg), reg)

	return &testApp{handler: srv.Handler(), store: store, buyer: buyer, admin: admin, address: addr, product: product}
}

func token(t *testing.T, u model.User) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(u.ID, 10),
		"role": string(u.Role),
		"tv":   u.TokenVersion,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (a *testApp) do(t *testing.T, method, path string, as *model.User, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *as))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) orderBody(qty int64) map[string]any {
	return map[string]any{
		"items":          []map[string]any{{"product_id": a.product.ID, "quantity": qty}},
		"address_id":     a.address.ID,
		"payment_method": "UPI",
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = app.do(t, http.MethodGet, "/metrics", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "buyzaar_http_requests_total")
}

func TestServer_PlaceOrderAndReplay(t *testing.T) {
	app := newTestApp(t)
	headers := map[string]string{"X-Idempotency-Key": "checkout-1"}

	rec := app.do(t, http.MethodPost, "/orders", &app.buyer, app.orderBody(2), headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "UPI", created.Payment.Method)
	// 200 + 50 + 20 + 18%税
	assert.Equal(t, "306.00", created.Price.Total)

	// 同じキーの再送は同じ注文を200で返す
	rec = app.do(t, http.MethodPost, "/orders", &app.buyer, app.orderBody(2), headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replayed usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	assert.Equal(t, created.ID, replayed.ID)
	assert.Equal(t, 1, app.store.OrderCount())

	p, _ := app.store.Product(app.product.ID)
	assert.Equal(t, int64(3), p.Stock)

	rec = app.do(t, http.MethodGet, "/orders/"+strconv.FormatInt(created.ID, 10), &app.buyer, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/orders", &app.buyer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine usecase.MyOrdersOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine.Orders, 1)
	require.Len(t, mine.History, 1)
	assert.Equal(t, created.OrderNumber, mine.History[0].OrderNumber)
	assert.Equal(t, int64(1), mine.Total)

	rec = app.do(t, http.MethodGet, "/orders?page=2&limit=1", &app.buyer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Empty(t, mine.Orders)
	assert.Equal(t, 2, mine.Page)

	rec = app.do(t, http.MethodGet, "/orders?limit=abc", &app.buyer, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodGet, "/orders?limit=500", &app.buyer, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PlaceOrderErrors(t *testing.T) {
	app := newTestApp(t)

	t.Run("insufficient stock carries details", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/orders", &app.buyer, app.orderBody(9), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		var res handler.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "availability", res.Kind)
		require.Len(t, res.Details, 1)
		assert.Equal(t, usecase.IssueInsufficientStock, res.Details[0].Reason)
		assert.Equal(t, int64(9), res.Details[0].Requested)
		assert.Equal(t, int64(5), res.Details[0].Available)
	})

	t.Run("validation", func(t *testing.T) {
		body := app.orderBody(1)
		body["payment_method"] = "CASH"
		rec := app.do(t, http.MethodPost, "/orders", &app.buyer, body, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var res handler.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "validation", res.Kind)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token(t, app.buyer))
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Zero(t, app.store.OrderCount())
}

func TestServer_Auth(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/orders", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 失効したtoken_version
	stale := app.buyer
	stale.TokenVersion = 3
	rec = app.do(t, http.MethodGet, "/orders", &stale, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 管理者APIはUSERだと403
	rec = app.do(t, http.MethodGet, "/admin/orders", &app.buyer, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/admin/orders", &app.admin, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AdminFlow(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/orders", &app.buyer, app.orderBody(1), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	orderPath := "/admin/orders/" + strconv.FormatInt(created.ID, 10) + "/status"

	rec = app.do(t, http.MethodPut, orderPath, &app.admin, map[string]string{"status": "shipped"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 後退はできない
	rec = app.do(t, http.MethodPut, orderPath, &app.admin, map[string]string{"status": "confirmed"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/admin/orders?status=shipped", &app.admin, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list usecase.AdminOrderListOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)

	rec = app.do(t, http.MethodGet, "/admin/orders?from=yesterday", &app.admin, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	invPath := "/admin/inventory/" + strconv.FormatInt(app.product.ID, 10)
	rec = app.do(t, http.MethodPut, invPath, &app.admin, map[string]any{"delta": 10, "reason": "restock"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stock usecase.StockOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stock))
	assert.Equal(t, int64(14), stock.Stock)

	// 状態変更と在庫調整が監査ログに残る
	rec = app.do(t, http.MethodGet, "/admin/audit-logs?resource_type=order", &app.admin, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var audit struct {
		Logs []model.AuditLog `json:"audit_logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Len(t, audit.Logs, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, audit.Logs[0].Action)
	assert.Equal(t, app.admin.ID, audit.Logs[0].ActorUserID)

	rec = app.do(t, http.MethodGet, "/admin/audit-logs?action=ADJUST_STOCK", &app.admin, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Len(t, audit.Logs, 1)
	assert.Equal(t, app.product.ID, audit.Logs[0].ResourceID)

	rec = app.do(t, http.MethodGet, "/admin/audit-logs?action=DROP", &app.admin, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, "/admin/audit-logs", &app.buyer, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_CancelAndPayment(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/orders", &app.buyer, app.orderBody(1), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/orders/" + strconv.FormatInt(created.ID, 10)
	paymentPath := "/admin/orders/" + strconv.FormatInt(created.ID, 10) + "/payment"
	paidBody := map[string]any{"verified": true, "gateway_payment_id": "pay_1"}

	// 購入者は自分の注文でも支払い済みにできない
	rec = app.do(t, http.MethodPut, paymentPath, &app.buyer, paidBody, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, http.MethodPut, base+"/payment", &app.buyer, paidBody, nil)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)

	rec = app.do(t, http.MethodGet, base, &app.buyer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Equal(t, "pending", pending.Payment.Status)

	rec = app.do(t, http.MethodPut, paymentPath, &app.admin, paidBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, "paid", paid.Payment.Status)

	// 購入者からも支払い済みに見える
	rec = app.do(t, http.MethodGet, base, &app.buyer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, "paid", paid.Payment.Status)

	// reasonなしでもキャンセルできる
	rec = app.do(t, http.MethodPut, base+"/cancel", &app.buyer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPut, base+"/cancel", &app.buyer, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPut, "/orders/abc/cancel", &app.buyer, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
