package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/pendingorder"
)

type capturePublisher struct{ topics []string }

func (c *capturePublisher) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

type paymentFixture struct {
	router  http.Handler
	carts   *cart.Repository
	orders  *checkout.MemoryStore
	pending *pendingorder.RedisStore
	events  *capturePublisher
}

func newPaymentFixture(t *testing.T) paymentFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	carts := cart.NewRepository(client, time.Hour)
	orders := &checkout.MemoryStore{}
	pending := pendingorder.NewRedisStore(client, time.Hour)
	pub := &capturePublisher{}
	retailers := retailerStub{}
	svc := &checkout.Service{
		Retailers: retailers,
		Prices: priceStub{
			"shallot": {ProductID: "shallot", Name: "Shallot", UnitPrice: 10000, ShippingFeePerUnit: 500, MOQ: 1, StockQuantity: 10},
			"chili":   {ProductID: "chili", Name: "Red Chili", UnitPrice: 8000, MOQ: 5, StockQuantity: 100},
		},
		Orders: orders,
	}
	h := &Handler{
		Orders:     svc,
		Carts:      carts,
		Pending:    pending,
		Reconciler: &pendingorder.Reconciler{Store: pending, Events: pub},
		Retailers:  retailers,
		NewWidget:  func() Widget { return &RedirectWidget{BaseURL: "https://pay.example/checkout"} },
		Config: HandlerConfig{
			ClientKey:  "ck_test",
			Currency:   "KRW",
			SuccessURL: "https://shop.example/api/v1/payments/success",
			FailURL:    "https://shop.example/api/v1/payments/fail",
		},
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user := req.Header.Get("X-Test-User"); user != "" {
				req = req.WithContext(common.WithUserID(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/payments/request", h.Request)
	r.Get("/payments/success", h.Success)
	r.Get("/payments/fail", h.Fail)
	return paymentFixture{router: r, carts: carts, orders: orders, pending: pending, events: pub}
}

func (f paymentFixture) seedCart(t *testing.T, lines ...cart.Line) {
	t.Helper()
	store := cart.NewStore(nil)
	for _, l := range lines {
		_, err := store.Add(l)
		require.NoError(t, err)
	}
	require.NoError(t, f.carts.Save(context.Background(), "user-1", store))
}

func (f paymentFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("X-Test-User", "user-1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequestRedirectsWithServerAmount(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedCart(t, cart.Line{ProductID: "shallot", Name: "Shallot", Quantity: 3, UnitPrice: 9000, ShippingUnitFee: 500, MOQ: 1, StockQuantity: 10})

	rec := f.do(t, http.MethodPost, "/payments/request", `{"delivery":{"option":"standard","timeWindow":"morning"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data Attempt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, AttemptRedirect, resp.Data.Outcome)
	require.Equal(t, int64(31500), resp.Data.Amount)

	u, err := url.Parse(resp.Data.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, "31500", u.Query().Get("amount"))
	require.Equal(t, FallbackCustomerEmail, u.Query().Get("customerEmail"))

	rec2, err := f.pending.Load(context.Background(), "retailer-1")
	require.NoError(t, err)
	require.Equal(t, resp.Data.OrderID, rec2.OrderID)
	require.Equal(t, "morning", rec2.Delivery.TimeWindow)
	require.Len(t, f.orders.Orders(), 1)
}

func TestHandlerRequestBlockedByMOQ(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedCart(t, cart.Line{ProductID: "chili", Name: "Red Chili", Quantity: 2, UnitPrice: 8000, MOQ: 5, StockQuantity: 100})

	rec := f.do(t, http.MethodPost, "/payments/request", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, cart.CodeMOQNotMet, resp.Error.Code)
	require.Empty(t, f.orders.Orders())
}

func TestHandlerRequestEmptyCart(t *testing.T) {
	f := newPaymentFixture(t)
	rec := f.do(t, http.MethodPost, "/payments/request", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), cart.CodeCartEmpty)
}

func TestHandlerRequestRequiresUser(t *testing.T) {
	f := newPaymentFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/payments/request", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerSuccessReconciles(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedCart(t, cart.Line{ProductID: "shallot", Name: "Shallot", Quantity: 3, UnitPrice: 10000, ShippingUnitFee: 500, MOQ: 1, StockQuantity: 10})
	rec := f.do(t, http.MethodPost, "/payments/request", "")
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := f.orders.Orders()[0].ID

	mismatch := f.do(t, http.MethodGet, "/payments/success?paymentKey=pk_1&orderId="+orderID+"&amount=30000", "")
	require.Equal(t, http.StatusConflict, mismatch.Code)
	require.Contains(t, mismatch.Body.String(), pendingorder.CodeAmountMismatch)

	ok := f.do(t, http.MethodGet, "/payments/success?paymentKey=pk_1&orderId="+orderID+"&amount=31500", "")
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	require.Equal(t, []string{events.TopicPaymentReturned}, f.events.topics)

	_, err := f.pending.Load(context.Background(), "retailer-1")
	require.ErrorIs(t, err, pendingorder.ErrNotFound)

	again := f.do(t, http.MethodGet, "/payments/success?paymentKey=pk_1&orderId="+orderID+"&amount=31500", "")
	require.Equal(t, http.StatusNotFound, again.Code)
}

func TestHandlerSuccessValidatesQuery(t *testing.T) {
	f := newPaymentFixture(t)
	rec := f.do(t, http.MethodGet, "/payments/success?orderId=ORD-1&amount=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerFail(t *testing.T) {
	f := newPaymentFixture(t)
	rec := f.do(t, http.MethodGet, "/payments/fail?orderId=ORD-1&code=PAY_PROCESS_CANCELED&message=cancelled", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "PAY_PROCESS_CANCELED")
	require.Equal(t, []string{events.TopicPaymentFailed}, f.events.topics)
}
