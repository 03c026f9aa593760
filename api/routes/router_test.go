package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/bakeshop-backend/api/controllers"
	"github.com/angelmondragon/bakeshop-backend/api/middleware"
	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/kit"
	"github.com/angelmondragon/bakeshop-backend/pkg/config"
	"github.com/angelmondragon/bakeshop-backend/pkg/db/models"
	"github.com/angelmondragon/bakeshop-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	handler  http.Handler
	cookieID uuid.UUID
	breadID  uuid.UUID
	registry *prometheus.Registry
}

func intPtr(v int) *int { return &v }

func newTestServer(t *testing.T, health map[string]controllers.Pinger) testServer {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.PriceRule{}))

	repo := catalog.NewRepository(conn)
	cookies := &models.Product{
		Name:      "Cookies",
		BasePrice: decimal.NewFromInt(5),
		IsActive:  true,
		PriceRules: []models.PriceRule{
			{Position: 0, MinQty: 2, MaxQty: intPtr(3), FlatPrice: decimal.NewNullDecimal(decimal.NewFromInt(10))},
			{Position: 1, MinQty: 4, MaxQty: intPtr(6), FlatPrice: decimal.NewNullDecimal(decimal.NewFromInt(20))},
			{Position: 2, MinQty: 7, ExtraPerUnit: decimal.NewNullDecimal(decimal.NewFromInt(3))},
		},
	}
	bread := &models.Product{Name: "Bread", BasePrice: decimal.RequireFromString("3.50"), IsActive: true}
	require.NoError(t, repo.Create(context.Background(), cookies))
	require.NoError(t, repo.Create(context.Background(), bread))

	reg := prometheus.NewRegistry()
	pm := metrics.NewPricingMetrics(reg)

	catalogSvc, err := catalog.NewService(repo, nil, pm)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{
		Snapshots: cart.NewMemorySnapshotRepository(),
		Catalog:   catalogSvc,
		Metrics:   pm,
	})
	require.NoError(t, err)
	kitSvc, err := kit.NewService(kit.ServiceParams{
		Registry: kit.NewRegistry(kit.RegistryConfig{MaxItems: 12, MaxSessions: 100, SessionTTL: time.Hour}),
		Catalog:  catalogSvc,
		Carts:    cartSvc,
		Metrics:  pm,
	})
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}}}
	handler := NewRouter(Deps{
		Config:  cfg,
		Catalog: catalogSvc,
		Carts:   cartSvc,
		Kits:    kitSvc,
		Health:  health,
		Metrics: reg,
	})
	return testServer{handler: handler, cookieID: cookies.ID, breadID: bread.ID, registry: reg}
}

func (s testServer) do(t *testing.T, method, path, cartID, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if cartID != "" {
		req.Header.Set(middleware.CartIDHeader, cartID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthRoutes(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, map[string]controllers.Pinger{"db": stubPinger{}})

	rec, _ := srv.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-Bakeshop-Env"))

	rec, _ = srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, map[string]controllers.Pinger{"redis": stubPinger{err: errors.New("dial tcp")}})

	rec, env := srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
}

func TestProductsAndQuote(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var products []catalog.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Bread", products[0].Name)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/products/"+srv.cookieID.String(), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/pricing/quote", "", `{"product_id":"`+srv.cookieID.String()+`","quantity":8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote catalog.Quote
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.True(t, quote.Valid)
	assert.True(t, quote.UnitPrice.Equal(decimal.NewFromInt(26)))

	rec, env = srv.do(t, http.MethodPost, "/api/v1/pricing/quote", "", `{"product_id":"`+srv.cookieID.String()+`","quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.False(t, quote.Valid)
	assert.Equal(t, "minimum quantity is 2 units", quote.Message)
}

func TestCartFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	cartID := uuid.NewString()
	item := `"product_id":"` + srv.cookieID.String() + `"`

	rec, _ := srv.do(t, http.MethodPost, "/api/v1/cart/items", cartID, `{`+item+`,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cartID, rec.Header().Get(middleware.CartIDHeader))

	rec, env := srv.do(t, http.MethodPost, "/api/v1/cart/items", cartID, `{`+item+`,"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var view cart.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(100)))

	rec, env = srv.do(t, http.MethodPost, "/api/v1/cart/items", cartID, `{"product_id":"`+srv.breadID.String()+`","has_chocolate":true,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)

	rec, env = srv.do(t, http.MethodPatch, "/api/v1/cart/items/quantity", cartID, `{`+item+`,"quantity":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "minimum quantity is 2 units", env.Error.Message)

	rec, env = srv.do(t, http.MethodPatch, "/api/v1/cart/items/unit-quantity", cartID, `{`+item+`,"unit_quantity":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_QUANTITY", env.Error.Code)
	assert.Equal(t, "quantity must be greater than zero", env.Error.Message)

	rec, env = srv.do(t, http.MethodPatch, "/api/v1/cart/items/unit-quantity", cartID, `{`+item+`,"unit_quantity":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 4, view.Items[0].UnitQuantity)

	rec, env = srv.do(t, http.MethodDelete, "/api/v1/cart/items", cartID, `{`+item+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Items)

	rec, _ = srv.do(t, http.MethodDelete, "/api/v1/cart", cartID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartWithoutHeaderStartsNewCart(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/cart", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view cart.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, rec.Header().Get(middleware.CartIDHeader), view.CartID)
	assert.Empty(t, view.Items)
}

func TestKitFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	cartID := uuid.NewString()

	rec, env := srv.do(t, http.MethodPost, "/api/v1/kits", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap kit.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	base := "/api/v1/kits/" + snap.ID.String()

	rec, _ = srv.do(t, http.MethodPost, base+"/next", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, base+"/items", "", `{"product_id":"`+srv.cookieID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = srv.do(t, http.MethodPost, base+"/next", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.do(t, http.MethodPatch, base+"/items/0", "", `{"quantity":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_QUANTITY", env.Error.Code)

	rec, env = srv.do(t, http.MethodPatch, base+"/items/0", "", `{"quantity":5,"unit_quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.Equal(t, 2, snap.Items[0].UnitQuantity)

	rec, env = srv.do(t, http.MethodPost, base+"/complete", cartID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "STATE_CONFLICT", env.Error.Code)

	rec, _ = srv.do(t, http.MethodPost, base+"/next", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.do(t, http.MethodPost, base+"/complete", cartID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view cart.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Items, 1)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(100)))

	rec, _ = srv.do(t, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kit_sessions_total{outcome="completed"} 1`)
}

func TestKitCancelAndBadParams(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/kits", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap kit.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))

	rec, _ = srv.do(t, http.MethodDelete, "/api/v1/kits/"+snap.ID.String()+"/items/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/kits/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/kits/"+snap.ID.String()+"/cancel", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/kits/"+snap.ID.String()+"/cancel", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKitRejectedEditLeavesItemUnchanged(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/kits", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap kit.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	base := "/api/v1/kits/" + snap.ID.String()

	rec, _ = srv.do(t, http.MethodPost, base+"/items", "", `{"product_id":"`+srv.cookieID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = srv.do(t, http.MethodPost, base+"/next", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.do(t, http.MethodPatch, base+"/items/0", "", `{"quantity":5,"unit_quantity":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_QUANTITY", env.Error.Code)

	rec, env = srv.do(t, http.MethodGet, base, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, 1, snap.Items[0].UnitQuantity)
	assert.True(t, snap.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)))

	rec, _ = srv.do(t, http.MethodPatch, base+"/items/0", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKitSelectsChocolateVariant(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/kits", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap kit.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	base := "/api/v1/kits/" + snap.ID.String()

	rec, env = srv.do(t, http.MethodPost, base+"/items", "", `{"product_id":"`+srv.breadID.String()+`","has_chocolate":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}
