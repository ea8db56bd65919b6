package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"plantshop/internal/config"
	"plantshop/internal/database"
	"plantshop/internal/events"
	"plantshop/internal/logger"
	"plantshop/internal/models"
	"plantshop/internal/services/catalog"
	"plantshop/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cronSecret    = "cron-secret"
	webhookSecret = "hook-secret"
)

type fakeRunner struct {
	mu    sync.Mutex
	types []models.SyncType
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, syncType models.SyncType) (catalog.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, syncType)
	if f.err != nil {
		return catalog.Result{SyncType: syncType}, f.err
	}
	return catalog.Result{SyncType: syncType, ItemsSynced: 2}, nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

type fakePublisher struct {
	published []events.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e events.Event) error {
	f.published = append(f.published, e)
	return nil
}

type testServer struct {
	router     *gin.Engine
	runner     *fakeRunner
	dispatcher *fakeDispatcher
	store      *store.Store
}

func newTestServer(t *testing.T, publisher *fakePublisher) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New("sqlite://:memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.New(db.DB, logger.Discard(), func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	cfg := &config.Config{
		CronSecret:    cronSecret,
		WebhookSecret: webhookSecret,
		Env:           "test",
	}
	ts := &testServer{
		runner:     &fakeRunner{},
		dispatcher: &fakeDispatcher{},
		store:      st,
	}
	deps := Deps{
		Syncer:     ts.runner,
		SyncLogs:   st,
		Products:   st,
		Dispatcher: ts.dispatcher,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	ts.router = New(cfg, logger.Discard(), deps).Router()
	return ts
}

func (ts *testServer) do(method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSyncTriggerRequiresSecret(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, auth := range []string{"", "Bearer wrong", cronSecret} {
		w := ts.do(http.MethodGet, "/api/cron/sync-inventory", "", map[string]string{"Authorization": auth})
		assert.Equal(t, http.StatusUnauthorized, w.Code, auth)
		assert.Equal(t, "Unauthorized", decode(t, w)["error"])
	}
	assert.Empty(t, ts.runner.types)
}

func TestSyncTriggerTypes(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := map[string]string{"Authorization": "Bearer " + cronSecret}

	w := ts.do(http.MethodGet, "/api/cron/sync-inventory", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "full", body["syncType"])
	assert.Equal(t, 2.0, body["itemsSynced"])
	assert.NotEmpty(t, body["timestamp"])

	w = ts.do(http.MethodPost, "/api/cron/sync-inventory?type=quick", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inventory", decode(t, w)["syncType"])

	assert.Equal(t, []models.SyncType{models.SyncTypeFull, models.SyncTypeInventory}, ts.runner.types)
}

func TestSyncTriggerFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.runner.err = errors.New("lightspeed down")

	w := ts.do(http.MethodGet, "/api/cron/sync-inventory?type=full", "", map[string]string{"Authorization": "Bearer " + cronSecret})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Sync failed", body["error"])
	assert.Equal(t, "lightspeed down", body["message"])
}

func TestSyncLogs(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.store.StartSyncLog(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	w := ts.do(http.MethodGet, "/api/sync/logs?limit=5", "", map[string]string{"Authorization": "Bearer " + cronSecret})
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode(t, w)["logs"].([]interface{})
	assert.Len(t, logs, 1)

	w = ts.do(http.MethodGet, "/api/sync/logs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignature(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"event":"item.updated","data":{"itemID":"5"}}`

	w := ts.do(http.MethodPost, "/api/webhook/lightspeed", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/webhook/lightspeed", body, map[string]string{"X-Lightspeed-Signature": sign("other")})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid signature", decode(t, w)["error"])
	assert.Empty(t, ts.dispatcher.events)

	w = ts.do(http.MethodPost, "/api/webhook/lightspeed", body, map[string]string{"X-Lightspeed-Signature": sign(body)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["received"])
	require.Len(t, ts.dispatcher.events, 1)
	assert.Equal(t, "5", ts.dispatcher.events[0].ItemID())
}

func TestWebhookBadJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"event":`

	w := ts.do(http.MethodPost, "/api/webhook/lightspeed", body, map[string]string{"X-Lightspeed-Signature": sign(body)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", decode(t, w)["error"])
}

func TestWebhookProcessingFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.dispatcher.err = errors.New("db down")
	body := `{"event":"item.deleted","data":{"itemID":"5"}}`

	w := ts.do(http.MethodPost, "/api/webhook/lightspeed", body, map[string]string{"X-Lightspeed-Signature": sign(body)})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Processing failed", decode(t, w)["error"])
}

func TestWebhookQueued(t *testing.T) {
	publisher := &fakePublisher{}
	ts := newTestServer(t, publisher)
	body := `{"event":"item.created","data":{"itemID":"9"}}`

	w := ts.do(http.MethodPost, "/api/webhook/lightspeed", body, map[string]string{"X-Lightspeed-Signature": sign(body)})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "9", publisher.published[0].ItemID())
	assert.Empty(t, ts.dispatcher.events)
}

func TestWebhookStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/api/webhook/lightspeed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook endpoint active", decode(t, w)["status"])
}

func seedProducts(t *testing.T, st *store.Store) {
	t.Helper()
	mk := func(id, name, slug string, price float64, category models.ProductCategory) models.Product {
		return models.Product{
			ID:               id,
			LightspeedItemID: id,
			Name:             name,
			Slug:             slug,
			Price:            price,
			Category:         category,
			InStock:          true,
			Quantity:         1,
			Images:           models.ProductImages{{ID: "placeholder", URL: "/p.jpg", IsPrimary: true}},
			Tags:             models.StringList{},
			CreatedAt:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Attributes: models.PlantAttributes{
				LightLevel: models.LightBright,
				Size:       models.SizeMedium,
			},
		}
	}
	fern := mk("1", "Boston Fern", "boston-fern", 15, models.CategoryTropical)
	fern.Attributes.IsPetSafe = true
	require.NoError(t, st.UpsertProducts(context.Background(), []models.Product{
		fern,
		mk("2", "Monstera", "monstera", 40, models.CategoryTropical),
		mk("3", "Jade", "jade", 12, models.CategorySucculent),
	}))
}

func TestProductList(t *testing.T) {
	ts := newTestServer(t, nil)
	seedProducts(t, ts.store)

	w := ts.do(http.MethodGet, "/api/products?categories=tropical&sortBy=price-high", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 2.0, body["total"])
	products := body["products"].([]interface{})
	assert.Equal(t, "Monstera", products[0].(map[string]interface{})["name"])

	w = ts.do(http.MethodGet, "/api/products?petSafe=true&maxPrice=20", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, 1.0, body["total"])
	filters := body["filters"].(map[string]interface{})
	assert.Equal(t, 0.0, filters["minPrice"])
	assert.Equal(t, 20.0, filters["maxPrice"])
}

func TestProductSpecialQueries(t *testing.T) {
	ts := newTestServer(t, nil)
	seedProducts(t, ts.store)

	w := ts.do(http.MethodGet, "/api/products?featured=true&limit=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["products"])

	w = ts.do(http.MethodGet, "/api/products?plantOfMonth=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "product")
	assert.Nil(t, body["product"])
}

func TestProductBySlug(t *testing.T) {
	ts := newTestServer(t, nil)
	seedProducts(t, ts.store)

	w := ts.do(http.MethodGet, "/api/products/boston-fern", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Boston Fern", body["product"].(map[string]interface{})["name"])
	related := body["related"].([]interface{})
	require.Len(t, related, 1)
	assert.Equal(t, "monstera", related[0].(map[string]interface{})["slug"])

	w = ts.do(http.MethodGet, "/api/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodOptions, "/api/products", "", map[string]string{
		"Origin":                        "https://shop.example",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
