package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/repuestos/internal/clock"
	"github.com/smallbiznis/repuestos/internal/config"
	"github.com/smallbiznis/repuestos/internal/observability"
	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	productdomain "github.com/smallbiznis/repuestos/internal/product/domain"
	"github.com/smallbiznis/repuestos/internal/providers/pdf"
	sequencedomain "github.com/smallbiznis/repuestos/internal/sequence/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProductService struct {
	products  map[string]productdomain.Response
	createErr error
	summary   productdomain.SyncSummary
	lastLimit int
}

func newFakeProductService() *fakeProductService {
	return &fakeProductService{products: map[string]productdomain.Response{}}
}

func (f *fakeProductService) Create(_ context.Context, req productdomain.CreateRequest) (*productdomain.Response, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	code := "00000001"
	if req.PrimaryCode != nil {
		code = *req.PrimaryCode
	}
	if _, ok := f.products[code]; ok {
		return nil, productdomain.ErrDuplicateCode
	}
	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}
	resp := productdomain.Response{
		PrimaryCode:  code,
		InternalCode: "00000001",
		Description:  req.Description,
		Price:        req.Price,
		Stock:        stock,
	}
	f.products[code] = resp
	return &resp, nil
}

func (f *fakeProductService) List(context.Context) ([]productdomain.Response, error) {
	out := make([]productdomain.Response, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductService) Get(_ context.Context, code string) (*productdomain.Response, error) {
	p, ok := f.products[code]
	if !ok {
		return nil, productdomain.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProductService) Update(_ context.Context, code string, req productdomain.UpdateRequest) (*productdomain.Response, error) {
	p, ok := f.products[code]
	if !ok {
		return nil, productdomain.ErrNotFound
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	f.products[code] = p
	return &p, nil
}

func (f *fakeProductService) Delete(_ context.Context, code string) error {
	if _, ok := f.products[code]; !ok {
		return productdomain.ErrNotFound
	}
	delete(f.products, code)
	return nil
}

func (f *fakeProductService) ResyncPending(_ context.Context, limit int) (productdomain.SyncSummary, error) {
	f.lastLimit = limit
	return f.summary, nil
}

type fakePDF struct {
	last pdf.PriceList
}

func (f *fakePDF) GeneratePriceList(_ context.Context, data pdf.PriceList) (io.Reader, error) {
	f.last = data
	return strings.NewReader("%PDF-1.4"), nil
}

type testEnv struct {
	router *gin.Engine
	svc    *fakeProductService
	pdf    *fakePDF
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(
		observability.Config{ServiceName: "repuestos", Environment: "test"},
		obsmetrics.NewHTTPMetricsForRegistry(prometheus.NewRegistry()),
	)
	svc := newFakeProductService()
	doc := &fakePDF{}
	syncCfg := config.DefaultSyncConfig()
	syncCfg.BatchSize = 11

	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{Environment: "test"},
		Clock:      clock.NewFakeClock(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)),
		ProductSvc: svc,
		PDF:        doc,
		SyncCfg:    config.NewStaticSyncConfigHolder(syncCfg),
	})

	return &testEnv{router: engine, svc: svc, pdf: doc}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		resp := env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String(), path)
	}
}

func TestCreateProductReturnsCreated(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/products", `{"primary_code":"ABC123","description":"Filtro","price":10.5,"stock":3}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	var body struct {
		Data productdomain.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ABC123", body.Data.PrimaryCode)
	assert.Equal(t, 3, body.Data.Stock)
	assert.Contains(t, resp.Body.String(), `"external_id":null`)
}

func TestCreateDuplicateIsValidationError(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/products", `{"primary_code":"ABC123","description":"Filtro","price":1}`).Code)
	resp := env.do(http.MethodPost, "/api/products", `{"primary_code":"ABC123","description":"Otro","price":2}`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "duplicate_primary_code", payload.Errors[0].Code)
	assert.Equal(t, "primary_code", payload.Errors[0].Field)
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/products", `{"description":`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_request", payload.Errors[0].Code)
}

func TestCreateMapsDomainValidation(t *testing.T) {
	env := newTestEnv(t)
	env.svc.createErr = productdomain.ErrInvalidPrice

	resp := env.do(http.MethodPost, "/api/products", `{"description":"x","price":-1}`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_price", payload.Errors[0].Code)
	assert.Equal(t, "price", payload.Errors[0].Field)
}

func TestCreateSequenceFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	env.svc.createErr = sequencedomain.ErrUninitialized

	resp := env.do(http.MethodPost, "/api/products", `{"description":"x","price":1}`)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "internal_error", decodeError(t, resp).Type)
}

func TestGetMissingProductIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/products/does-not-exist", "")

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestPatchUpdatesStock(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/products", `{"primary_code":"ABC123","description":"Filtro","price":1,"stock":5}`).Code)

	resp := env.do(http.MethodPatch, "/api/products/ABC123", `{"stock":2}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, env.svc.products["ABC123"].Stock)
}

func TestPatchMissingProductIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPatch, "/api/products/nope", `{"stock":2}`)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/products", `{"primary_code":"ABC123","description":"Filtro","price":1}`).Code)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/products/ABC123", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/products/ABC123", "").Code)
}

func TestProductRoutesServedAtRoot(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/products", `{"primary_code":"ABC123","description":"Filtro","price":1,"stock":5}`).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/products", "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/products/ABC123", "").Code)

	resp := env.do(http.MethodPatch, "/products/ABC123", `{"stock":2}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"stock":2`)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/products/ABC123", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/products/ABC123", "").Code)
}

func TestSyncUsesConfiguredBatchSize(t *testing.T) {
	env := newTestEnv(t)
	env.svc.summary = productdomain.SyncSummary{Attempted: 4, Synced: 3}

	resp := env.do(http.MethodPost, "/api/sync", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"attempted":4,"synced":3}}`, resp.Body.String())
	assert.Equal(t, 11, env.svc.lastLimit)
}

func TestPriceListDownload(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/products", `{"primary_code":"ABC123","description":"Filtro","price":10,"stock":1}`).Code)

	resp := env.do(http.MethodGet, "/api/pricelist.pdf", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "pricelist-20240301.pdf")
	assert.Equal(t, "%PDF-1.4", resp.Body.String())
	require.Len(t, env.pdf.last.Items, 1)
	assert.Equal(t, "ABC123", env.pdf.last.Items[0].PrimaryCode)
	assert.Equal(t, "2024-03-01 09:30", env.pdf.last.GeneratedAt)
}
