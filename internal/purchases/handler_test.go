package purchases

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

func newTestRouter(t *testing.T) (http.Handler, fixture) {
	t.Helper()
	f := newFixture()
	r := chi.NewRouter()
	r.Route("/api/purchases", NewHandler(nil, f.svc).MountRoutes)
	return r, f
}

func TestHandlerCreatePurchase(t *testing.T) {
	router, f := newTestRouter(t)
	p := f.product(10, "5.00")

	body := fmt.Sprintf(`{"supplier":"Malharia Sul","items":[{"product_id":%d,"quantity":5,"unit_price":"8.00"}]}`, p.ID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/purchases", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Message  string       `json:"message"`
		Purchase purchaseView `json:"purchase"`
		Updated  []struct {
			ID      int64  `json:"id"`
			Stock   int64  `json:"stock"`
			AvgCost string `json:"avg_cost"`
		} `json:"updated_products"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "Purchase recorded.", created.Message)
	require.Equal(t, "40.00", created.Purchase.Total)
	require.Len(t, created.Purchase.Items, 1)
	require.Equal(t, "8.00", created.Purchase.Items[0].UnitPrice)
	require.Len(t, created.Updated, 1)
	require.Equal(t, int64(15), created.Updated[0].Stock)
	require.Equal(t, "6.00", created.Updated[0].AvgCost)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/purchases/%d", created.Purchase.ID), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/purchases?per_page=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Data    []purchaseView `json:"data"`
		Total   int            `json:"total"`
		PerPage int            `json:"per_page"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, 1, page.Total)
	require.Equal(t, 1, page.PerPage)
}

func TestHandlerIdempotencyKey(t *testing.T) {
	router, f := newTestRouter(t)
	p := f.product(0, "0.00")
	body := fmt.Sprintf(`{"supplier":"Fornecedor","items":[{"product_id":%d,"quantity":1,"unit_price":"2.00"}]}`, p.ID)

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/purchases", strings.NewReader(body))
		req.Header.Set(httpx.IdempotencyHeader, key)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusUnprocessableEntity, send("nope").Code)
	require.Equal(t, http.StatusCreated, send("5f0c5f8e-9f0b-4b8a-8d55-6c1d0e3a1b20").Code)
	require.Equal(t, http.StatusConflict, send("5f0c5f8e-9f0b-4b8a-8d55-6c1d0e3a1b20").Code)

	got, _ := f.store.Product(p.ID)
	require.Equal(t, int64(1), got.Stock)
}

func TestHandlerRejectsUnknownProduct(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/purchases", strings.NewReader(`{"supplier":"Fornecedor","items":[{"product_id":404,"quantity":1,"unit_price":"2.00"}]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Contains(t, problem.Errors, "items[0].product_id")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/purchases/9", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
