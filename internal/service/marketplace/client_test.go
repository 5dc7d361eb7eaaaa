package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SellerGuard/internal/domain/models"
	pkghttp "SellerGuard/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMarketplace(t *testing.T) *httptest.Server {
	t.Helper()
	write := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/users/42", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		write(w, map[string]interface{}{"seller_reputation": map[string]string{"level_id": "3_yellow"}})
	})
	mux.HandleFunc("/orders/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("seller"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		write(w, map[string]interface{}{
			"paging":  map[string]int{"total": 40},
			"results": []map[string]interface{}{{"id": 1, "status": "paid"}, {"id": 2, "status": "cancelled"}, {"id": 3, "status": "cancelled"}},
		})
	})
	mux.HandleFunc("/claims/search", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{"paging": map[string]int{"total": 2}})
	})
	mux.HandleFunc("/users/42/items/search", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{"results": []string{"MLB1", "MLB2"}})
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MLB1,MLB2", r.URL.Query().Get("ids"))
		write(w, []map[string]interface{}{
			{"code": 200, "body": map[string]interface{}{"id": "MLB1", "status": "active", "available_quantity": 0}},
			{"code": 404, "body": map[string]interface{}{}},
		})
	})
	mux.HandleFunc("/questions/search", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{"questions": []map[string]interface{}{
			{"date_created": "2026-03-01T10:00:00Z", "answer": map[string]string{"date_created": "2026-03-01T11:30:00Z"}},
			{"date_created": "2026-03-01T10:00:00Z", "answer": nil},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchStats(t *testing.T) {
	srv := fakeMarketplace(t)
	fixed := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	c, err := New(pkghttp.NewClient(pkghttp.WithTimeout(2*time.Second)), srv.URL+"/", "tok",
		WithOrdersLimit(50), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	stats, err := c.FetchStats(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "42", stats.AccountID)
	assert.Equal(t, "3_yellow", stats.ReputationLevel)
	assert.Equal(t, 40, stats.TotalOrders)
	assert.Equal(t, 2, stats.CancelledOrders)
	assert.Equal(t, 2, stats.Claims)
	assert.Equal(t, []models.Listing{{ID: "MLB1", Status: "active", AvailableQuantity: 0}}, stats.Listings)
	assert.Equal(t, []float64{90}, stats.ResponseMinutes)
	assert.Equal(t, fixed, stats.FetchedAt)
}

func TestFetchStats_Errors(t *testing.T) {
	srv := fakeMarketplace(t)

	c, err := New(pkghttp.NewClient(), srv.URL, "wrong")
	require.NoError(t, err)
	_, err = c.FetchStats(context.Background(), "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = c.FetchStats(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrAccountRequired)
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(pkghttp.NewClient(), "https://api.example.com", "")
	assert.Error(t, err)
	_, err = New(nil, "https://api.example.com", "tok")
	assert.Error(t, err)
}
