package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/utils"
)

// helper: hace la petición y devuelve código HTTP + error de red (si hubo)
func fetchURL(c HTTPClient, url string) (int, error) {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestHTTPClientHandles500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	code, err := fetchURL(NewHTTPClient(2*time.Second), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHTTPClientHandlesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := fetchURL(NewHTTPClient(100*time.Millisecond), srv.URL)
	assert.Error(t, err)
}

func TestGetJSONWithRetryRecoversFrom5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	var out []int
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), utils.NewBackoff(time.Millisecond, 3), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGetJSONWithRetryDoesNotRetry404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var out []int
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), utils.NewBackoff(time.Millisecond, 3), srv.URL, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.False(t, IsFatal(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetJSONWithRetryMarksAuthFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out []int
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), utils.NewBackoff(time.Millisecond, 3), srv.URL, &out)
	assert.True(t, IsFatal(err))
}

func TestHTTPSourceParsesRecords(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ads":
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`[{"source_id": 100, "campaign_id": "c1", "campaign_name": " Spring ",
				"group_id": 7, "ad_id": "a1", "date": "2024-03-01",
				"cost": 12.5, "cost_from_sources": "13.10", "valid_count": -2}]`))
		case "/conversions":
			w.Write([]byte(`[{"adv_id": "a1", "clickid": "k1", "date_of_click": "2024-03-01 10:00:00", "date_of_conversion": null}]`))
		case "/sales":
			w.Write([]byte(`[{"clickid": "k1", "order_status": 2, "order_profit": 40, "order_end_price": 150, "delivery_price": null, "order_date": "2024-03-04T08:00:00Z"}]`))
		case "/currency-rates":
			w.Write([]byte(`[{"year": 2024, "month": 3, "rate": 40.1}]`))
		case "/operational-costs":
			w.Write([]byte(`[{"year": 2024, "month": 3, "cost_per_conversion": 1.5}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := config.Config{RecordsURL: srv.URL + "/", Location: time.UTC, RetryBase: time.Millisecond}
	src := NewHTTPSource(NewHTTPClient(time.Second), cfg)
	ctx := context.Background()
	from, to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	ads, err := src.Ads(ctx, []string{"100", "200"}, from, to)
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, "from=2024-03-01&source_ids=100%2C200&to=2024-03-31", gotQuery)
	a := ads[0]
	assert.Equal(t, "100", a.SourceID)
	assert.Equal(t, "7", a.GroupID)
	assert.Equal(t, "Spring", a.CampaignName)
	assert.Equal(t, "2024-03-01", a.Date.Format("2006-01-02"))
	assert.Equal(t, "12.5", a.Cost.String())
	assert.Equal(t, "13.1", a.CostFromSources.String())
	assert.Zero(t, a.ValidCount)

	convs, err := src.Conversions(ctx, []string{"a1"}, from, to)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.True(t, convs[0].DateOfConversion.IsZero())
	assert.Equal(t, 10, convs[0].EffectiveDate().Hour())

	sales, err := src.Sales(ctx, []string{"k1"}, from, time.Time{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "2", sales[0].OrderStatus)
	assert.True(t, sales[0].DeliveryPrice.IsZero())

	rates, err := src.CurrencyRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "40.1", rates[0].Rate.String())

	costs, err := src.OperationalCosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.5", costs[0].CostPerConversion.String())
}
