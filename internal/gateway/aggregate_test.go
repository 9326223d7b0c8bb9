package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func healthyService(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", jsonHandler(http.StatusOK, `{"ok":true}`))
	for path, handler := range routes {
		mux.HandleFunc(path, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthAllServicesUp(t *testing.T) {
	req := require.New(t)
	projects := healthyService(t, nil)
	tasks := healthyService(t, nil)
	notifications := healthyService(t, nil)

	agg := NewAggregator(projects.URL, tasks.URL, notifications.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	agg.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	req.Equal(http.StatusOK, rec.Code)

	var body struct {
		OK       bool            `json:"ok"`
		Gateway  bool            `json:"gateway"`
		Services map[string]bool `json:"services"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.True(body.OK)
	req.True(body.Gateway)
	req.Equal(map[string]bool{"projects": true, "tasks": true, "notifications": true}, body.Services)
}

func TestHealthAbsorbsSingleProbeFailure(t *testing.T) {
	req := require.New(t)
	projects := healthyService(t, nil)
	notifications := healthyService(t, nil)

	// The tasks probe hangs past its 2s budget.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	agg := NewAggregator(projects.URL, slow.URL, notifications.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	agg.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	req.Equal(http.StatusOK, rec.Code)

	var body struct {
		OK       bool            `json:"ok"`
		Services map[string]bool `json:"services"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.True(body.OK, "overall health never fails")
	req.True(body.Services["projects"])
	req.False(body.Services["tasks"])
	req.True(body.Services["notifications"])
}

func TestHealthAllProbesDownStillOK(t *testing.T) {
	req := require.New(t)
	dead := httptest.NewServer(nil)
	dead.Close()

	agg := NewAggregator(dead.URL, dead.URL, dead.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	agg.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	req.Equal(http.StatusOK, rec.Code)

	var body struct {
		OK       bool            `json:"ok"`
		Services map[string]bool `json:"services"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.True(body.OK)
	for name, up := range body.Services {
		req.False(up, "service %s", name)
	}
}

func TestStatsMergesAndCaches(t *testing.T) {
	req := require.New(t)
	projects := healthyService(t, map[string]http.HandlerFunc{
		"/projects": jsonHandler(http.StatusOK, `[{"name":"a"},{"name":"b"},{"name":"c"}]`),
	})
	tasks := healthyService(t, map[string]http.HandlerFunc{
		"/stats": jsonHandler(http.StatusOK, `{"tasks":7,"todo":3,"doing":2,"done":2,"scope":"all"}`),
	})
	notifications := healthyService(t, nil)

	agg := NewAggregator(projects.URL, tasks.URL, notifications.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	agg.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	req.Equal(http.StatusOK, rec.Code)

	var first Stats
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &first))
	req.Equal(Stats{Projects: 3, Tasks: 7, Todo: 3, Doing: 2, Done: 2, Cached: false}, first)

	// Second call within the window serves the cache.
	rec = httptest.NewRecorder()
	agg.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	req.Equal(http.StatusOK, rec.Code)

	var second Stats
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &second))
	req.True(second.Cached)
	second.Cached = false
	req.Equal(first, second)
}

func TestStatsFailureIsBadGatewayAndNothingIsCached(t *testing.T) {
	req := require.New(t)
	projects := healthyService(t, map[string]http.HandlerFunc{
		"/projects": jsonHandler(http.StatusOK, `[]`),
	})
	tasks := healthyService(t, map[string]http.HandlerFunc{
		"/stats": jsonHandler(http.StatusInternalServerError, `{"message":"boom"}`),
	})
	notifications := healthyService(t, nil)

	agg := NewAggregator(projects.URL, tasks.URL, notifications.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	agg.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	req.Equal(http.StatusBadGateway, rec.Code)

	var body map[string]string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.NotEmpty(body["error"])

	_, cached := agg.cache.get(statsCacheKey)
	req.False(cached, "a failed aggregation must not populate the cache")
}

func TestStatsExpiredEntryTriggersRefetch(t *testing.T) {
	req := require.New(t)
	calls := 0
	projects := healthyService(t, map[string]http.HandlerFunc{
		"/projects": func(w http.ResponseWriter, _ *http.Request) {
			calls++
			jsonHandler(http.StatusOK, `[]`)(w, nil)
		},
	})
	tasks := healthyService(t, map[string]http.HandlerFunc{
		"/stats": jsonHandler(http.StatusOK, `{"tasks":0,"todo":0,"doing":0,"done":0}`),
	})
	notifications := healthyService(t, nil)

	agg := NewAggregator(projects.URL, tasks.URL, notifications.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	agg.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(1, calls)

	// Force the entry past its TTL.
	agg.cache.mu.Lock()
	entry := agg.cache.entries[statsCacheKey]
	entry.expires = time.Now().Add(-time.Second)
	agg.cache.entries[statsCacheKey] = entry
	agg.cache.mu.Unlock()

	rec = httptest.NewRecorder()
	agg.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(2, calls, "an expired entry must trigger a fresh downstream fetch")

	var stats Stats
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
	req.False(stats.Cached)
}
