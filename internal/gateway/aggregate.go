// Package gateway is the public entry point: it forwards requests to exactly
// one downstream service or runs an aggregation handler that fans out to
// several of them.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/metrics"
)

const (
	healthProbeTimeout = 2 * time.Second
	statsFetchTimeout  = 5 * time.Second
	statsCacheTTL      = 10 * time.Second
	statsCacheKey      = "stats"
)

// Stats is the merged aggregate served by GET /api/stats.
type Stats struct {
	Projects int  `json:"projects"`
	Tasks    int  `json:"tasks"`
	Todo     int  `json:"todo"`
	Doing    int  `json:"doing"`
	Done     int  `json:"done"`
	Cached   bool `json:"cached"`
}

// taskStats mirrors the tasks service's /stats payload.
type taskStats struct {
	Tasks int `json:"tasks"`
	Todo  int `json:"todo"`
	Doing int `json:"doing"`
	Done  int `json:"done"`
}

// Aggregator runs the gateway's fan-out handlers against the downstream
// services.
type Aggregator struct {
	client      *http.Client
	projectsURL string
	tasksURL    string
	notifyURL   string
	cache       *ttlCache
	log         zerolog.Logger
}

// NewAggregator builds an Aggregator over the three downstream base URLs.
func NewAggregator(projectsURL, tasksURL, notifyURL string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		client:      &http.Client{Timeout: 10 * time.Second},
		projectsURL: projectsURL,
		tasksURL:    tasksURL,
		notifyURL:   notifyURL,
		cache:       newTTLCache(),
		log:         log,
	}
}

// Health probes every downstream concurrently and reports one boolean per
// service. A failed or timed-out probe flips its flag only; the endpoint
// itself always answers ok. The joiner collects every result and never
// short-circuits on the first failure, unlike the stats fan-out.
func (a *Aggregator) Health(w http.ResponseWriter, r *http.Request) {
	probes := map[string]string{
		"projects":      a.projectsURL + "/health",
		"tasks":         a.tasksURL + "/health",
		"notifications": a.notifyURL + "/health",
	}

	var (
		mu       sync.Mutex
		services = make(map[string]bool, len(probes))
		wg       sync.WaitGroup
	)

	for name, url := range probes {
		wg.Add(1)
		go func(name, url string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
			defer cancel()

			ok := a.probe(ctx, url)
			mu.Lock()
			services[name] = ok
			mu.Unlock()
		}(name, url)
	}
	wg.Wait()

	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"gateway":  true,
		"services": services,
	})
}

func (a *Aggregator) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Debug().Err(err).Str("url", url).Msg("health probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// StatsHandler serves the merged project/task counts, cached for ten
// seconds. A cache miss fans out to both downstream endpoints with a
// fail-fast joiner: if either call fails, the request answers 502 and
// nothing is cached, so the next call tries a fresh fetch.
func (a *Aggregator) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if cached, ok := a.cache.get(statsCacheKey); ok {
		metrics.StatsCacheHits.Inc()
		stats := cached.(Stats)
		stats.Cached = true
		httpx.JSON(w, http.StatusOK, stats)
		return
	}
	metrics.StatsCacheMisses.Inc()

	stats, err := a.fetchStats(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("stats aggregation failed")
		httpx.Error(w, http.StatusBadGateway, "stats unavailable", err.Error())
		return
	}

	a.cache.set(statsCacheKey, stats, statsCacheTTL)
	httpx.JSON(w, http.StatusOK, stats)
}

// fetchStats issues both downstream calls concurrently and merges the
// results. The first failure cancels the sibling call's context, but a
// timeout of one call never outlives the group: both calls share one budget.
func (a *Aggregator) fetchStats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, statsFetchTimeout)
	defer cancel()

	var (
		projectCount int
		tasks        taskStats
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var projects []json.RawMessage
		if err := a.fetchJSON(ctx, a.projectsURL+"/projects", &projects); err != nil {
			return fmt.Errorf("projects count: %w", err)
		}
		projectCount = len(projects)
		return nil
	})
	g.Go(func() error {
		if err := a.fetchJSON(ctx, a.tasksURL+"/stats", &tasks); err != nil {
			return fmt.Errorf("tasks stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	return Stats{
		Projects: projectCount,
		Tasks:    tasks.Tasks,
		Todo:     tasks.Todo,
		Doing:    tasks.Doing,
		Done:     tasks.Done,
		Cached:   false,
	}, nil
}

func (a *Aggregator) fetchJSON(ctx context.Context, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
