package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/swgestor/backend/internal/config"
)

// echoService records what it receives and answers a fixed body so the test
// can check both directions of the relay.
func echoService(t *testing.T) (*httptest.Server, *http.Request, *[]byte) {
	t.Helper()
	var seen http.Request
	var seenBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = *r
		seen.URL = r.URL
		seenBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"echo":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen, &seenBody
}

func newTestGateway(t *testing.T, projectsURL, tasksURL, notifyURL string) *httptest.Server {
	t.Helper()
	router, err := NewRouter(config.Gateway{
		ProjectsURL:  projectsURL,
		TasksURL:     tasksURL,
		NotifyURL:    notifyURL,
		ClientOrigin: "*",
	}, zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestProxyStripsAPIPrefixAndRelaysVerbatim(t *testing.T) {
	req := require.New(t)
	projects, seen, seenBody := echoService(t)
	gw := newTestGateway(t, projects.URL, projects.URL, projects.URL)

	payload := []byte(`{"name":"nuevo proyecto"}`)
	resp, err := http.Post(gw.URL+"/api/projects?sort=desc", "application/json", bytes.NewReader(payload))
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusCreated, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.JSONEq(`{"echo":true}`, string(body))

	req.Equal(http.MethodPost, seen.Method)
	req.Equal("/projects", seen.URL.Path)
	req.Equal("sort=desc", seen.URL.RawQuery)
	req.Equal(payload, *seenBody)
}

func TestProjectTasksRouteForwardsToTasksService(t *testing.T) {
	req := require.New(t)
	projects, projSeen, _ := echoService(t)
	tasks, taskSeen, _ := echoService(t)
	gw := newTestGateway(t, projects.URL, tasks.URL, projects.URL)

	resp, err := http.Get(gw.URL + "/api/projects/abc123/tasks")
	req.NoError(err)
	resp.Body.Close()

	req.Equal("/projects/abc123/tasks", taskSeen.URL.Path)
	req.Nil(projSeen.URL, "the projects service must not see the nested task route")
}

func TestProjectByIDRouteForwardsToProjectsService(t *testing.T) {
	req := require.New(t)
	projects, projSeen, _ := echoService(t)
	tasks, taskSeen, _ := echoService(t)
	gw := newTestGateway(t, projects.URL, tasks.URL, projects.URL)

	resp, err := http.Get(gw.URL + "/api/projects/abc123")
	req.NoError(err)
	resp.Body.Close()

	req.Equal("/projects/abc123", projSeen.URL.Path)
	req.Nil(taskSeen.URL)
}

func TestChatRoutesForwardToNotifications(t *testing.T) {
	req := require.New(t)
	notifications, seen, _ := echoService(t)
	gw := newTestGateway(t, notifications.URL, notifications.URL, notifications.URL)

	resp, err := http.Get(gw.URL + "/api/chat/global?limit=5")
	req.NoError(err)
	resp.Body.Close()
	req.Equal("/chat/global", seen.URL.Path)
	req.Equal("limit=5", seen.URL.RawQuery)

	resp, err = http.Post(gw.URL+"/api/notify", "application/json", bytes.NewReader([]byte(`{}`)))
	req.NoError(err)
	resp.Body.Close()
	req.Equal("/notify", seen.URL.Path)
}

func TestProxyUnreachableDownstreamIsBadGateway(t *testing.T) {
	req := require.New(t)
	dead := httptest.NewServer(nil)
	dead.Close()
	gw := newTestGateway(t, dead.URL, dead.URL, dead.URL)

	resp, err := http.Get(gw.URL + "/api/projects")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadGateway, resp.StatusCode)

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("downstream unavailable", body["message"])
	req.NotEmpty(body["error"])
}

func TestDownstreamErrorStatusIsRelayedUnchanged(t *testing.T) {
	req := require.New(t)
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"No encontrado"}`, http.StatusNotFound)
	}))
	t.Cleanup(failing.Close)
	gw := newTestGateway(t, failing.URL, failing.URL, failing.URL)

	resp, err := http.Get(gw.URL + "/api/projects/missing")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}
