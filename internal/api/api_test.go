package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/asana-automation-bridge/internal/auth"
	"github.com/rflorenc/asana-automation-bridge/internal/models"
	"github.com/rflorenc/asana-automation-bridge/internal/options"
	"github.com/rflorenc/asana-automation-bridge/internal/webhook"
)

// fakeAsana serves the handful of Asana endpoints the bridge calls.
type fakeAsana struct {
	*httptest.Server
	mu      sync.Mutex
	deleted []string
}

func (f *fakeAsana) deletedHooks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func asanaError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"errors": []map[string]string{{"message": msg}}})
}

func newFakeAsana(t *testing.T) *fakeAsana {
	t.Helper()
	f := &fakeAsana{}
	r := chi.NewRouter()
	r.Route("/api/1.0", func(r chi.Router) {
		r.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer good" {
				asanaError(w, http.StatusUnauthorized, "Not Authorized")
				return
			}
			w.Write([]byte(`{"data":{"gid":"7","name":"Ada","email":"ada@example.com"}}`))
		})
		r.Get("/projects/{id}/sections", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != "222" {
				asanaError(w, http.StatusNotFound, "project: Unknown object: "+chi.URLParam(r, "id"))
				return
			}
			w.Write([]byte(`{"data":[{"gid":"s1","name":"Todo"},{"gid":"s2","name":"Done"}]}`))
		})
		r.Post("/webhooks", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Data struct {
					Resource string `json:"resource"`
					Target   string `json:"target"`
				} `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				asanaError(w, http.StatusBadRequest, err.Error())
				return
			}
			req, _ := http.NewRequest(http.MethodPost, body.Data.Target, nil)
			req.Header.Set(webhook.SecretHeader, "handshake")
			resp, err := http.DefaultClient.Do(req)
			if err != nil || resp.Header.Get(webhook.SecretHeader) != "handshake" {
				asanaError(w, http.StatusBadRequest, "handshake failed")
				return
			}
			resp.Body.Close()
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"gid":      "1200",
				"resource": map[string]string{"gid": body.Data.Resource, "name": "Launch"},
				"target":   body.Data.Target,
				"active":   true,
			}})
		})
		r.Delete("/webhooks/{gid}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.deleted = append(f.deleted, chi.URLParam(r, "gid"))
			f.mu.Unlock()
			w.Write([]byte(`{"data":{}}`))
		})
	})
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

type testEnv struct {
	server *Server
	bridge *httptest.Server
	asana  *fakeAsana
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	asana := newFakeAsana(t)
	s := &Server{
		Connections:    models.NewConnectionStore(),
		Jobs:           models.NewJobStore(),
		Feeds:          models.NewFeedStore(0),
		Options:        options.NewRegistry(),
		APIBaseURL:     asana.URL + "/api/1.0",
		RequestTimeout: 5 * time.Second,
	}

	// The manager needs the bridge's URL, which exists only once it listens.
	var handler http.Handler
	bridge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(bridge.Close)
	s.Hooks = webhook.NewManager(bridge.URL, 2*time.Second, nil)
	handler = NewRouter(s)

	return &testEnv{server: s, bridge: bridge, asana: asana}
}

func (e *testEnv) addConnection(token, secret string) *models.Connection {
	c := &models.Connection{Name: "acme", AccessToken: token, WebhookSecret: secret}
	e.server.Connections.Create(c)
	return c
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.bridge.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) waitJob(t *testing.T, id string) models.Job {
	t.Helper()
	job := e.server.Jobs.Get(id)
	require.NotNil(t, job)
	require.Eventually(t, func() bool {
		done, _ := job.Finished()
		return done
	}, 5*time.Second, 10*time.Millisecond)
	return job.Snapshot()
}

func jobID(t *testing.T, data []byte) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotEmpty(t, out["job_id"])
	return out["job_id"]
}

func TestConnections_CRUD(t *testing.T) {
	e := newTestEnv(t)

	resp, data := e.do(t, http.MethodPost, "/api/connections", map[string]string{"name": "acme"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "access_token")

	resp, data = e.do(t, http.MethodPost, "/api/connections", map[string]string{"name": "acme", "access_token": "pat"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Connection
	require.NoError(t, json.Unmarshal(data, &created))
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "pat", created.AccessToken, "token is redacted")
	assert.Equal(t, "pat", e.server.Connections.Get(created.ID).AccessToken)

	resp, data = e.do(t, http.MethodPut, "/api/connections/"+created.ID, map[string]string{"name": "renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "renamed")
	assert.Equal(t, "pat", e.server.Connections.Get(created.ID).AccessToken, "empty token keeps the stored one")

	resp, data = e.do(t, http.MethodGet, "/api/connections", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(data), `"pat"`)

	resp, _ = e.do(t, http.MethodPut, "/api/connections/nope", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/connections/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/api/connections/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTestConnection(t *testing.T) {
	e := newTestEnv(t)
	good := e.addConnection("good", "")
	bad := e.addConnection("expired", "")

	_, data := e.do(t, http.MethodPost, "/api/connections/"+good.ID+"/test", nil)
	assert.Contains(t, string(data), `"ok":true`)
	assert.Contains(t, string(data), "Ada")
	assert.Equal(t, "ok", e.server.Connections.Get(good.ID).AuthStatus)

	_, data = e.do(t, http.MethodPost, "/api/connections/"+bad.ID+"/test", nil)
	assert.Contains(t, string(data), `"ok":false`)
	assert.Contains(t, string(data), "Not Authorized")
	stored := e.server.Connections.Get(bad.ID)
	assert.Equal(t, "error", stored.AuthStatus)
	assert.NotNil(t, stored.LastChecked)
}

func TestOptions(t *testing.T) {
	e := newTestEnv(t)
	c := e.addConnection("good", "")

	resp, data := e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/options/sections?project=222", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opts []models.Option
	require.NoError(t, json.Unmarshal(data, &opts))
	assert.Equal(t, []models.Option{{Label: "Todo", Value: "s1"}, {Label: "Done", Value: "s2"}}, opts)

	resp, data = e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/options/sections?project=999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(data), "Unknown object")

	resp, _ = e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/options/boards", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/options", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"kind":"sections"`)

	resp, _ = e.do(t, http.MethodGet, "/api/connections/nope/options/sections", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookLifecycle(t *testing.T) {
	e := newTestEnv(t)
	c := e.addConnection("good", "k")

	resp, _ := e.do(t, http.MethodPost, "/api/connections/"+c.ID+"/webhooks", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data := e.do(t, http.MethodPost, "/api/connections/"+c.ID+"/webhooks", map[string]string{"resource": "222"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := e.waitJob(t, jobID(t, data))
	require.Equal(t, models.JobCompleted, job.Status, job.Error)
	reg, ok := job.Result.(*webhook.Registration)
	require.True(t, ok)
	assert.Equal(t, "1200", reg.Hook.GID)

	_, data = e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/webhooks", nil)
	assert.Contains(t, string(data), `"gid":"1200"`)
	assert.NotContains(t, string(data), "handshake", "secret is never serialized")

	// A signed delivery lands in the event feed; a forged one does not.
	body := []byte(`{"events":[{"action":"changed","resource":{"gid":"333"}}]}`)
	sig := webhook.NewVerifier(auth.New("", "k")).Sign(body)
	for _, s := range []string{"forged", sig} {
		req, _ := http.NewRequest(http.MethodPost, reg.Hook.Target, bytes.NewReader(body))
		req.Header.Set(webhook.SecretHeader, s)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	_, data = e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/events", nil)
	var feed struct {
		Deliveries []models.Delivery `json:"deliveries"`
		Next       int               `json:"next"`
	}
	require.NoError(t, json.Unmarshal(data, &feed))
	require.Len(t, feed.Deliveries, 1)
	assert.JSONEq(t, `[{"action":"changed","resource":{"gid":"333"}}]`, string(feed.Deliveries[0].Events))
	assert.Equal(t, 1, feed.Next)

	_, data = e.do(t, http.MethodGet, "/api/connections/"+c.ID+"/events?since=1", nil)
	assert.Contains(t, string(data), `"deliveries":[]`)

	resp, data = e.do(t, http.MethodDelete, "/api/connections/"+c.ID+"/webhooks/1200", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job = e.waitJob(t, jobID(t, data))
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, []string{"1200"}, e.asana.deletedHooks())
	assert.Empty(t, e.server.Hooks.List(c.ID))
}

func TestWebhookCreate_HandshakeFailure(t *testing.T) {
	e := newTestEnv(t)
	c := e.addConnection("good", "k")
	// Point targets at an address Asana cannot reach.
	e.server.Hooks = webhook.NewManager("http://127.0.0.1:1", time.Second, nil)

	resp, data := e.do(t, http.MethodPost, "/api/connections/"+c.ID+"/webhooks", map[string]string{"resource": "222"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := e.waitJob(t, jobID(t, data))
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, "handshake failed")
	assert.Contains(t, strings.Join(job.Output, "\n"), "ERROR:")
}

func TestDeleteConnection_RemovesWebhooks(t *testing.T) {
	e := newTestEnv(t)
	c := e.addConnection("good", "k")

	_, data := e.do(t, http.MethodPost, "/api/connections/"+c.ID+"/webhooks", map[string]string{"resource": "222"})
	require.Equal(t, models.JobCompleted, e.waitJob(t, jobID(t, data)).Status)

	resp, _ := e.do(t, http.MethodDelete, "/api/connections/"+c.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"1200"}, e.asana.deletedHooks())
	assert.Empty(t, e.server.Hooks.List(c.ID))
}

func TestJobs(t *testing.T) {
	e := newTestEnv(t)
	job := e.server.Jobs.Create("webhook-create", "c1")
	job.AppendLog("hello")

	resp, data := e.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"status":"running"`)
	assert.Contains(t, string(data), "hello")

	resp, data = e.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), job.ID)

	resp, _ = e.do(t, http.MethodGet, "/api/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

func TestStreamJobLogs(t *testing.T) {
	e := newTestEnv(t)
	job := e.server.Jobs.Create("webhook-create", "c1")
	job.AppendLog("one")
	job.AppendLog("two")
	job.Complete(nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(e.bridge.URL, "/ws/jobs/"+job.ID+"/logs"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var lines []string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		lines = append(lines, string(msg))
	}
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestStreamEvents(t *testing.T) {
	e := newTestEnv(t)
	c := e.addConnection("good", "k")
	e.server.Feeds.For(c.ID).Append(c.ID, []byte(`{"events":[{"action":"added"}]}`))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(e.bridge.URL, "/ws/connections/"+c.ID+"/events"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var d models.Delivery
	require.NoError(t, conn.ReadJSON(&d))
	assert.JSONEq(t, `[{"action":"added"}]`, string(d.Events))

	e.server.Feeds.For(c.ID).Append(c.ID, []byte(`{"events":[{"action":"removed"}]}`))
	require.NoError(t, conn.ReadJSON(&d))
	assert.JSONEq(t, `[{"action":"removed"}]`, string(d.Events))
}

func TestQueryParams(t *testing.T) {
	got := queryParams(url.Values{"project": {"222"}, "organization": {"1", "2"}})
	assert.Equal(t, map[string]any{"project": "222", "organization": []string{"1", "2"}}, got)
}
