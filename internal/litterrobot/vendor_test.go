package litterrobot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "test-api-key"
	testEmail    = "owner@example.com"
	testPassword = "hunter2"
	testUserID   = "user-1"
)

// fakeVendor is an in-process stand-in for the vendor API.
type fakeVendor struct {
	t   *testing.T
	srv *httptest.Server

	logins     atomic.Int32
	lists      atomic.Int32
	dispatches atomic.Int32

	mu       sync.Mutex
	robots   []map[string]string
	token    string
	sent     []map[string]string
	loginErr int // status to answer /login with, 0 for success
	listErr  int // status to answer list with, 0 for success

	// dropNextList closes the connection on the next list request.
	dropNextList atomic.Bool

	// loginDelay widens the race window for concurrency tests.
	loginDelay time.Duration
}

func newFakeVendor(t *testing.T) *fakeVendor {
	t.Helper()
	f := &fakeVendor{t: t, token: "token-1"}
	f.robots = []map[string]string{
		robot("a0f1", "RDY"),
		robot("b2c3", "CCP"),
		robot("c4d5", "DFS"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", f.handleLogin)
	mux.HandleFunc("GET /users/{uid}/litter-robots", f.handleList)
	mux.HandleFunc("POST /users/{uid}/litter-robots/{id}/dispatch-commands", f.handleDispatch)

	f.srv = httptest.NewServer(f.checkAPIKey(mux))
	t.Cleanup(f.srv.Close)
	return f
}

func robot(id, status string) map[string]string {
	return map[string]string{
		"litterRobotId":             id,
		"litterRobotNickname":       "robot " + id,
		"powerStatus":               "AC",
		"unitStatus":                status,
		"nightLightActive":          "1",
		"panelLockActive":           "0",
		"sleepModeActive":           "005:30:00",
		"cleanCycleWaitTimeMinutes": "7",
	}
}

func (f *fakeVendor) checkAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != testAPIKey {
			http.Error(w, `{"error":"missing api key"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeVendor) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+f.token && r.PathValue("uid") == testUserID
}

func (f *fakeVendor) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.logins.Add(1)
	if f.loginDelay > 0 {
		time.Sleep(f.loginDelay)
	}

	f.mu.Lock()
	status, token := f.loginErr, f.token
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email != testEmail || body.Password != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	writeTestJSON(w, map[string]any{
		"token": token,
		"user":  map[string]string{"userId": testUserID},
	})
}

func (f *fakeVendor) handleList(w http.ResponseWriter, r *http.Request) {
	f.lists.Add(1)

	if f.dropNextList.CompareAndSwap(true, false) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	status, robots := f.listErr, f.robots
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	writeTestJSON(w, robots)
}

func (f *fakeVendor) handleDispatch(w http.ResponseWriter, r *http.Request) {
	f.dispatches.Add(1)
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body["path_id"] = r.PathValue("id")

	f.mu.Lock()
	f.sent = append(f.sent, body)
	f.mu.Unlock()

	writeTestJSON(w, map[string]any{"_developerMessage": "ok"})
}

// rotateToken makes the currently issued token invalid.
func (f *fakeVendor) rotateToken(next string) {
	f.mu.Lock()
	f.token = next
	f.mu.Unlock()
}

func (f *fakeVendor) setRobots(robots ...map[string]string) {
	f.mu.Lock()
	f.robots = robots
	f.mu.Unlock()
}

func (f *fakeVendor) sentCommands() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func (f *fakeVendor) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		BaseURL:    f.srv.URL,
		APIKey:     testAPIKey,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})
	require.NoError(t, err)
	return c
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Test server
}

// rawServer answers every request with the given status and body.
func rawServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body)) //nolint:errcheck // Test server
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rawClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		BaseURL:    strings.TrimSuffix(srv.URL, "/") + "/",
		APIKey:     testAPIKey,
		MaxRetries: 2,
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})
	require.NoError(t, err)
	return c
}
