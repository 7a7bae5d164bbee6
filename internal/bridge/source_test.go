package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

const (
	vendorAPIKey = "bridge-test-key"
	vendorUserID = "user-7"
	vendorToken  = "token-7"
)

// vendorRobot is one robot as the vendor's list endpoint returns it.
func vendorRobot(id, status string) map[string]string {
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

// newVendorServer serves login and robot listing for an account that owns
// three robots.
func newVendorServer(t *testing.T, lists *atomic.Int32) *httptest.Server {
	t.Helper()
	robots := []map[string]string{
		vendorRobot("a0f1", "RDY"),
		vendorRobot("b2c3", "CCP"),
		vendorRobot("c4d5", "DFS"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": vendorToken,
			"user":  map[string]string{"userId": vendorUserID},
		})
	})
	mux.HandleFunc("GET /users/{uid}/litter-robots", func(w http.ResponseWriter, r *http.Request) {
		lists.Add(1)
		if r.PathValue("uid") != vendorUserID || r.Header.Get("Authorization") != "Bearer "+vendorToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(robots)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != vendorAPIKey {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newVendorSource(t *testing.T, baseURL string) *litterrobot.Source {
	t.Helper()
	client, err := litterrobot.NewClient(litterrobot.ClientConfig{
		BaseURL: baseURL,
		APIKey:  vendorAPIKey,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	store := litterrobot.NewStore()
	sessions := litterrobot.NewSessionManager(client, litterrobot.Credentials{
		Email:    "owner@example.com",
		Password: "secret",
	}, store, time.Hour, nil)

	source, err := litterrobot.NewSource(litterrobot.SourceOptions{
		API:      client,
		Sessions: sessions,
		Store:    store,
		StateTTL: time.Minute,
	})
	require.NoError(t, err)
	return source
}

func TestBridge_PublishesOnlyConfiguredRobots(t *testing.T) {
	var lists atomic.Int32
	srv := newVendorServer(t, &lists)
	source := newVendorSource(t, srv.URL)

	devices, err := litterrobot.NewDeviceMap([]litterrobot.DeviceKey{upstairs})
	require.NoError(t, err)

	client := NewMockMQTTClient()
	b, err := NewBridge(Options{
		MQTT:           client,
		Topics:         testTopics,
		Source:         source,
		Devices:        devices,
		QoS:            1,
		Discovery:      testDiscovery,
		PollInterval:   time.Hour,
		HealthInterval: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)

	waitFor(t, "upstairs state", func() bool {
		return len(client.PublishedTo("litterrobot/upstairs/unit_status")) == 1
	})
	waitFor(t, "poll cycle", func() bool { return b.Stats().LastPollOK })

	assert.Equal(t, []string{"RDY"}, client.PublishedTo("litterrobot/upstairs/unit_status"))
	assert.Equal(t, []string{"ON"}, client.PublishedTo("litterrobot/upstairs/night_light"))

	// The account's other robots were fetched and cached...
	assert.Len(t, source.Snapshot(), 3)
	assert.Equal(t, int32(1), lists.Load())

	// ...but nothing about them reaches the broker.
	for _, p := range client.GetPublished() {
		ok := strings.HasPrefix(p.Topic, "litterrobot/upstairs/") ||
			strings.HasPrefix(p.Topic, "litterrobot/bridge/") ||
			strings.Contains(p.Topic, "/litterbridge_upstairs/")
		assert.True(t, ok, "unexpected topic %s", p.Topic)
		assert.NotContains(t, string(p.Payload), "b2c3")
		assert.NotContains(t, string(p.Payload), "c4d5")
	}
	for _, s := range client.GetSubscriptions() {
		assert.True(t, strings.HasPrefix(s.Topic, "litterrobot/set/upstairs/"), "unexpected subscription %s", s.Topic)
	}

	stats := b.Stats()
	assert.Equal(t, 1, stats.Devices)
	assert.Equal(t, uint64(1), stats.PollsOK)
	assert.Zero(t, stats.PollsFailed)
}
