package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/litterbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
	failTopics    map[string]bool
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

var errMockPublish = errors.New("mock publish failure")

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected:  true,
		handlers:   make(map[string]func(topic string, payload []byte)),
		failTopics: make(map[string]bool),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTopics[topic] {
		return errMockPublish
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) FailPublish(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTopics[topic] = true
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns the payloads published to topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, string(p.Payload))
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// SimulateMessage simulates receiving an MQTT message on a topic.
// It reports whether a handler was subscribed.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
	return ok
}

// MockSource implements StateSource for testing.
type MockSource struct {
	mu       sync.Mutex
	states   map[string]litterrobot.DeviceState
	fetchErr error
	sendErr  error
	fetches  int
	sent     []litterrobot.Command
}

func NewMockSource(states ...litterrobot.DeviceState) *MockSource {
	m := &MockSource{states: make(map[string]litterrobot.DeviceState)}
	for _, st := range states {
		m.states[st.ExternalID] = st
	}
	return m
}

func (m *MockSource) FetchOne(_ context.Context, key litterrobot.DeviceKey) (litterrobot.DeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return litterrobot.DeviceState{}, m.fetchErr
	}
	st, ok := m.states[key.ExternalID]
	if !ok {
		return litterrobot.DeviceState{}, litterrobot.ErrNotFound
	}
	return st, nil
}

func (m *MockSource) Send(_ context.Context, cmd litterrobot.Command) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, cmd)
	wire := litterrobot.Translate(cmd)
	if wire == "" {
		return "", nil
	}
	return wire, m.sendErr
}

func (m *MockSource) SetFetchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *MockSource) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *MockSource) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *MockSource) Sent() []litterrobot.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]litterrobot.Command(nil), m.sent...)
}

// MockJournal implements CommandJournal for testing.
type MockJournal struct {
	mu      sync.Mutex
	records []CommandRecord
}

func (m *MockJournal) RecordCommand(_ context.Context, rec CommandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MockJournal) Records() []CommandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandRecord(nil), m.records...)
}

// MockRecorder implements StateRecorder for testing.
type MockRecorder struct {
	mu     sync.Mutex
	states map[string]litterrobot.DeviceState
}

func (m *MockRecorder) WriteDeviceState(slug string, st litterrobot.DeviceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = make(map[string]litterrobot.DeviceState)
	}
	m.states[slug] = st
}

func (m *MockRecorder) Get(slug string) (litterrobot.DeviceState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[slug]
	return st, ok
}

var (
	testTopics = mqtt.NewTopics("litterrobot")

	upstairs = litterrobot.DeviceKey{ExternalID: "a0f1", Slug: "upstairs", Name: "Upstairs"}
	garage   = litterrobot.DeviceKey{ExternalID: "b2c3", Slug: "garage"}
)

func testDevices(t *testing.T) *litterrobot.DeviceMap {
	t.Helper()
	m, err := litterrobot.NewDeviceMap([]litterrobot.DeviceKey{upstairs, garage})
	require.NoError(t, err)
	return m
}

func testState(id string) litterrobot.DeviceState {
	return litterrobot.DeviceState{
		ExternalID:      id,
		PowerStatus:     "AC",
		UnitStatus:      "RDY",
		UnitStatusText:  "Ready",
		Power:           true,
		NightLight:      true,
		SleepModeActive: true,
		WaitTime:        7,
		SleepMode:       "22:30:00",
	}
}
