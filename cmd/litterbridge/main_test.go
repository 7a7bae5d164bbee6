package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/litterbridge/internal/bridge"
	"github.com/nerrad567/litterbridge/internal/infrastructure/config"
	"github.com/nerrad567/litterbridge/internal/journal"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LITTERBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Error(t, run(ctx))
}

func TestRun_NoDevices(t *testing.T) {
	path := writeConfig(t, `
vendor:
  api_key: "key"
  email: "owner@example.com"
  password: "secret"
devices: []
`)
	t.Setenv("LITTERBRIDGE_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Error(t, run(ctx))
}

// TestRun_BrokerUnreachable starts against a closed port; run must fail
// rather than hang.
func TestRun_BrokerUnreachable(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
vendor:
  api_key: "key"
  email: "owner@example.com"
  password: "secret"
devices:
  - external_id: "a0f1"
    slug: "upstairs"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "litterbridge-test"
database:
  enabled: true
  path: "`+filepath.Join(dir, "journal.db")+`"
logging:
  level: error
  format: text
`)
	t.Setenv("LITTERBRIDGE_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	assert.Error(t, run(ctx))
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("LITTERBRIDGE_CONFIG", "")

	assert.Equal(t, defaultConfigPath, getConfigPath())
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("LITTERBRIDGE_CONFIG", "/custom/path/config.yaml")

	assert.Equal(t, "/custom/path/config.yaml", getConfigPath())
}

func TestDeviceMap(t *testing.T) {
	m, err := deviceMap([]config.DeviceConfig{
		{ExternalID: "a0f1", Slug: "upstairs", Name: "Upstairs"},
		{ExternalID: "b7c2", Slug: "garage"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	k, ok := m.BySlug("garage")
	require.True(t, ok)
	assert.Equal(t, "b7c2", k.ExternalID)

	_, err = deviceMap([]config.DeviceConfig{
		{ExternalID: "a0f1", Slug: "upstairs"},
		{ExternalID: "b7c2", Slug: "upstairs"},
	})
	assert.ErrorIs(t, err, litterrobot.ErrInvalidDevice)
}

func TestJournalEntry(t *testing.T) {
	at := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	rec := bridge.CommandRecord{
		Command: litterrobot.Command{
			Kind:   litterrobot.CommandWaitTime,
			Device: litterrobot.DeviceKey{ExternalID: "a0f1", Slug: "upstairs"},
			Data:   litterrobot.CommandData{WaitTime: 7},
		},
		Wire:     "<W7",
		Outcome:  bridge.OutcomeFailed,
		Err:      errors.New("vendor unreachable"),
		Duration: 1500 * time.Millisecond,
		At:       at,
	}

	e := journalEntry(rec)

	assert.Equal(t, "upstairs", e.DeviceSlug)
	assert.Equal(t, "a0f1", e.ExternalID)
	assert.Equal(t, litterrobot.CommandWaitTime.String(), e.Kind)
	assert.Equal(t, "7", e.Payload)
	assert.Equal(t, "<W7", e.WireCommand)
	assert.Equal(t, bridge.OutcomeFailed, e.Outcome)
	assert.Equal(t, "vendor unreachable", e.Error)
	assert.EqualValues(t, 1500, e.DurationMS)
	assert.True(t, e.CreatedAt.Equal(at))
}

func TestJournalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := openJournalDB(ctx, config.DatabaseConfig{
		Enabled:     true,
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20261001_120000", version)

	repo := journal.NewSQLiteRepository(db.DB)
	adapter := &journalAdapter{repo: repo}

	err = adapter.RecordCommand(ctx, bridge.CommandRecord{
		Command: litterrobot.Command{
			Kind:   litterrobot.CommandPower,
			Device: litterrobot.DeviceKey{ExternalID: "a0f1", Slug: "upstairs"},
			Data:   litterrobot.CommandData{Power: true},
		},
		Wire:    "<P1",
		Outcome: bridge.OutcomeSent,
		At:      time.Now(),
	})
	require.NoError(t, err)

	res, err := repo.List(ctx, journal.Filter{DeviceSlug: "upstairs"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "<P1", res.Entries[0].WireCommand)
	assert.Empty(t, res.Entries[0].Error)
}
