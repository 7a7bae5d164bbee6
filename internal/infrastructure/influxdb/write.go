package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// MeasurementState is the measurement written for every polled robot state.
const MeasurementState = "litter_robot_state"

// WriteDeviceState records one robot snapshot. The write is non-blocking;
// points are batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceState("upstairs", state)
func (c *Client) WriteDeviceState(slug string, st litterrobot.DeviceState) {
	if !c.isOpen() {
		return
	}
	c.writes.WritePoint(StatePoint(slug, st))
}

// StatePoint builds the point for one robot snapshot. Tags identify the
// robot; booleans are stored as 0/1 integers so they can be graphed.
// A zero FetchedAt is stamped with the current time.
func StatePoint(slug string, st litterrobot.DeviceState) *write.Point {
	ts := st.FetchedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementState,
		map[string]string{
			"device":      slug,
			"external_id": st.ExternalID,
		},
		map[string]any{
			"unit_status":       st.UnitStatus,
			"power_status":      st.PowerStatus,
			"power":             boolInt(st.Power),
			"cycle":             boolInt(st.Cycle),
			"night_light":       boolInt(st.NightLight),
			"panel_lock":        boolInt(st.PanelLock),
			"sleep_mode_active": boolInt(st.SleepModeActive),
			"fault":             boolInt(st.Fault),
			"wait_time":         int64(st.WaitTime),
		},
		ts,
	)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
