package litterrobot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DeviceKey identifies one configured robot by its vendor ID and its topic slug.
type DeviceKey struct {
	ExternalID string
	Slug       string

	// Name is an optional display name for discovery.
	Name string
}

// DisplayName returns Name, falling back to Slug.
func (k DeviceKey) DisplayName() string {
	if k.Name != "" {
		return k.Name
	}
	return k.Slug
}

// DeviceState is a snapshot of one robot as reported by the vendor.
type DeviceState struct {
	ExternalID      string    `json:"external_id"`
	Nickname        string    `json:"nickname,omitempty"`
	PowerStatus     string    `json:"power_status"`
	UnitStatus      string    `json:"unit_status"`
	UnitStatusText  string    `json:"unit_status_text"`
	Power           bool      `json:"power"`
	Cycle           bool      `json:"cycle"`
	NightLight      bool      `json:"night_light"`
	PanelLock       bool      `json:"panel_lock"`
	SleepModeActive bool      `json:"sleep_mode_active"`
	Fault           bool      `json:"fault"`
	WaitTime        int       `json:"wait_time"`
	SleepMode       string    `json:"sleep"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Session is an authenticated vendor session.
type Session struct {
	UserID string
	Token  string
}

// robotJSON is the vendor's representation of a robot. Every field is a string.
type robotJSON struct {
	LitterRobotID             string `json:"litterRobotId"`
	Nickname                  string `json:"litterRobotNickname"`
	PowerStatus               string `json:"powerStatus"`
	UnitStatus                string `json:"unitStatus"`
	NightLightActive          string `json:"nightLightActive"`
	PanelLockActive           string `json:"panelLockActive"`
	SleepModeActive           string `json:"sleepModeActive"`
	CleanCycleWaitTimeMinutes string `json:"cleanCycleWaitTimeMinutes"`
}

// toState normalises a vendor robot. Malformed flags read as false and a
// malformed wait time reads as 0.
func (r robotJSON) toState(fetchedAt time.Time) (DeviceState, error) {
	if r.LitterRobotID == "" {
		return DeviceState{}, fmt.Errorf("%w: robot without litterRobotId", ErrDecode)
	}

	status := LookupUnitStatus(r.UnitStatus)
	sleepActive, sleepSchedule := splitSleepMode(r.SleepModeActive)

	return DeviceState{
		ExternalID:      r.LitterRobotID,
		Nickname:        r.Nickname,
		PowerStatus:     r.PowerStatus,
		UnitStatus:      r.UnitStatus,
		UnitStatusText:  status.Text,
		Power:           r.UnitStatus != StatusOff && r.UnitStatus != StatusOffline,
		Cycle:           status.Cycling,
		NightLight:      r.NightLightActive == "1",
		PanelLock:       r.PanelLockActive == "1",
		SleepModeActive: sleepActive,
		Fault:           status.Fault,
		WaitTime:        parseWaitTime(r.CleanCycleWaitTimeMinutes),
		SleepMode:       sleepSchedule,
		FetchedAt:       fetchedAt,
	}, nil
}

// splitSleepMode splits "1hh:mm:ss" into the active flag and the schedule text.
func splitSleepMode(raw string) (bool, string) {
	if raw == "" {
		return false, ""
	}
	return raw[0] == '1', raw[1:]
}

// parseWaitTime reads the wait time in minutes. Older firmware reports it
// as a hex digit ("F" for 15), so that is accepted as a fallback.
func parseWaitTime(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if n, err := strconv.ParseInt(raw, 16, 32); err == nil {
		return int(n)
	}
	return 0
}
