package bridge

import (
	"strconv"

	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// Boolean payloads used on state and command topics.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Entity is the discovery component type of a field.
type Entity string

// Entity types.
const (
	EntitySensor       Entity = "sensor"
	EntityBinarySensor Entity = "binary_sensor"
	EntitySwitch       Entity = "switch"
)

// Field describes one published attribute of a robot.
type Field struct {
	// Name is the last topic segment, e.g. "night_light".
	Name  string
	Label string

	Entity Entity

	// Kind is the command a write to this field produces.
	// CommandNone marks a read-only field.
	Kind litterrobot.CommandKind

	Icon        string
	DeviceClass string

	value func(litterrobot.DeviceState) string
}

// Writable reports whether the field has a command topic.
func (f Field) Writable() bool {
	return f.Kind != litterrobot.CommandNone
}

// Value renders the field from a state snapshot as a topic payload.
func (f Field) Value(st litterrobot.DeviceState) string {
	return f.value(st)
}

var fieldTable = []Field{
	{
		Name: "power_status", Label: "Power Status", Entity: EntitySensor, Icon: "mdi:power-plug",
		value: func(st litterrobot.DeviceState) string { return st.PowerStatus },
	},
	{
		Name: "unit_status", Label: "Unit Status", Entity: EntitySensor, Icon: "mdi:information-outline",
		value: func(st litterrobot.DeviceState) string { return st.UnitStatus },
	},
	{
		Name: "unit_status_text", Label: "Unit Status Text", Entity: EntitySensor, Icon: "mdi:message-text-outline",
		value: func(st litterrobot.DeviceState) string { return st.UnitStatusText },
	},
	{
		Name: "power", Label: "Power", Entity: EntitySwitch, Kind: litterrobot.CommandPower, Icon: "mdi:power",
		value: func(st litterrobot.DeviceState) string { return onOff(st.Power) },
	},
	{
		Name: "cycle", Label: "Cycle", Entity: EntitySwitch, Kind: litterrobot.CommandCycle, Icon: "mdi:sync",
		value: func(st litterrobot.DeviceState) string { return onOff(st.Cycle) },
	},
	{
		Name: "night_light", Label: "Night Light", Entity: EntitySwitch, Kind: litterrobot.CommandNightLight, Icon: "mdi:lightbulb-night",
		value: func(st litterrobot.DeviceState) string { return onOff(st.NightLight) },
	},
	{
		Name: "panel_lock", Label: "Panel Lock", Entity: EntitySwitch, Kind: litterrobot.CommandPanelLock, Icon: "mdi:lock",
		value: func(st litterrobot.DeviceState) string { return onOff(st.PanelLock) },
	},
	{
		Name: "sleep_mode_active", Label: "Sleep Mode Active", Entity: EntityBinarySensor, Icon: "mdi:sleep",
		value: func(st litterrobot.DeviceState) string { return onOff(st.SleepModeActive) },
	},
	{
		Name: "fault", Label: "Fault", Entity: EntityBinarySensor, DeviceClass: "problem",
		value: func(st litterrobot.DeviceState) string { return onOff(st.Fault) },
	},
	{
		Name: "wait_time", Label: "Wait Time", Entity: EntitySensor, Kind: litterrobot.CommandWaitTime, Icon: "mdi:timer-outline",
		value: func(st litterrobot.DeviceState) string { return strconv.Itoa(st.WaitTime) },
	},
	{
		Name: "sleep", Label: "Sleep", Entity: EntitySensor, Kind: litterrobot.CommandSleep, Icon: "mdi:clock-outline",
		value: func(st litterrobot.DeviceState) string { return st.SleepMode },
	},
}

// fieldsByName is the topic-segment lookup used to decode commands.
var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, len(fieldTable))
	for _, f := range fieldTable {
		m[f.Name] = f
	}
	return m
}()

// Fields returns every published field in topic order.
func Fields() []Field {
	return append([]Field(nil), fieldTable...)
}

// LookupField returns the field with the given topic name.
func LookupField(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// WritableFields returns the fields that accept commands.
func WritableFields() []Field {
	var out []Field
	for _, f := range fieldTable {
		if f.Writable() {
			out = append(out, f)
		}
	}
	return out
}

// DecodeCommand turns a command payload for field f into a Command for key.
// Booleans are true only for "ON"; a malformed wait time decodes as 0; the
// sleep schedule passes through unchanged.
func DecodeCommand(key litterrobot.DeviceKey, f Field, payload []byte) litterrobot.Command {
	cmd := litterrobot.Command{Kind: f.Kind, Device: key}
	text := string(payload)

	switch f.Kind {
	case litterrobot.CommandPower:
		cmd.Data.Power = text == PayloadOn
	case litterrobot.CommandCycle:
		cmd.Data.Cycle = text == PayloadOn
	case litterrobot.CommandNightLight:
		cmd.Data.NightLight = text == PayloadOn
	case litterrobot.CommandPanelLock:
		cmd.Data.PanelLock = text == PayloadOn
	case litterrobot.CommandWaitTime:
		n, err := strconv.Atoi(text)
		if err != nil {
			n = 0
		}
		cmd.Data.WaitTime = n
	case litterrobot.CommandSleep:
		cmd.Data.Sleep = text
	}

	return cmd
}

func onOff(b bool) string {
	if b {
		return PayloadOn
	}
	return PayloadOff
}
