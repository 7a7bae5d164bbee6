package litterrobot

import "strconv"

// CommandKind selects which robot setting a Command changes.
type CommandKind int

// Command kinds.
const (
	CommandNone CommandKind = iota
	CommandPower
	CommandCycle
	CommandNightLight
	CommandPanelLock
	CommandWaitTime
	CommandSleep
)

var commandKindNames = map[CommandKind]string{
	CommandNone:       "none",
	CommandPower:      "power",
	CommandCycle:      "cycle",
	CommandNightLight: "night_light",
	CommandPanelLock:  "panel_lock",
	CommandWaitTime:   "wait_time",
	CommandSleep:      "sleep",
}

func (k CommandKind) String() string {
	if name, ok := commandKindNames[k]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// CommandData carries the value for a Command. Only the field matching the
// command's kind is meaningful.
type CommandData struct {
	Power      bool
	Cycle      bool
	NightLight bool
	PanelLock  bool
	WaitTime   int
	Sleep      string
}

// Command is a decoded request to change one setting on one robot.
type Command struct {
	Kind   CommandKind
	Device DeviceKey
	Data   CommandData
}

// Value renders the meaningful field of the command as text.
func (c Command) Value() string {
	switch c.Kind {
	case CommandPower:
		return strconv.FormatBool(c.Data.Power)
	case CommandCycle:
		return strconv.FormatBool(c.Data.Cycle)
	case CommandNightLight:
		return strconv.FormatBool(c.Data.NightLight)
	case CommandPanelLock:
		return strconv.FormatBool(c.Data.PanelLock)
	case CommandWaitTime:
		return strconv.Itoa(c.Data.WaitTime)
	case CommandSleep:
		return c.Data.Sleep
	default:
		return ""
	}
}

// Translate encodes a command in the robot's dispatch-command syntax.
//
//	Power      <P1 / <P0
//	Cycle      <C1 / <C0
//	NightLight <N1 / <N0
//	PanelLock  <L1 / <L0
//	WaitTime   <W followed by decimal minutes
//
// Sleep, None and unknown kinds yield "", which callers must not send.
func Translate(cmd Command) string {
	switch cmd.Kind {
	case CommandPower:
		return "<P" + flag(cmd.Data.Power)
	case CommandCycle:
		return "<C" + flag(cmd.Data.Cycle)
	case CommandNightLight:
		return "<N" + flag(cmd.Data.NightLight)
	case CommandPanelLock:
		return "<L" + flag(cmd.Data.PanelLock)
	case CommandWaitTime:
		return "<W" + strconv.Itoa(cmd.Data.WaitTime)
	default:
		return ""
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
