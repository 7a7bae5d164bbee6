package litterrobot

// UnitStatus describes one unitStatus code reported by the robot.
type UnitStatus struct {
	Code    string
	Text    string
	Cycling bool
	Fault   bool
}

// Status codes with special meaning for power.
const (
	StatusOff     = "OFF"
	StatusOffline = "OFFLINE"
)

var unitStatuses = map[string]UnitStatus{
	"RDY":         {Text: "Ready"},
	"CCP":         {Text: "Clean Cycle In Progress", Cycling: true},
	"CCC":         {Text: "Clean Cycle Complete"},
	"EC":          {Text: "Empty Cycle", Cycling: true},
	"CST":         {Text: "Cat Sensor Timing"},
	"CSI":         {Text: "Cat Sensor Interrupted"},
	"CSF":         {Text: "Cat Sensor Fault", Fault: true},
	"SCF":         {Text: "Cat Sensor Fault At Startup", Fault: true},
	"DF1":         {Text: "Drawer Almost Full - 2 Cycles Left"},
	"DF2":         {Text: "Drawer Almost Full - 1 Cycle Left"},
	"DFS":         {Text: "Drawer Full", Fault: true},
	"SDF":         {Text: "Drawer Full At Startup", Fault: true},
	"BR":          {Text: "Bonnet Removed", Fault: true},
	"P":           {Text: "Clean Cycle Paused"},
	"DHF":         {Text: "Dump + Home Position Fault", Fault: true},
	"DPF":         {Text: "Dump Position Fault", Fault: true},
	"HPF":         {Text: "Home Position Fault", Fault: true},
	"OTF":         {Text: "Over Torque Fault", Fault: true},
	"PD":          {Text: "Pinch Detect", Fault: true},
	StatusOff:     {Text: "Off"},
	StatusOffline: {Text: "Offline"},
}

// LookupUnitStatus returns the description of code. Unknown codes map to
// "Unknown" with no flags set.
func LookupUnitStatus(code string) UnitStatus {
	s, ok := unitStatuses[code]
	if !ok {
		return UnitStatus{Code: code, Text: "Unknown"}
	}
	s.Code = code
	return s
}
