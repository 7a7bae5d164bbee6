package litterrobot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	dev := DeviceKey{ExternalID: "a0f1", Slug: "upstairs"}

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"power on", Command{Kind: CommandPower, Device: dev, Data: CommandData{Power: true}}, "<P1"},
		{"power off", Command{Kind: CommandPower, Device: dev}, "<P0"},
		{"cycle on", Command{Kind: CommandCycle, Data: CommandData{Cycle: true}}, "<C1"},
		{"cycle off", Command{Kind: CommandCycle}, "<C0"},
		{"night light on", Command{Kind: CommandNightLight, Data: CommandData{NightLight: true}}, "<N1"},
		{"night light off", Command{Kind: CommandNightLight}, "<N0"},
		{"panel lock on", Command{Kind: CommandPanelLock, Data: CommandData{PanelLock: true}}, "<L1"},
		{"panel lock off", Command{Kind: CommandPanelLock}, "<L0"},
		{"wait time", Command{Kind: CommandWaitTime, Data: CommandData{WaitTime: 15}}, "<W15"},
		{"wait time ignores booleans", Command{Kind: CommandWaitTime, Data: CommandData{WaitTime: 7, Power: true}}, "<W7"},
		{"sleep is not forwarded", Command{Kind: CommandSleep, Data: CommandData{Sleep: "22:00"}}, ""},
		{"none", Command{Kind: CommandNone}, ""},
		{"unknown kind", Command{Kind: CommandKind(42), Data: CommandData{Power: true}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.cmd))
		})
	}
}

func TestCommandValue(t *testing.T) {
	assert.Equal(t, "true", Command{Kind: CommandNightLight, Data: CommandData{NightLight: true}}.Value())
	assert.Equal(t, "15", Command{Kind: CommandWaitTime, Data: CommandData{WaitTime: 15}}.Value())
	assert.Equal(t, "22:00", Command{Kind: CommandSleep, Data: CommandData{Sleep: "22:00"}}.Value())
	assert.Equal(t, "", Command{Kind: CommandNone}.Value())
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "panel_lock", CommandPanelLock.String())
	assert.Equal(t, "none", CommandNone.String())
	assert.Equal(t, "unknown(9)", CommandKind(9).String())
}
