package avr

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort scripts the bridge end of the serial link: every command
// written is recorded, and the respond callback decides which hex
// lines the device answers with.
type fakePort struct {
	commands []string
	pending  []byte
	respond  func(cmd string) []string
}

func (p *fakePort) Write(b []byte) (int, error) {
	cmd := strings.TrimSuffix(string(b), "\n")
	p.commands = append(p.commands, cmd)
	if p.respond != nil {
		for _, line := range p.respond(cmd) {
			p.pending = append(p.pending, line...)
			p.pending = append(p.pending, '\n')
		}
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Close() error                         { return nil }
func (p *fakePort) SetReadTimeout(_ time.Duration) error { return nil }

func newTestSlink(respond func(cmd string) []string) (*Slink, *fakePort) {
	port := &fakePort{respond: respond}
	s := NewSlink(SlinkConfig{PortPath: "sim", SettleMs: 1})
	s.conn.factory = func(string, *serial.Mode) (SerialPort, error) {
		return port, nil
	}
	return s, port
}

func padded(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func deviceNameLine(marker byte, model string) string {
	return hex.EncodeToString(append([]byte{marker, 0x6a}, padded(model, 14)...))
}

func sourceNameLine(marker, id byte, name string) string {
	return hex.EncodeToString(append([]byte{marker, 0x48, id}, padded(name, 13)...))
}

func statusLine(marker, id, state byte) string {
	return hex.EncodeToString([]byte{marker, 0x70, id, id, state, 0xff})
}

func inputModeLine(code byte) string {
	return hex.EncodeToString([]byte{0xc8, 0x43, code, 0x00})
}

var de635Names = map[byte]string{
	0x00: "TUNER",
	0x01: "PHONO",
	0x02: "CD",
	0x04: "DVD/LD",
	0x10: "VIDEO 1",
	0x11: "VIDEO 2",
	0x16: "VIDEO 3",
	0x19: "MD/TAPE",
}

// de635Responder scripts an STR-DE635 answering under the legacy
// prefix, reporting the given active source and state byte.
func de635Responder(active, state, modeCode byte) func(string) []string {
	return func(cmd string) []string {
		switch {
		case cmd == "c06a":
			return []string{deviceNameLine(0xc8, "STR-DE635")}
		case cmd == "c00f":
			return []string{statusLine(0xc8, active, state)}
		case cmd == "c043":
			return []string{inputModeLine(modeCode)}
		case strings.HasPrefix(cmd, "c048"):
			id, err := strconv.ParseUint(cmd[4:], 16, 8)
			if err != nil {
				return nil
			}
			name, ok := de635Names[byte(id)]
			if !ok {
				return nil
			}
			return []string{sourceNameLine(0xc8, byte(id), name)}
		}
		return nil
	}
}

func TestRefreshDiscoversDevice(t *testing.T) {
	t.Parallel()

	s, port := newTestSlink(de635Responder(0x16, 0x01, 0x00))
	require.NoError(t, s.Refresh())

	assert.Equal(t, []string{
		"c06a",
		"c04800", "c04801", "c04802", "c04804",
		"c04810", "c04811", "c04816", "c04819",
		"c00f",
	}, port.commands)

	snap := s.Snapshot()
	assert.Equal(t, "STR-DE635", snap.Model)
	assert.Equal(t, "STR-DE635", snap.Name)
	assert.Equal(t, PowerOn, snap.Power)
	assert.False(t, snap.Muted)
	assert.Equal(t, "VIDEO 3", snap.ActiveSource)
	assert.Contains(t, snap.Sources, "TUNER")
	assert.Contains(t, snap.Sources, "MD/TAPE")
	assert.Contains(t, snap.Sources, "MD/TAPE | optical")
	assert.Contains(t, snap.Sources, "MD/TAPE | coaxial")
	assert.Contains(t, snap.Sources, "MD/TAPE | analog")

	// The second poll skips discovery entirely.
	port.commands = nil
	require.NoError(t, s.Refresh())
	assert.Equal(t, []string{"c00f"}, port.commands)
}

func TestRefreshFallsBackToNewAmpPrefix(t *testing.T) {
	t.Parallel()

	respond := func(cmd string) []string {
		switch {
		case cmd == "706a":
			return []string{deviceNameLine(0x78, "STR-DB840")}
		case cmd == "700f":
			return []string{statusLine(0x78, 0x02, 0x01)}
		case strings.HasPrefix(cmd, "7048"):
			id, _ := strconv.ParseUint(cmd[4:], 16, 8)
			if name, ok := de635Names[byte(id)]; ok {
				return []string{sourceNameLine(0x78, byte(id), name)}
			}
		}
		return nil
	}
	s, port := newTestSlink(respond)
	require.NoError(t, s.Refresh())

	// Silent legacy probe, then everything under the new-amp prefix,
	// including the DB840's extra source id 0x12.
	require.GreaterOrEqual(t, len(port.commands), 2)
	assert.Equal(t, "c06a", port.commands[0])
	assert.Equal(t, "706a", port.commands[1])
	for _, cmd := range port.commands[1:] {
		assert.True(t, strings.HasPrefix(cmd, "70"), "command %q", cmd)
	}
	assert.Contains(t, port.commands, "704812")

	snap := s.Snapshot()
	assert.Equal(t, "STR-DB840", snap.Model)
	assert.Equal(t, "CD", snap.ActiveSource)
}

func TestRefreshNoDeviceFound(t *testing.T) {
	t.Parallel()

	s, port := newTestSlink(nil)
	err := s.Refresh()
	require.ErrorIs(t, err, ErrNoDeviceFound)

	// Both name probes went out, but no scan and no status query.
	assert.Equal(t, []string{"c06a", "706a"}, port.commands)

	// The prefix fallback only happens once per engine lifetime.
	err = s.Refresh()
	require.ErrorIs(t, err, ErrNoDeviceFound)
	assert.Equal(t, []string{"c06a", "706a", "706a"}, port.commands)
}

func TestRefreshResolvesModeSplitSource(t *testing.T) {
	t.Parallel()

	s, port := newTestSlink(de635Responder(0x19, 0x01, 0x04))
	require.NoError(t, s.Refresh())

	assert.Contains(t, port.commands, "c043")
	assert.Equal(t, "MD/TAPE | analog", s.Snapshot().ActiveSource)
}

func TestRefreshToleratesUnknownInputMode(t *testing.T) {
	t.Parallel()

	s, _ := newTestSlink(de635Responder(0x19, 0x01, 0x03))
	require.NoError(t, s.Refresh())

	// Mode code 0x3 is unmapped, so the split source stays ambiguous.
	snap := s.Snapshot()
	assert.Equal(t, "", snap.ActiveSource)
	assert.Equal(t, PowerOn, snap.Power)
}

func TestSelectSourceUnknownNameIsNoOp(t *testing.T) {
	t.Parallel()

	s, port := newTestSlink(de635Responder(0x16, 0x01, 0x00))
	require.NoError(t, s.Refresh())

	port.commands = nil
	require.NoError(t, s.SelectSource("BLURAY"))
	assert.Empty(t, port.commands)
}

func TestSelectSourceSetsInputMode(t *testing.T) {
	t.Parallel()

	s, port := newTestSlink(de635Responder(0x16, 0x01, 0x00))
	require.NoError(t, s.Refresh())

	port.commands = nil
	require.NoError(t, s.SelectSource("MD/TAPE | optical"))
	assert.Equal(t, []string{"c05019", "c08301"}, port.commands)

	port.commands = nil
	require.NoError(t, s.SelectSource("CD"))
	assert.Equal(t, []string{"c05002"}, port.commands)
}

func TestVolumeStepsByGeneration(t *testing.T) {
	t.Parallel()

	// Legacy devices take a burst of 20 steps.
	s, port := newTestSlink(de635Responder(0x16, 0x01, 0x00))
	require.NoError(t, s.Refresh())
	port.commands = nil
	require.NoError(t, s.VolumeUp())
	require.Len(t, port.commands, 20)
	for _, cmd := range port.commands {
		assert.Equal(t, "c014", cmd)
	}

	// New-amp devices take 2 paced steps.
	respond := func(cmd string) []string {
		if cmd == "706a" {
			return []string{deviceNameLine(0x78, "STR-DB940")}
		}
		return nil
	}
	s, port = newTestSlink(respond)
	_ = s.Refresh() // discovery flips the prefix; no sources is fine here
	port.commands = nil
	require.NoError(t, s.VolumeDown())
	assert.Equal(t, []string{"7015", "7015"}, port.commands)
}

func TestPowerAndMuteCommands(t *testing.T) {
	t.Parallel()

	respond := func(cmd string) []string {
		switch cmd {
		case "c02e":
			return []string{statusLine(0xc8, 0x00, 0x01)}
		case "c02f":
			return []string{statusLine(0xc8, 0x00, 0x00)}
		case "c006":
			return []string{statusLine(0xc8, 0x00, 0x03)}
		case "c007":
			return []string{statusLine(0xc8, 0x00, 0x01)}
		}
		return nil
	}
	s, port := newTestSlink(respond)

	require.NoError(t, s.PowerOn())
	assert.Equal(t, PowerOn, s.Snapshot().Power)

	require.NoError(t, s.SetMute(true))
	assert.True(t, s.Snapshot().Muted)

	require.NoError(t, s.SetMute(false))
	assert.False(t, s.Snapshot().Muted)

	require.NoError(t, s.PowerOff())
	assert.Equal(t, PowerOff, s.Snapshot().Power)

	assert.Equal(t, []string{"c02e", "c006", "c007", "c02f"}, port.commands)
}

func TestDispatchSkipsGarbageLines(t *testing.T) {
	t.Parallel()

	respond := func(cmd string) []string {
		if cmd == "c06a" {
			return []string{
				"bridge ready",                  // not hex, dropped
				"c8ff00",                        // unrecognized echo, logged
				deviceNameLine(0xc8, "STR-DE635"),
			}
		}
		return de635Responder(0x00, 0x01, 0x00)(cmd)
	}
	s, _ := newTestSlink(respond)
	require.NoError(t, s.Refresh())
	assert.Equal(t, "STR-DE635", s.Snapshot().Model)
}

func TestConnectFailureRetriesNextCommand(t *testing.T) {
	t.Parallel()

	port := &fakePort{respond: de635Responder(0x00, 0x01, 0x00)}
	s := NewSlink(SlinkConfig{PortPath: "sim", SettleMs: 1})
	fail := true
	s.conn.factory = func(string, *serial.Mode) (SerialPort, error) {
		if fail {
			return nil, fmt.Errorf("no such device")
		}
		return port, nil
	}

	err := s.Refresh()
	require.ErrorIs(t, err, ErrConnectFailed)
	assert.Empty(t, port.commands)

	fail = false
	require.NoError(t, s.Refresh())
	assert.Equal(t, "STR-DE635", s.Snapshot().Model)
}
