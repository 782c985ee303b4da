package avr

import "fmt"

// Prefix selects the command family. Older receivers answer the c0
// family, newer amps the 70 family.
type Prefix string

const (
	PrefixLegacy Prefix = "c0"
	PrefixNewAmp Prefix = "70"
)

// Command opcodes (2 hex chars on the wire).
const (
	opStatus         = "0f"
	opDeviceName     = "6a"
	opSourceName     = "48"
	opMute           = "06"
	opUnmute         = "07"
	opVolumeUp       = "14"
	opVolumeDown     = "15"
	opPowerOn        = "2e"
	opPowerOff       = "2f"
	opSelectSource   = "50"
	opQueryInputMode = "43"
	opSetInputMode   = "83"
)

// encodeCommand builds one command line: prefix + opcode + optional
// argument, terminated with a newline.
func encodeCommand(prefix Prefix, opcode, arg string) string {
	return string(prefix) + opcode + arg + "\n"
}

// decArg formats a source-scan id as the 2 decimal digits the scan
// protocol uses (yes, decimal — ids 0-19 go out as "00".."19").
func decArg(id int) string {
	return fmt.Sprintf("%02d", id)
}

// hexArg formats an id or mode selector as 2 hex digits.
func hexArg(v byte) string {
	return fmt.Sprintf("%02x", v)
}

// decodeHexLine converts a response line of ASCII hex characters into
// bytes, pairing characters left to right. Any non-hex character fails
// the whole line with ErrNotHex. An odd-length line drops the trailing
// lone character: pairing stops early, matching observed device
// behavior, and must not be "fixed" without confirming on hardware.
func decodeHexLine(line []byte) ([]byte, error) {
	for _, c := range line {
		if hexNibble(c) < 0 {
			return nil, ErrNotHex
		}
	}
	out := make([]byte, 0, len(line)/2)
	for i := 0; i+1 < len(line); i += 2 {
		out = append(out, byte(hexNibble(line[i])<<4|hexNibble(line[i+1])))
	}
	return out, nil
}

func hexNibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
