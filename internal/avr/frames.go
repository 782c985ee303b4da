package avr

import "strings"

// Response class markers: byte[0] of every recognized frame is the
// old-amp or new-amp echo marker, byte[1] echoes the opcode.
const (
	markerOldAmp = 0xc8
	markerNewAmp = 0x78
)

// Echoed opcodes. The status report echoes 0x70, not the 0x0f query
// opcode; the others echo the opcode that was sent.
const (
	echoStatus     = 0x70
	echoDeviceName = 0x6a
	echoSourceName = 0x48
	echoInputMode  = 0x43
)

// Recognized response shapes. parseFrame returns exactly one of these
// so the dispatcher is a total switch with an explicit unknown path.
type statusFrame struct {
	SourceID byte
	PowerOn  bool
	Muted    bool
}

type deviceNameFrame struct {
	Name string
}

type sourceNameFrame struct {
	SourceID byte
	Name     string
}

type inputModeFrame struct {
	Mode InputMode
}

// parseFrame classifies a decoded frame by (marker, echoed opcode).
//
// A known opcode with the wrong payload length returns (nil, nil):
// the frame is dropped without a partial state update and without
// note. A frame matching no shape returns ErrUnrecognizedResponse. An
// input-mode frame with an unmapped code returns UnknownInputModeError.
func parseFrame(frame []byte) (any, error) {
	if len(frame) < 2 || (frame[0] != markerOldAmp && frame[0] != markerNewAmp) {
		return nil, ErrUnrecognizedResponse
	}
	switch frame[1] {
	case echoStatus:
		// e.g. c8 70 16 16 31 ff
		if len(frame) != 6 {
			return nil, nil
		}
		return statusFrame{
			SourceID: frame[2],
			PowerOn:  frame[4]&0x01 != 0,
			Muted:    frame[4]&0x02 != 0,
		}, nil
	case echoDeviceName:
		// e.g. c8 6a 53 54 52 2d 44 45 36 33 35 20 00 00 00 00
		if len(frame) != 16 {
			return nil, nil
		}
		return deviceNameFrame{Name: decodeText(frame[2:])}, nil
	case echoSourceName:
		// e.g. c8 48 00 20 54 55 4e 45 52 20 20 00 00 00 00 00
		if len(frame) != 16 {
			return nil, nil
		}
		return sourceNameFrame{SourceID: frame[2], Name: decodeText(frame[3:])}, nil
	case echoInputMode:
		// e.g. c8 43 00 03
		if len(frame) != 4 {
			return nil, nil
		}
		mode, ok := inputModeForCode(frame[2])
		if !ok {
			return nil, &UnknownInputModeError{Code: frame[2]}
		}
		return inputModeFrame{Mode: mode}, nil
	}
	return nil, ErrUnrecognizedResponse
}

// decodeText converts an ISO-8859-1 payload into a string, stripping
// the trailing NUL padding and surrounding whitespace.
func decodeText(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return strings.TrimSpace(strings.TrimRight(string(runes), "\x00"))
}
