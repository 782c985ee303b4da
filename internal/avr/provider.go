package avr

// Controller is the host-facing surface of a receiver backend. Slink
// drives real hardware; Demo simulates one for development.
//
// All methods are safe for concurrent use: implementations serialize
// every command, refresh and state read behind one per-device lock,
// since the protocol allows only a single outstanding request.
type Controller interface {
	// Name returns the display name of the device.
	Name() string
	// Refresh polls the receiver for its current state, running
	// device discovery first if no sources are known yet.
	Refresh() error
	PowerOn() error
	PowerOff() error
	SetMute(mute bool) error
	VolumeUp() error
	VolumeDown() error
	// SelectSource switches to the named source. Unknown names are a
	// no-op: host source lists may be stale.
	SelectSource(name string) error
	// Snapshot returns the last known device state.
	Snapshot() Snapshot
	// Close releases the serial link.
	Close() error
}

// PowerState is the receiver's last known power state.
type PowerState string

const (
	PowerUnknown PowerState = "unknown"
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
)

// Snapshot is the read-only state view sent to dashboard clients.
type Snapshot struct {
	Name         string     `json:"name"`
	Model        string     `json:"model"`
	Power        PowerState `json:"power"`
	Muted        bool       `json:"muted"`
	Sources      []string   `json:"sources"`
	ActiveSource string     `json:"activeSource"`
	NowPlaying   string     `json:"nowPlaying"`
}
