package avr

import (
	"errors"
	"log"
	"sync"
	"time"
)

const (
	defaultBaudRate   = 115200
	defaultSettle     = 4 * time.Second
	defaultName       = "Sony receiver"
	volumeStepsLegacy = 20
	volumeStepsNewAmp = 2
	volumeRepeatDelay = 100 * time.Millisecond
)

// Slink drives a Sony receiver over the S-Link / Control-A1 bus,
// bridged by a microcontroller that exposes the bus as ASCII-hex
// lines on a serial port.
//
// The protocol is strictly poll/command-response: every state change
// happens synchronously while a caller holds the engine lock, by
// writing a command and dispatching whatever response lines arrive
// before the port goes quiet. Requests pair with responses by issue
// order — there is no multiplexing — so the lock also guarantees a
// single outstanding request on the link.
type Slink struct {
	name string

	mu            sync.Mutex
	conn          *connection
	state         deviceState
	catalog       sourceCatalog
	prefixFlipped bool
}

// deviceState is the mutable snapshot refreshed by status queries.
// Values hold their last known reading between polls.
type deviceState struct {
	modelName       string
	power           PowerState
	muted           bool
	activeSourceID  int // -1 until the first status frame
	activeInputMode InputMode
	prefix          Prefix
}

// SlinkConfig holds connection configuration for the Slink engine.
type SlinkConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
	Name     string `yaml:"name" json:"name"`
	// SettleMs overrides the post-open bridge reset delay.
	SettleMs int `yaml:"settle_ms" json:"settleMs"`
}

// NewSlink creates a new S-Link engine. The serial link is not opened
// until the first command needs it.
func NewSlink(cfg SlinkConfig) *Slink {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}
	settle := defaultSettle
	if cfg.SettleMs > 0 {
		settle = time.Duration(cfg.SettleMs) * time.Millisecond
	}
	return &Slink{
		name: cfg.Name,
		conn: &connection{
			path:        cfg.PortPath,
			baudRate:    cfg.BaudRate,
			settleDelay: settle,
			factory:     defaultSerialPortFactory,
		},
		state: deviceState{
			power:          PowerUnknown,
			activeSourceID: -1,
			prefix:         PrefixLegacy,
		},
	}
}

// Name returns the configured display name, falling back to the
// discovered model name.
func (s *Slink) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName()
}

// Refresh polls the receiver. The first call (and any call while the
// catalog is still empty) runs discovery: probe the device name,
// falling back from the legacy prefix to the new-amp prefix at most
// once per engine lifetime, then scan the model's source ids. Every
// call queries status, plus the input mode when the active source is
// mode-split on this model.
func (s *Slink) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog.empty() {
		if err := s.discover(); err != nil {
			return err
		}
	}

	if err := s.sendCommand(opStatus, "", true); err != nil {
		return err
	}
	if s.state.activeSourceID >= 0 &&
		profileFor(s.state.modelName).splitsSource(byte(s.state.activeSourceID)) {
		if err := s.sendCommand(opQueryInputMode, "", true); err != nil {
			var modeErr *UnknownInputModeError
			if !errors.As(err, &modeErr) {
				return err
			}
			// Bad mode code: the active source stays ambiguous until
			// the next poll, nothing else is affected.
			log.Printf("[slink] %v", modeErr)
		}
	}

	if s.catalog.empty() {
		return ErrNoDeviceFound
	}
	return nil
}

func (s *Slink) discover() error {
	if err := s.sendCommand(opDeviceName, "", true); err != nil {
		return err
	}
	if s.state.modelName == "" && !s.prefixFlipped {
		s.state.prefix = PrefixNewAmp
		s.prefixFlipped = true
		log.Printf("[slink] no answer under legacy prefix, retrying as new amp")
		if err := s.sendCommand(opDeviceName, "", true); err != nil {
			return err
		}
	}
	if s.state.modelName == "" {
		log.Printf("[slink] no device is responding to name queries")
		return ErrNoDeviceFound
	}

	log.Printf("[slink] discovered %s", s.state.modelName)
	for _, id := range profileFor(s.state.modelName).scanIDs {
		if err := s.sendCommand(opSourceName, decArg(id), true); err != nil {
			return err
		}
	}
	return nil
}

func (s *Slink) PowerOn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCommand(opPowerOn, "", true)
}

func (s *Slink) PowerOff() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCommand(opPowerOff, "", true)
}

func (s *Slink) SetMute(mute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	opcode := opUnmute
	if mute {
		opcode = opMute
	}
	return s.sendCommand(opcode, "", true)
}

// VolumeUp emulates holding the remote's volume button by repeating
// the step command. No response is expected per step.
func (s *Slink) VolumeUp() error {
	return s.volumeSteps(opVolumeUp)
}

func (s *Slink) VolumeDown() error {
	return s.volumeSteps(opVolumeDown)
}

// volumeSteps repeats the step opcode with the repeat count of the
// device generation: the legacy family takes a long burst back to
// back, the new-amp family a short burst with an inter-step delay.
func (s *Slink) volumeSteps(opcode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, delay := volumeStepsLegacy, time.Duration(0)
	if s.state.prefix == PrefixNewAmp {
		steps, delay = volumeStepsNewAmp, volumeRepeatDelay
	}
	for i := 0; i < steps; i++ {
		if err := s.sendCommand(opcode, "", false); err != nil {
			return err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}

// SelectSource switches to the named source, also setting the input
// mode for mode-split entries. An unknown name is a silent no-op.
func (s *Slink) SelectSource(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.catalog.byName(name)
	if !ok {
		return nil
	}
	if err := s.sendCommand(opSelectSource, hexArg(src.ID), true); err != nil {
		return err
	}
	if src.InputMode == "" {
		return nil
	}
	code, ok := src.InputMode.code()
	if !ok {
		return nil
	}
	return s.sendCommand(opSetInputMode, hexArg(code), true)
}

// Snapshot returns the last known device state.
func (s *Slink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Name:    s.displayName(),
		Model:   s.state.modelName,
		Power:   s.state.power,
		Muted:   s.state.muted,
		Sources: s.catalog.names(),
	}
	if src, ok := s.activeSource(); ok {
		snap.ActiveSource = src.Name
		snap.NowPlaying = src.Name
	}
	return snap
}

func (s *Slink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.close()
}

func (s *Slink) displayName() string {
	if s.name != "" && s.name != defaultName {
		return s.name
	}
	if s.state.modelName != "" {
		return s.state.modelName
	}
	return defaultName
}

// activeSource resolves the active source id against the catalog,
// disambiguating by input mode where the model splits the source.
// Callers hold the engine lock.
func (s *Slink) activeSource() (Source, bool) {
	if s.state.activeSourceID < 0 {
		return Source{}, false
	}
	return s.catalog.resolve(byte(s.state.activeSourceID), s.state.activeInputMode)
}

// sendCommand writes one command line and, when a response is
// expected, synchronously drains and dispatches whatever the device
// sent back before returning. Callers hold the engine lock.
func (s *Slink) sendCommand(opcode, arg string, expectResponse bool) error {
	if err := s.conn.ensureOpen(); err != nil {
		return err
	}
	line := encodeCommand(s.state.prefix, opcode, arg)
	if err := s.conn.write(line); err != nil {
		return err
	}
	if !expectResponse {
		return nil
	}
	return s.dispatchResponses()
}

// dispatchResponses drains the port and applies every complete frame.
// Frame-level problems never abort the batch: garbage lines and
// unrecognized shapes are dropped, and only the first input-mode
// error is kept so the triggering query can surface it.
func (s *Slink) dispatchResponses() error {
	s.conn.buf.feed(s.conn.readAvailable())

	var firstErr error
	for {
		line, ok := s.conn.buf.nextFrame()
		if !ok {
			return firstErr
		}
		frame, err := decodeHexLine(line)
		if err != nil {
			continue
		}
		if err := s.applyFrame(frame); err != nil {
			if errors.Is(err, ErrUnrecognizedResponse) {
				log.Printf("[slink] unhandled response %q", line)
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
}

func (s *Slink) applyFrame(frame []byte) error {
	v, err := parseFrame(frame)
	if err != nil {
		return err
	}
	switch f := v.(type) {
	case statusFrame:
		if f.PowerOn {
			s.state.power = PowerOn
		} else {
			s.state.power = PowerOff
		}
		s.state.muted = f.Muted
		s.state.activeSourceID = int(f.SourceID)
	case deviceNameFrame:
		s.state.modelName = f.Name
	case sourceNameFrame:
		s.addSource(f.SourceID, f.Name)
	case inputModeFrame:
		s.state.activeInputMode = f.Mode
	case nil:
		// Known opcode, wrong length: dropped, no partial update.
	}
	return nil
}

// addSource upserts the named source. On models that split the source
// by input mode, one label becomes four selectable entries, with the
// auto variant keeping the bare name.
func (s *Slink) addSource(id byte, name string) {
	if !profileFor(s.state.modelName).splitsSource(id) {
		s.catalog.upsert(id, "", name)
		return
	}
	s.catalog.upsert(id, InputModeAuto, name)
	for _, mode := range []InputMode{InputModeAnalog, InputModeCoaxial, InputModeOptical} {
		s.catalog.upsert(id, mode, name+" | "+string(mode))
	}
}
