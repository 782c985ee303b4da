package avr

import "sync"

// Demo simulates an STR-DE635 for development without hardware,
// including the mode-split MD/TAPE source.
type Demo struct {
	mu      sync.Mutex
	power   PowerState
	muted   bool
	volume  int
	active  string
	catalog sourceCatalog
}

func NewDemo() *Demo {
	d := &Demo{power: PowerOff, volume: 20}
	d.catalog.upsert(0x00, "", "TUNER")
	d.catalog.upsert(0x01, "", "PHONO")
	d.catalog.upsert(0x02, "", "CD")
	d.catalog.upsert(0x04, "", "DVD/LD")
	d.catalog.upsert(0x10, "", "VIDEO 1")
	d.catalog.upsert(0x11, "", "VIDEO 2")
	d.catalog.upsert(0x19, InputModeAuto, "MD/TAPE")
	for _, mode := range []InputMode{InputModeAnalog, InputModeCoaxial, InputModeOptical} {
		d.catalog.upsert(0x19, mode, "MD/TAPE | "+string(mode))
	}
	d.active = "TUNER"
	return d
}

func (d *Demo) Name() string { return "STR-DE635 (simulated)" }

func (d *Demo) Refresh() error { return nil }

func (d *Demo) PowerOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power = PowerOn
	return nil
}

func (d *Demo) PowerOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power = PowerOff
	return nil
}

func (d *Demo) SetMute(mute bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = mute
	return nil
}

func (d *Demo) VolumeUp() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.volume < 100 {
		d.volume += 2
	}
	return nil
}

func (d *Demo) VolumeDown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.volume > 0 {
		d.volume -= 2
	}
	return nil
}

func (d *Demo) SelectSource(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.catalog.byName(name); ok {
		d.active = name
	}
	return nil
}

func (d *Demo) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Name:         d.Name(),
		Model:        "STR-DE635",
		Power:        d.power,
		Muted:        d.muted,
		Sources:      d.catalog.names(),
		ActiveSource: d.active,
		NowPlaying:   d.active,
	}
}

func (d *Demo) Close() error { return nil }
