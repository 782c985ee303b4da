package avr

import "sort"

// InputMode is the physical input selector behind a mode-split source.
// The zero value means the source has no mode variant.
type InputMode string

const (
	InputModeAuto    InputMode = "auto"
	InputModeOptical InputMode = "optical"
	InputModeCoaxial InputMode = "coaxial"
	InputModeAnalog  InputMode = "analog"
)

// inputModeForCode maps the wire code from an input-mode frame.
func inputModeForCode(code byte) (InputMode, bool) {
	switch code {
	case 0x0:
		return InputModeAuto, true
	case 0x1:
		return InputModeOptical, true
	case 0x2:
		return InputModeCoaxial, true
	case 0x4:
		return InputModeAnalog, true
	}
	return "", false
}

// code is the inverse mapping, used by the set-input-mode command.
func (m InputMode) code() (byte, bool) {
	switch m {
	case InputModeAuto:
		return 0x0, true
	case InputModeOptical:
		return 0x1, true
	case InputModeCoaxial:
		return 0x2, true
	case InputModeAnalog:
		return 0x4, true
	}
	return 0, false
}

// Source is one selectable input. Identity is the (ID, InputMode)
// pair; only the name changes when the device re-sends its labels.
type Source struct {
	ID        byte
	InputMode InputMode
	Name      string
}

// sourceCatalog holds the sources discovered in this session. Entries
// are never removed; lookups are linear scans over at most ~20 rows.
type sourceCatalog struct {
	sources []Source
}

func (c *sourceCatalog) empty() bool {
	return len(c.sources) == 0
}

// upsert overwrites the name of an existing (id, mode) entry or
// appends a new one.
func (c *sourceCatalog) upsert(id byte, mode InputMode, name string) {
	for i := range c.sources {
		if c.sources[i].ID == id && c.sources[i].InputMode == mode {
			c.sources[i].Name = name
			return
		}
	}
	c.sources = append(c.sources, Source{ID: id, InputMode: mode, Name: name})
}

func (c *sourceCatalog) byName(name string) (Source, bool) {
	for _, s := range c.sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// resolve finds the source matching the active id. An entry without a
// mode variant is authoritative; mode-split entries must also match
// the active input mode.
func (c *sourceCatalog) resolve(id byte, active InputMode) (Source, bool) {
	for _, s := range c.sources {
		if s.ID == id && (s.InputMode == "" || s.InputMode == active) {
			return s, true
		}
	}
	return Source{}, false
}

// names returns all source names sorted lexicographically, the order
// the host lists them in.
func (c *sourceCatalog) names() []string {
	out := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}
