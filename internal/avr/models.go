package avr

// modelProfile captures the per-model tuning the engine needs: which
// source ids are worth scanning (trimmed lists avoid duplicate and
// absent entries on known receivers) and whether one source id
// multiplexes several physical inputs behind input modes.
type modelProfile struct {
	scanIDs       []int
	splitSourceID byte
	hasSplit      bool
}

var modelProfiles = map[string]modelProfile{
	"STR-DE635":  {scanIDs: []int{0, 1, 2, 4, 10, 11, 16, 19}, splitSourceID: 0x19, hasSplit: true},
	"STR-DB840":  {scanIDs: []int{0, 1, 2, 4, 10, 11, 12, 16, 19}},
	"STR-DB2000": {scanIDs: []int{0, 1, 2, 4, 5, 10, 11, 12, 16, 19}},
}

// profileFor returns the model's profile, or a full 0-19 scan for
// models not in the table.
func profileFor(model string) modelProfile {
	if p, ok := modelProfiles[model]; ok {
		return p
	}
	ids := make([]int, 20)
	for i := range ids {
		ids[i] = i
	}
	return modelProfile{scanIDs: ids}
}

// splitsSource reports whether the given source id must be exposed as
// one catalog entry per input mode on this model.
func (p modelProfile) splitsSource(id byte) bool {
	return p.hasSplit && p.splitSourceID == id
}
