package avr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogUpsertOverwritesName(t *testing.T) {
	t.Parallel()

	var c sourceCatalog
	c.upsert(5, "", "TUNER")
	c.upsert(5, "", "FM TUNER")

	require.Len(t, c.sources, 1)
	assert.Equal(t, "FM TUNER", c.sources[0].Name)
}

func TestCatalogIdentityIsIDAndMode(t *testing.T) {
	t.Parallel()

	var c sourceCatalog
	c.upsert(5, "", "MD/TAPE")
	c.upsert(5, InputModeOptical, "MD/TAPE | optical")

	assert.Len(t, c.sources, 2)
}

func TestCatalogNamesSorted(t *testing.T) {
	t.Parallel()

	var c sourceCatalog
	c.upsert(2, "", "VIDEO")
	c.upsert(0, "", "TUNER")
	c.upsert(1, "", "CD")

	assert.Equal(t, []string{"CD", "TUNER", "VIDEO"}, c.names())
}

func TestCatalogResolve(t *testing.T) {
	t.Parallel()

	var c sourceCatalog
	c.upsert(0, "", "TUNER")
	c.upsert(0x19, InputModeAuto, "MD/TAPE")
	c.upsert(0x19, InputModeAnalog, "MD/TAPE | analog")

	// A modeless entry matches regardless of the active mode.
	src, ok := c.resolve(0, InputModeOptical)
	require.True(t, ok)
	assert.Equal(t, "TUNER", src.Name)

	// Mode-split entries need the active mode to match.
	src, ok = c.resolve(0x19, InputModeAnalog)
	require.True(t, ok)
	assert.Equal(t, "MD/TAPE | analog", src.Name)

	_, ok = c.resolve(0x19, InputModeCoaxial)
	assert.False(t, ok)

	_, ok = c.resolve(7, "")
	assert.False(t, ok)
}

func TestInputModeCodes(t *testing.T) {
	t.Parallel()

	for code, want := range map[byte]InputMode{
		0x0: InputModeAuto,
		0x1: InputModeOptical,
		0x2: InputModeCoaxial,
		0x4: InputModeAnalog,
	} {
		mode, ok := inputModeForCode(code)
		require.True(t, ok)
		assert.Equal(t, want, mode)

		back, ok := mode.code()
		require.True(t, ok)
		assert.Equal(t, code, back)
	}

	_, ok := inputModeForCode(0x3)
	assert.False(t, ok)
}
