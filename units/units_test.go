package units

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndConvertLength(t *testing.T) {
	mm, err := Parse("mm")
	require.NoError(t, err)
	m, err := Parse("m")
	require.NoError(t, err)

	require.True(t, Compatible(mm, m))

	v, err := Convert(2500, mm, m)
	require.NoError(t, err)
	require.InDelta(t, 2.5, v, 1e-9)
}

func TestParseAndConvertHeight(t *testing.T) {
	cm, err := Parse("cm")
	require.NoError(t, err)
	m, err := Parse("m")
	require.NoError(t, err)

	v, err := Convert(20, cm, m)
	require.NoError(t, err)
	require.InDelta(t, 0.2, v, 1e-9)
}

func TestParseAndConvertDensity(t *testing.T) {
	gcm3, err := Parse("g/cm3")
	require.NoError(t, err)
	kgm3, err := Parse("kg/m3")
	require.NoError(t, err)

	require.True(t, Compatible(gcm3, kgm3))

	v, err := Convert(3.5, gcm3, kgm3)
	require.NoError(t, err)
	require.InDelta(t, 3500, v, 1e-6)
}

func TestIncompatibleUnits(t *testing.T) {
	m, err := Parse("m")
	require.NoError(t, err)
	kg, err := Parse("kg")
	require.NoError(t, err)

	require.False(t, Compatible(m, kg))

	_, err = Convert(1, m, kg)
	require.Error(t, err)
}

func TestDimensionlessUnit(t *testing.T) {
	u, err := Parse("")
	require.NoError(t, err)
	v, err := Parse("")
	require.NoError(t, err)
	require.True(t, Compatible(u, v))
}

func TestUnrecognizedUnit(t *testing.T) {
	_, err := Parse("bogus")
	require.Error(t, err)
}

func TestCompoundMoment(t *testing.T) {
	knm, err := Parse("kN*m")
	require.NoError(t, err)
	nm, err := Parse("N*m")
	require.NoError(t, err)

	v, err := Convert(1, knm, nm)
	require.NoError(t, err)
	require.InDelta(t, 1000, v, 1e-6)
}
