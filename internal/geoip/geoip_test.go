package geoip

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `1.0.0.0,1.0.0.255,OC,AU,,Sydney,-33.8688,151.2093
1.2.3.0,1.2.3.255,EU,FR,,Paris,46.2,2.2
9.9.9.0,9.9.9.9,ZZ,ZZ,,,0,0
`

func TestLoadCSV_SkipsZZ(t *testing.T) {
	table, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Len(t, table.entries, 2)
}

func TestLookup_FindsContainingRange(t *testing.T) {
	table, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	country, ok := table.Lookup(netip.MustParseAddr("1.2.3.4"))
	require.True(t, ok)
	assert.Equal(t, "FR", country.Code)
	assert.InDelta(t, 46.2, country.Lat, 1e-9)
}

func TestLookup_MissNotInAnyRange(t *testing.T) {
	table, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	_, ok := table.Lookup(netip.MustParseAddr("8.8.8.8"))
	assert.False(t, ok)
}

func TestLookup_BoundaryInclusive(t *testing.T) {
	table, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	_, ok := table.Lookup(netip.MustParseAddr("1.0.0.0"))
	assert.True(t, ok)
	_, ok = table.Lookup(netip.MustParseAddr("1.0.0.255"))
	assert.True(t, ok)
}
