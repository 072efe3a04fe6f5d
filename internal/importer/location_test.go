package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestLocator(t *testing.T) *Locator {
	t.Helper()
	l, err := LoadLocator(filepath.Join("testdata", "suburbs.csv"))
	require.NoError(t, err)
	return l
}

func TestLocator_Split(t *testing.T) {
	l := loadTestLocator(t)

	tests := []struct {
		desc     string
		wantDesc string
		wantLoc  string
	}{
		{"TASTE LEGEND AUS ULTIMO NSW AU", "TASTE LEGEND AUS", "ULTIMO NSW AU"},
		{"LLOYDS IGA CRONULLANSW NS AUS", "LLOYDS IGA", "CRONULLANSW NS AUS"},
		{"BENTLEYS FUEL SERVIC EDENHOPE AU", "BENTLEYS FUEL SERVIC", "EDENHOPE AU"},
		{"7FRESH CAMPBELLTOWN7FRESHEPPING AU", "7FRESH CAMPBELLTOWN7FRESH", "EPPING AU"},
		{"Q KHAN & M.T RANA WISEMANS FERR NS AUS", "Q KHAN & M.T RANA", "WISEMANS FERR NS AUS"},
		{"AMAZON AU SYDNEY SOUTH NS AUS", "AMAZON AU SYDNEY SOUTH NS AUS", ""},
		{"CONDITOREI PATISSERIE WENTWORTH F NSW AU", "CONDITOREI PATISSERIE", "WENTWORTH F NSW AU"},
		{"SMP*The Hub Of Mangro Mangrove Moun AU AUS", "SMP*The Hub Of Mangro", "Mangrove Moun AU AUS"},
		{"TERREY HILLS SUPERMARKET TERREY H NSW AU", "TERREY HILLS SUPERMARKET", "TERREY H NSW AU"},
		{"USYD SALARY PAYMENT", "USYD SALARY PAYMENT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			desc, loc := l.Split(tt.desc)
			assert.Equal(t, tt.wantDesc, desc)
			assert.Equal(t, tt.wantLoc, loc)
		})
	}
}

func TestLocator_NilAndEmpty(t *testing.T) {
	var l *Locator
	desc, loc := l.Split("ANYTHING ULTIMO NSW AU")
	assert.Equal(t, "ANYTHING ULTIMO NSW AU", desc)
	assert.Empty(t, loc)

	desc, loc = NewLocator(nil).Split("ANYTHING ULTIMO NSW AU")
	assert.Equal(t, "ANYTHING ULTIMO NSW AU", desc)
	assert.Empty(t, loc)
}

func TestNewLocator_TruncationStopsAtShortOrSpacedPrefixes(t *testing.T) {
	l := NewLocator([]string{"Terrey Hills", "Kent", "North Bondi"})

	assert.True(t, l.truncated["terrey h"])
	assert.False(t, l.truncated["terrey "], "a prefix ending in a space is not a truncation")
	assert.False(t, l.truncated["ken"], "prefixes of three letters or fewer are ignored")
	assert.True(t, l.truncated["north bo"])
	assert.False(t, l.truncated["north "])
}

func TestLoadLocator_Errors(t *testing.T) {
	_, err := LoadLocator(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	l, err := LoadLocator(empty)
	require.NoError(t, err)
	desc, loc := l.Split("TASTE LEGEND ULTIMO NSW AU")
	assert.Equal(t, "TASTE LEGEND ULTIMO NSW AU", desc)
	assert.Empty(t, loc)
}
