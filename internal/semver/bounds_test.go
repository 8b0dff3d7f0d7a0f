package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

func TestParseSpec_Star(t *testing.T) {
	bounds, err := ParseSpec("*")
	require.NoError(t, err)
	assert.True(t, bounds.NoUpperBound)

	tests := []struct {
		spec  string
		lower string
		upper string
	}{
		{"1.*", "1.0.0", "1.1.0"},
		{"2.*", "2.0.0", "2.1.0"},
		{"1.2.*", "1.2.0", "1.2.1"},
	}
	for _, tt := range tests {
		bounds, err := ParseSpec(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.False(t, bounds.NoUpperBound, tt.spec)
		assert.Equal(t, tt.lower, Format(bounds.Lower), tt.spec)
		assert.Equal(t, tt.upper, Format(bounds.Upper), tt.spec)
	}
}

func TestParseSpec_Caret(t *testing.T) {
	// the caret upper bound is the next minor, not the next major
	bounds, err := ParseSpec("^1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", Format(bounds.Lower))
	assert.Equal(t, "1.3.0", Format(bounds.Upper))

	bounds, err = ParseSpec("^0.4")
	require.NoError(t, err)
	assert.Equal(t, "0.4.0", Format(bounds.Lower))
	assert.Equal(t, "0.5.0", Format(bounds.Upper))

	// caret requires at least two parts
	_, err = ParseSpec("^1")
	assert.ErrorIs(t, err, common.ErrInvalidVersion)
}

func TestParseSpec_Tilde(t *testing.T) {
	tests := []struct {
		spec  string
		lower string
		upper string
	}{
		{"~1", "1.0.0", "2.0.0"},
		{"~1.2", "1.2.0", "1.3.0"},
		{"~1.2.3", "1.2.3", "1.3.0"},
	}
	for _, tt := range tests {
		bounds, err := ParseSpec(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.lower, Format(bounds.Lower), tt.spec)
		assert.Equal(t, tt.upper, Format(bounds.Upper), tt.spec)
	}
}

func TestParseSpec_Exact(t *testing.T) {
	tests := []struct {
		spec  string
		lower string
		upper string
	}{
		{"1", "1.0.0", "2.0.0"},
		{"1.2", "1.2.0", "1.3.0"},
		{"1.2.3", "1.2.3", "1.2.4"},
	}
	for _, tt := range tests {
		bounds, err := ParseSpec(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.lower, Format(bounds.Lower), tt.spec)
		assert.Equal(t, tt.upper, Format(bounds.Upper), tt.spec)
	}
}

func TestParseSpec_Errors(t *testing.T) {
	_, err := ParseSpec("")
	assert.ErrorIs(t, err, common.ErrEmptyVersion)

	_, err = ParseSpec("1.2.3.4")
	assert.ErrorIs(t, err, common.ErrInvalidVersion)

	_, err = ParseSpec("~1.2.3.4")
	assert.ErrorIs(t, err, common.ErrInvalidVersion)

	_, err = ParseSpec("^x.y")
	assert.ErrorIs(t, err, common.ErrInvalidVersion)
}
