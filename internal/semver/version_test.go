package semver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

func TestParse_PadsPartialVersions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.2.3", "1.2.3"},
		{"1.2", "1.2.0"},
		{"1", "1.0.0"},
	}

	for _, tt := range tests {
		v, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, Format(v))
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, common.ErrEmptyVersion)

	_, err = Parse("not-a-version")
	assert.ErrorIs(t, err, common.ErrInvalidVersion)

	var verr *common.VersionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "not-a-version", verr.Input)
}

func TestBump_Deterministic(t *testing.T) {
	tests := []struct {
		name    string
		version string
		kind    BumpKind
		pre     string
		build   string
		want    string
	}{
		{"major", "1.2.3", BumpMajor, "", "", "2.0.0"},
		{"minor", "1.2.3", BumpMinor, "", "", "1.3.0"},
		{"patch", "1.2.3", BumpPatch, "", "", "1.2.4"},
		{"pre", "1.2.3", BumpPre, "alpha", "", "1.2.3-alpha"},
		{"build", "1.2.3", BumpBuild, "", "20240101", "1.2.3+20240101"},
		{"pre_build", "1.2.3", BumpPreBuild, "rc.1", "42", "1.2.3-rc.1+42"},
		{"partial input padded", "1.2", BumpPatch, "", "", "1.2.1"},
		{"single part padded", "1", BumpMinor, "", "", "1.1.0"},
		{"major clears pre", "1.2.3-alpha", BumpMajor, "", "", "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Bump(tt.version, tt.kind, tt.pre, tt.build)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(v))
		})
	}
}

func TestBump_InvalidIdentifiers(t *testing.T) {
	_, err := Bump("1.2.3", BumpPre, "bad_tag!", "")
	assert.ErrorIs(t, err, common.ErrInvalidPreRelease)

	_, err = Bump("1.2.3", BumpBuild, "", "not ok")
	assert.ErrorIs(t, err, common.ErrInvalidBuild)
}

func TestParseBumpKind(t *testing.T) {
	kind, err := ParseBumpKind("")
	require.NoError(t, err)
	assert.Equal(t, BumpMinor, kind)

	kind, err = ParseBumpKind("MAJOR")
	require.NoError(t, err)
	assert.Equal(t, BumpMajor, kind)

	_, err = ParseBumpKind("bogus")
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	latest, err := Latest([]string{"0.1.0", "1.0.0-alpha", "1.0.0", "0.9.9"})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", Format(latest))

	// pre-release sorts below its release
	latest, err = Latest([]string{"2.0.0-rc.1", "1.9.0"})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-rc.1", Format(latest))

	_, err = Latest(nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
