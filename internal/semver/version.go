// Package semver implements version parsing, bump rules, and range-bound
// computation for card version queries. Parsing and ordering delegate to
// github.com/Masterminds/semver; the bump and bound arithmetic is the
// registry's own policy.
package semver

import (
	"fmt"
	"sort"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// Version aliases the underlying semver implementation so callers outside
// this package never import it directly.
type Version = mmsemver.Version

// BumpKind selects which component of a version to advance.
type BumpKind string

const (
	BumpMajor    BumpKind = "major"
	BumpMinor    BumpKind = "minor"
	BumpPatch    BumpKind = "patch"
	BumpPre      BumpKind = "pre"
	BumpBuild    BumpKind = "build"
	BumpPreBuild BumpKind = "pre_build"
)

// ParseBumpKind maps a request string to a BumpKind, defaulting to minor
// for an empty value.
func ParseBumpKind(s string) (BumpKind, error) {
	switch strings.ToLower(s) {
	case "":
		return BumpMinor, nil
	case "major":
		return BumpMajor, nil
	case "minor":
		return BumpMinor, nil
	case "patch":
		return BumpPatch, nil
	case "pre":
		return BumpPre, nil
	case "build":
		return BumpBuild, nil
	case "pre_build", "prebuild":
		return BumpPreBuild, nil
	default:
		return "", &common.VersionError{Input: s, Err: common.ErrInvalidVersion}
	}
}

// Parse parses a version string into a Version. Inputs with fewer than three
// numeric components are right-padded with zeros ("1.2" parses as "1.2.0").
func Parse(s string) (*Version, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &common.VersionError{Input: s, Err: common.ErrEmptyVersion}
	}
	v, err := mmsemver.NewVersion(s)
	if err != nil {
		return nil, &common.VersionError{Input: s, Err: common.ErrInvalidVersion}
	}
	return v, nil
}

// Bump applies a version bump of the given kind.
//
// Major, minor and patch bumps clear any pre-release and build metadata.
// Pre, Build and PreBuild leave major.minor.patch untouched and only set the
// respective identifier fields; invalid identifiers fail with
// ErrInvalidPreRelease / ErrInvalidBuild.
func Bump(version string, kind BumpKind, pre, build string) (*Version, error) {
	v, err := Parse(version)
	if err != nil {
		return nil, err
	}

	switch kind {
	case BumpMajor:
		next := v.IncMajor()
		return &next, nil
	case BumpMinor:
		next := v.IncMinor()
		return &next, nil
	case BumpPatch:
		next := v.IncPatch()
		return &next, nil
	case BumpPre:
		return setIdentifiers(v, version, pre, "")
	case BumpBuild:
		return setIdentifiers(v, version, "", build)
	case BumpPreBuild:
		return setIdentifiers(v, version, pre, build)
	default:
		return nil, &common.VersionError{Input: string(kind), Err: common.ErrInvalidVersion}
	}
}

func setIdentifiers(v *Version, input, pre, build string) (*Version, error) {
	out := *v
	if pre != "" {
		next, err := out.SetPrerelease(pre)
		if err != nil {
			return nil, &common.VersionError{Input: input, Err: common.ErrInvalidPreRelease}
		}
		out = next
	}
	if build != "" {
		next, err := out.SetMetadata(build)
		if err != nil {
			return nil, &common.VersionError{Input: input, Err: common.ErrInvalidBuild}
		}
		out = next
	}
	return &out, nil
}

// Latest returns the highest version among the given version strings by
// semver precedence. Build metadata is ignored for ordering.
func Latest(versions []string) (*Version, error) {
	if len(versions) == 0 {
		return nil, common.ErrNotFound
	}
	parsed := make([]*Version, 0, len(versions))
	for _, s := range versions {
		v, err := Parse(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, v)
	}
	sort.Sort(mmsemver.Collection(parsed))
	return parsed[len(parsed)-1], nil
}

// Format renders a version the way card rows store it: always three numeric
// components, with pre-release and build metadata when present.
func Format(v *Version) string {
	s := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if v.Prerelease() != "" {
		s += "-" + v.Prerelease()
	}
	if v.Metadata() != "" {
		s += "+" + v.Metadata()
	}
	return s
}
