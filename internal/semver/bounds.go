package semver

import (
	"fmt"
	"strconv"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// Bounds describes the half-open interval [Lower, Upper) a version spec
// resolves to. When NoUpperBound is set the upper bound is ignored and the
// spec matches every version.
type Bounds struct {
	Lower        *Version
	Upper        *Version
	NoUpperBound bool
}

type parserKind string

const (
	parserStar  parserKind = "star"
	parserCaret parserKind = "caret"
	parserTilde parserKind = "tilde"
	parserExact parserKind = "exact"
)

// ParseSpec resolves a version query spec into concrete bounds.
//
// Supported syntaxes:
//
//	"*"        any version
//	"1.*"      everything in 1.0.x (a star occupies the slot it replaces)
//	"^1.2.3"   caret range
//	"~1.2"     tilde range
//	"1.2"      exact prefix
//
// The caret upper bound is computed as the next minor, not the next major.
// Registry clients depend on this bound, so it is kept as-is even though it
// is narrower than strict semver caret semantics.
func ParseSpec(spec string) (Bounds, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return Bounds{}, &common.VersionError{Input: spec, Err: common.ErrEmptyVersion}
	}

	kind := parserExact
	switch {
	case strings.HasPrefix(s, "^"):
		kind = parserCaret
		s = s[1:]
	case strings.HasPrefix(s, "~"):
		kind = parserTilde
		s = s[1:]
	case strings.Contains(s, "*"):
		kind = parserStar
	}

	parts, err := splitParts(s, kind)
	if err != nil {
		return Bounds{}, err
	}

	switch kind {
	case parserStar:
		if len(parts) == 0 {
			zero := mmsemver.New(0, 0, 0, "", "")
			return Bounds{Lower: zero, Upper: zero, NoUpperBound: true}, nil
		}
		if len(parts) > 3 {
			return Bounds{}, specError(spec, parserStar)
		}
		return incrementLastBounds(parts), nil

	case parserExact:
		if len(parts) == 0 || len(parts) > 3 {
			return Bounds{}, specError(spec, parserExact)
		}
		return incrementLastBounds(parts), nil

	case parserTilde:
		switch len(parts) {
		case 1:
			// whole major
			return Bounds{
				Lower: pad(parts),
				Upper: mmsemver.New(parts[0]+1, 0, 0, "", ""),
			}, nil
		case 2:
			// whole minor
			return Bounds{
				Lower: pad(parts),
				Upper: mmsemver.New(parts[0], parts[1]+1, 0, "", ""),
			}, nil
		case 3:
			// patch-level compatibility only
			return Bounds{
				Lower: pad(parts),
				Upper: mmsemver.New(parts[0], parts[1]+1, 0, "", ""),
			}, nil
		default:
			return Bounds{}, specError(spec, parserTilde)
		}

	case parserCaret:
		if len(parts) < 2 || len(parts) > 3 {
			return Bounds{}, specError(spec, parserCaret)
		}
		return Bounds{
			Lower: pad(parts),
			Upper: mmsemver.New(parts[0], parts[1]+1, 0, "", ""),
		}, nil
	}

	return Bounds{}, specError(spec, kind)
}

// splitParts splits the spec remainder on "." into numeric components. For
// the star parser, a "*" token (or the empty token it leaves behind) counts
// as an occupied slot with value zero, so "1.*" yields two parts.
func splitParts(s string, kind parserKind) ([]uint64, error) {
	if s == "" || s == "*" {
		return nil, nil
	}
	raw := strings.Split(s, ".")
	parts := make([]uint64, 0, len(raw))
	for _, token := range raw {
		if kind == parserStar && (token == "*" || token == "") {
			parts = append(parts, 0)
			continue
		}
		n, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			return nil, specError(s, kind)
		}
		parts = append(parts, n)
	}
	return parts, nil
}

// incrementLastBounds implements the shared star/exact rule: the lower bound
// is the supplied parts zero-padded, the upper bound increments the last
// supplied part and zeroes everything after it.
func incrementLastBounds(parts []uint64) Bounds {
	upper := make([]uint64, 3)
	copy(upper, padSlice(parts))
	last := len(parts) - 1
	if last > 2 {
		last = 2
	}
	upper[last]++
	for i := last + 1; i < 3; i++ {
		upper[i] = 0
	}
	return Bounds{
		Lower: pad(parts),
		Upper: mmsemver.New(upper[0], upper[1], upper[2], "", ""),
	}
}

func padSlice(parts []uint64) []uint64 {
	out := make([]uint64, 3)
	copy(out, parts)
	return out
}

func pad(parts []uint64) *Version {
	p := padSlice(parts)
	return mmsemver.New(p[0], p[1], p[2], "", "")
}

func specError(spec string, kind parserKind) error {
	return &common.VersionError{
		Input: spec,
		Err:   fmt.Errorf("invalid %s version: %w", kind, common.ErrInvalidVersion),
	}
}
