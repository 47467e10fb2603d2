package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Channel is the release cadence a version belongs to.
type Channel int

const (
	ChannelNightly Channel = iota
	ChannelBeta
	ChannelStable
)

func (c Channel) String() string {
	switch c {
	case ChannelNightly:
		return "nightly"
	case ChannelBeta:
		return "beta"
	case ChannelStable:
		return "stable"
	}
	return "unknown"
}

// ErrUnparsable is returned when a version string matches none of the
// known tag grammars.
var ErrUnparsable = errors.New("version string matches no known format")

// ClassifyChannel derives the channel from a version or tag string by
// case-insensitive prefix match. Unrecognized prefixes are treated as
// stable releases.
func ClassifyChannel(s string) Channel {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "nightly"):
		return ChannelNightly
	case strings.HasPrefix(lower, "beta"):
		return ChannelBeta
	default:
		return ChannelStable
	}
}

// Parsed is a version string broken into its typed parts. Exactly one
// variant exists per channel; values are compared only through NewerThan.
type Parsed interface {
	// FullString returns the original, unmodified input string.
	FullString() string
	// Channel returns the release channel the version belongs to.
	Channel() Channel
	// BaseVersion returns the prefix-qualified version identity used for
	// display, e.g. "Stable-1.2Fix".
	BaseVersion() string
	// Hotfix reports whether the version carries a hotfix suffix.
	Hotfix() bool
	// NewerThan reports whether the receiver is strictly newer than other.
	// Comparing across different variants always reports true for the
	// receiver; see the package tests for why this asymmetry is preserved.
	NewerThan(other Parsed) bool
}

// Nightly is a CI build version of the form "nightly-yymmdd".
type Nightly struct {
	fullString string
	Prefix     string
	DateCode   string
}

func (v Nightly) FullString() string  { return v.fullString }
func (v Nightly) Channel() Channel    { return ChannelNightly }
func (v Nightly) BaseVersion() string { return v.Prefix + "-" + v.DateCode }
func (v Nightly) Hotfix() bool        { return false }

func (v Nightly) NewerThan(other Parsed) bool {
	o, ok := other.(Nightly)
	if !ok {
		return true
	}
	// yymmdd compares correctly as an integer.
	thisDate, _ := strconv.Atoi(v.DateCode)
	otherDate, _ := strconv.Atoi(o.DateCode)
	return thisDate > otherDate
}

// Release is a beta or stable version of the form
// "<prefix>-<major>.<minor>[Fix][-Catalog]". The catalog suffix is present
// only on application-internal version strings, never on bare release tags.
type Release struct {
	fullString   string
	channel      Channel
	Prefix       string
	VersionCode  string
	IsHotfix     bool
	HotfixSuffix string
	Catalog      string
}

func (v Release) FullString() string { return v.fullString }
func (v Release) Channel() Channel   { return v.channel }
func (v Release) Hotfix() bool       { return v.IsHotfix }

func (v Release) BaseVersion() string {
	if v.IsHotfix {
		return v.Prefix + "-" + v.VersionCode + v.HotfixSuffix
	}
	return v.Prefix + "-" + v.VersionCode
}

func (v Release) NewerThan(other Parsed) bool {
	o, ok := other.(Release)
	if !ok || o.channel != v.channel {
		return true
	}

	if v.VersionCode != o.VersionCode {
		if cmp := compareVersionCodes(v.VersionCode, o.VersionCode); cmp != 0 {
			return cmp > 0
		}
	}

	// Same numeric version: a hotfix supersedes its base release.
	if v.IsHotfix && !o.IsHotfix {
		return true
	}
	if !v.IsHotfix && o.IsHotfix {
		return false
	}

	// Final tiebreaker is the build catalog, absent treated as empty.
	return v.Catalog > o.Catalog
}

// compareVersionCodes compares dotted version codes component-wise as
// integers, treating missing trailing components as zero.
func compareVersionCodes(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var ai, bi int
		if i < len(as) {
			ai, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bi, _ = strconv.Atoi(bs[i])
		}
		if ai != bi {
			if ai > bi {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Tag grammars, tried in this order. First match wins.
var (
	nightlyRe           = regexp.MustCompile(`(?i)^(nightly)-(\d{6})$`)
	betaWithCatalogRe   = regexp.MustCompile(`(?i)^(beta)-(\d+\.\d+)(Fix)?-([a-zA-Z0-9]+)$`)
	betaRe              = regexp.MustCompile(`(?i)^(beta)-(\d+\.\d+)(Fix)?$`)
	stableWithCatalogRe = regexp.MustCompile(`(?i)^(stable)-(\d+\.\d+)(Fix)?-([a-zA-Z0-9]+)$`)
	stableRe            = regexp.MustCompile(`(?i)^(stable)-(\d+\.\d+)(Fix)?$`)
)

// Parse turns a version or tag string into its typed form. An optional
// leading "Version " literal and surrounding whitespace are ignored. A
// string either matches exactly one grammar or parsing fails with
// ErrUnparsable; there is no partial parse.
func Parse(versionString string) (Parsed, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(versionString, "Version "))

	if m := nightlyRe.FindStringSubmatch(clean); m != nil {
		return Nightly{
			fullString: versionString,
			Prefix:     m[1],
			DateCode:   m[2],
		}, nil
	}

	if m := betaWithCatalogRe.FindStringSubmatch(clean); m != nil {
		return newRelease(versionString, ChannelBeta, m[1], m[2], m[3], m[4]), nil
	}
	if m := betaRe.FindStringSubmatch(clean); m != nil {
		return newRelease(versionString, ChannelBeta, m[1], m[2], m[3], ""), nil
	}
	if m := stableWithCatalogRe.FindStringSubmatch(clean); m != nil {
		return newRelease(versionString, ChannelStable, m[1], m[2], m[3], m[4]), nil
	}
	if m := stableRe.FindStringSubmatch(clean); m != nil {
		return newRelease(versionString, ChannelStable, m[1], m[2], m[3], ""), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnparsable, versionString)
}

func newRelease(full string, channel Channel, prefix, code, fixSuffix, catalog string) Release {
	return Release{
		fullString:   full,
		channel:      channel,
		Prefix:       prefix,
		VersionCode:  code,
		IsHotfix:     fixSuffix != "",
		HotfixSuffix: fixSuffix,
		Catalog:      catalog,
	}
}
