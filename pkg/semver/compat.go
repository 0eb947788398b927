// Package semver gates order-service endpoints on the version they report.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:compat"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// Gate checks reported service versions against a constraint.
// A nil Gate accepts every version.
type Gate struct {
	raw        string
	major      int
	constraint *masterminds.Constraints
}

// NewGate parses a constraint such as ">= 0.3.0", "^1.2.0" or a bare major ("1").
// An empty constraint returns a nil Gate.
func NewGate(constraint string) (*Gate, error) {
	raw := strings.TrimSpace(constraint)
	if raw == "" {
		return nil, nil
	}
	if IsMajorOnly(raw) {
		major, _ := strconv.Atoi(raw)
		return &Gate{raw: raw, major: major}, nil
	}
	c, err := masterminds.NewConstraint(raw)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version constraint %q: %w", logPrefix, raw, err)
	}
	return &Gate{raw: raw, major: -1, constraint: c}, nil
}

// String returns the constraint as configured.
func (g *Gate) String() string {
	if g == nil {
		return ""
	}
	return g.raw
}

// Check returns nil when version satisfies the gate. An unparseable or missing
// version fails a non-nil gate.
func (g *Gate) Check(version string) error {
	if g == nil {
		return nil
	}
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("%s - endpoint reported no version, want %s", logPrefix, g.raw)
	}
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s - endpoint version %q is not semver: %w", logPrefix, version, err)
	}
	if g.constraint == nil {
		if int(sv.Major()) != g.major {
			return fmt.Errorf("%s - endpoint version %s does not match major %d", logPrefix, version, g.major)
		}
		return nil
	}
	if !g.constraint.Check(sv) {
		return fmt.Errorf("%s - endpoint version %s does not satisfy %s", logPrefix, version, g.raw)
	}
	return nil
}

// IsMajorOnly checks if a constraint is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}
