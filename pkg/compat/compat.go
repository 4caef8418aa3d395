// Package compat checks the plugin version reported by the connectivity test against the
// range this tool was built for.
package compat

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "compat:compat"

// DefaultConstraint accepts any 2.x plugin.
const DefaultConstraint = "^2.0.0"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// Report is the result of a version check.
type Report struct {
	Version    string `json:"version"`
	Constraint string `json:"constraint"`
	Compatible bool   `json:"compatible"`
	// Reason explains an incompatible or unknown result.
	Reason string `json:"reason,omitempty"`
}

// IsMajorOnly checks if a constraint is a major-only specifier (e.g., "2").
func IsMajorOnly(constraint string) bool {
	return majorOnlyRegex.MatchString(constraint)
}

// Checker holds a parsed constraint.
type Checker struct {
	raw        string
	major      int
	constraint *masterminds.Constraints
}

// NewChecker parses constraint: a major-only number ("2") or any Masterminds range
// ("^2.1.0", ">=2.0.0 <3.0.0"). Empty means DefaultConstraint.
func NewChecker(constraint string) (*Checker, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		constraint = DefaultConstraint
	}
	c := &Checker{raw: constraint, major: -1}
	if IsMajorOnly(constraint) {
		fmt.Sscanf(constraint, "%d", &c.major)
		return c, nil
	}
	parsed, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version constraint %q: %w", logPrefix, constraint, err)
	}
	c.constraint = parsed
	return c, nil
}

// Constraint returns the constraint string in use.
func (c *Checker) Constraint() string {
	return c.raw
}

// Check evaluates the version string the plugin reported.
func (c *Checker) Check(version string) Report {
	r := Report{Version: strings.TrimSpace(version), Constraint: c.raw}
	if r.Version == "" {
		r.Reason = "plugin did not report a version"
		return r
	}
	sv, err := masterminds.NewVersion(r.Version)
	if err != nil {
		r.Reason = fmt.Sprintf("unparseable version %q", r.Version)
		return r
	}
	if c.constraint == nil {
		r.Compatible = int(sv.Major()) == c.major
	} else {
		r.Compatible = c.constraint.Check(sv)
	}
	if !r.Compatible {
		r.Reason = fmt.Sprintf("plugin %s does not satisfy %s", sv.Original(), c.raw)
	}
	return r
}
