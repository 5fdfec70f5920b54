package config

import "git.home.luguber.info/inful/neon/internal/foundation/normalization"

// ErrorPolicy controls whether a stage stops at the first failing unit.
type ErrorPolicy string

const (
	// PolicyFailFast aborts the run on the first failure.
	PolicyFailFast ErrorPolicy = "fail_fast"
	// PolicyContinue runs the remaining units and aggregates failures.
	PolicyContinue ErrorPolicy = "continue"
)

var errorPolicies = normalization.NewEnum("error policy", PolicyFailFast, PolicyContinue).
	Alias("failfast", PolicyFailFast)

// NormalizeErrorPolicy maps user input onto a known policy; unknown input yields "".
func NormalizeErrorPolicy(raw string) ErrorPolicy {
	p, _ := errorPolicies.Lookup(raw)
	return p
}
