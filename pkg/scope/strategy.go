package scope

import "fmt"

// Strategy selects how a registered scope is matched against a
// requesting scope at acquire time
type Strategy string

const (
	// StrategyStrict only allows requests whose scope exactly matches
	// the registered scope
	StrategyStrict Strategy = "strict"

	// StrategyHierarchical allows broader registered scopes to serve
	// narrower requests (the default)
	StrategyHierarchical Strategy = "hierarchical"

	// StrategyFallback tries an exact match first, then falls back to
	// hierarchical containment
	StrategyFallback Strategy = "fallback"
)

// Valid reports whether the strategy is one of the known values
func (st Strategy) Valid() bool {
	switch st {
	case StrategyStrict, StrategyHierarchical, StrategyFallback:
		return true
	}
	return false
}

// Allows reports whether a request under requested may use a resource
// registered under registered
func (st Strategy) Allows(registered, requested Scope) bool {
	switch st {
	case StrategyStrict:
		return registered.Equal(requested)
	case StrategyHierarchical:
		return registered.Contains(requested)
	case StrategyFallback:
		if registered.Equal(requested) {
			return true
		}
		return registered.Contains(requested)
	default:
		return false
	}
}

// DeniedError is returned when a scope check rejects an acquisition
type DeniedError struct {
	Registered Scope
	Requested  Scope
	Strategy   Strategy
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("scope denied: %s does not serve %s (strategy %s)",
		e.Registered, e.Requested, e.Strategy)
}
