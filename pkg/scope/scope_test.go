package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParentChain(t *testing.T) {
	action := Action("act-1", "exec-1", "wf-1", "acme")

	exec, ok := action.Parent()
	assert.True(t, ok)
	assert.Equal(t, Execution("exec-1", "wf-1", "acme"), exec)

	wf, ok := exec.Parent()
	assert.True(t, ok)
	assert.Equal(t, Workflow("wf-1", "acme"), wf)

	tenant, ok := wf.Parent()
	assert.True(t, ok)
	assert.Equal(t, Tenant("acme"), tenant)

	global, ok := tenant.Parent()
	assert.True(t, ok)
	assert.Equal(t, Global(), global)

	_, ok = global.Parent()
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	tests := []struct {
		name      string
		registered Scope
		requested  Scope
		expected   bool
	}{
		{
			name:       "global contains everything",
			registered: Global(),
			requested:  Action("a", "e", "w", "t"),
			expected:   true,
		},
		{
			name:       "tenant contains own workflow",
			registered: Tenant("acme"),
			requested:  Workflow("wf-1", "acme"),
			expected:   true,
		},
		{
			name:       "tenant contains own nested action",
			registered: Tenant("acme"),
			requested:  Action("a", "e", "wf-1", "acme"),
			expected:   true,
		},
		{
			name:       "tenant does not contain other tenant",
			registered: Tenant("acme"),
			requested:  Tenant("globex"),
			expected:   false,
		},
		{
			name:       "cross-branch workflows never contain each other",
			registered: Workflow("wf-1", "acme"),
			requested:  Execution("e", "wf-2", "acme"),
			expected:   false,
		},
		{
			name:       "narrower never contains broader",
			registered: Execution("e", "w", "t"),
			requested:  Workflow("w", "t"),
			expected:   false,
		},
		{
			name:       "exact match contains itself",
			registered: Workflow("w", "t"),
			requested:  Workflow("w", "t"),
			expected:   true,
		},
		{
			name:       "custom contains equal custom only",
			registered: Custom("region", "us-east"),
			requested:  Custom("region", "us-east"),
			expected:   true,
		},
		{
			name:       "custom does not contain different value",
			registered: Custom("region", "us-east"),
			requested:  Custom("region", "eu-west"),
			expected:   false,
		},
		{
			name:       "global contains custom",
			registered: Global(),
			requested:  Custom("region", "us-east"),
			expected:   true,
		},
		{
			name:       "custom does not contain hierarchy scopes",
			registered: Custom("region", "us-east"),
			requested:  Tenant("acme"),
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.registered.Contains(tt.requested))
		})
	}
}

// Containment must be transitive along well-formed chains
func TestContainsTransitivity(t *testing.T) {
	a := Tenant("acme")
	b := Workflow("wf-1", "acme")
	c := Execution("exec-1", "wf-1", "acme")

	assert.True(t, a.Contains(b))
	assert.True(t, b.Contains(c))
	assert.True(t, a.Contains(c))
}

func TestStrategyAllows(t *testing.T) {
	registered := Tenant("acme")
	narrower := Execution("e", "w", "acme")
	exact := Tenant("acme")
	foreign := Tenant("globex")

	tests := []struct {
		name      string
		strategy  Strategy
		requested Scope
		expected  bool
	}{
		{"strict rejects narrower", StrategyStrict, narrower, false},
		{"strict allows exact", StrategyStrict, exact, true},
		{"hierarchical allows narrower", StrategyHierarchical, narrower, true},
		{"hierarchical allows exact", StrategyHierarchical, exact, true},
		{"hierarchical rejects foreign", StrategyHierarchical, foreign, false},
		{"fallback allows exact", StrategyFallback, exact, true},
		{"fallback allows narrower", StrategyFallback, narrower, true},
		{"fallback rejects foreign", StrategyFallback, foreign, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.strategy.Allows(registered, tt.requested))
		})
	}
}

func TestStrategyValid(t *testing.T) {
	assert.True(t, StrategyStrict.Valid())
	assert.True(t, StrategyHierarchical.Valid())
	assert.True(t, StrategyFallback.Valid())
	assert.False(t, Strategy("open").Valid())
}

func TestDeniedError(t *testing.T) {
	err := &DeniedError{
		Registered: Tenant("acme"),
		Requested:  Tenant("globex"),
		Strategy:   StrategyHierarchical,
	}
	assert.Contains(t, err.Error(), "tenant/acme")
	assert.Contains(t, err.Error(), "tenant/globex")
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "global", Global().String())
	assert.Equal(t, "tenant/acme", Tenant("acme").String())
	assert.Equal(t, "custom/region=us-east", Custom("region", "us-east").String())
	assert.Equal(t,
		"tenant/t/workflow/w/execution/e/action/a",
		Action("a", "e", "w", "t").String())
}
