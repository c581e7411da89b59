package resource

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseDefaults(t *testing.T) {
	var b Base
	ctx := context.Background()

	valid, err := b.IsValid(ctx, "anything")
	require.NoError(t, err)
	assert.True(t, valid)

	assert.NoError(t, b.Recycle(ctx, "anything"))
	assert.NoError(t, b.Cleanup(ctx, "anything"))
	assert.Empty(t, b.Dependencies())
}

func TestDegradedImpactClamped(t *testing.T) {
	tests := []struct {
		name     string
		impact   float64
		expected float64
	}{
		{"below range", -0.5, 0},
		{"lower bound", 0, 0},
		{"in range", 0.4, 0.4},
		{"upper bound", 1, 1},
		{"above range", 3.2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Degraded("slow", tt.impact)
			assert.Equal(t, HealthDegraded, st.State)
			assert.Equal(t, tt.expected, st.Impact)
		})
	}
}

func TestHealthStatusConstructors(t *testing.T) {
	assert.Equal(t, HealthHealthy, Healthy().State)

	u := Unhealthy("connection refused", true)
	assert.Equal(t, HealthUnhealthy, u.State)
	assert.True(t, u.Recoverable)
	assert.Equal(t, "connection refused", u.Reason)

	unk := Unknown("check timed out")
	assert.Equal(t, HealthUnknown, unk.State)
}

func TestHealthStatusString(t *testing.T) {
	assert.Equal(t, "healthy", Healthy().String())
	assert.Equal(t, "unhealthy (gone)", Unhealthy("gone", false).String())
}

func TestDefaultHealthCheckConfig(t *testing.T) {
	cfg := DefaultHealthCheckConfig()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestNewContextDerivesIdentity(t *testing.T) {
	sc := scope.Action("act-1", "exec-1", "wf-1", "acme")
	rc := NewContext(context.Background(), sc)

	assert.Equal(t, "exec-1", rc.ExecutionID)
	assert.Equal(t, "wf-1", rc.WorkflowID)
	assert.Equal(t, "acme", rc.TenantID)
	assert.Equal(t, sc, rc.Scope)
}

type staticCreds string

func (s staticCreds) Credential(ctx context.Context, id string) (string, error) {
	return string(s), nil
}

func TestContextWith(t *testing.T) {
	rc := NewContext(context.Background(), scope.Global())

	rc2 := rc.WithCredentials(staticCreds("secret")).WithMetadata("attempt", "1")
	cred, err := rc2.Credentials.Credential(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "secret", cred)
	assert.Equal(t, "1", rc2.Metadata["attempt"])

	// original untouched
	assert.Nil(t, rc.Credentials)
	assert.Empty(t, rc.Metadata)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewContext(ctx, scope.Global())
	cancel()

	select {
	case <-rc.Done():
	default:
		t.Fatal("expected context to be cancelled")
	}
}
