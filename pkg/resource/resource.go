package resource

import (
	"context"

	"github.com/cuemby/burrow/pkg/scope"
)

// Config is implemented by resource-specific configuration. Validate is
// called once at registration; a failing config rejects the registration.
type Config interface {
	Validate() error
}

// CredentialProvider is the narrow pull-based credential capability.
// Implementations fetch the current credential for an id on demand; the
// core never caches what it returns.
type CredentialProvider interface {
	Credential(ctx context.Context, id string) (string, error)
}

// Context carries per-operation identity and cancellation into every
// Resource operation. The embedded context.Context is the cancellation
// signal; everything else is workflow-engine identity.
type Context struct {
	context.Context

	Scope       scope.Scope
	ExecutionID string
	WorkflowID  string
	TenantID    string
	Metadata    map[string]string
	Credentials CredentialProvider
}

// NewContext builds an operation context from a cancellation signal and
// a scope, deriving the identity fields from the scope
func NewContext(ctx context.Context, sc scope.Scope) Context {
	return Context{
		Context:     ctx,
		Scope:       sc,
		ExecutionID: sc.ExecutionID,
		WorkflowID:  sc.WorkflowID,
		TenantID:    sc.TenantID,
	}
}

// WithCredentials returns a copy of the context carrying a credential
// provider for Create/Recycle to pull from
func (c Context) WithCredentials(p CredentialProvider) Context {
	c.Credentials = p
	return c
}

// WithMetadata returns a copy of the context with a metadata entry set
func (c Context) WithMetadata(key, value string) Context {
	md := make(map[string]string, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		md[k] = v
	}
	md[key] = value
	c.Metadata = md
	return c
}

// Resource is the driver contract. A Resource describes how to create,
// validate, recycle, and destroy one kind of external connection. The
// core owns pooling, health monitoring, and lifecycle; drivers own the
// wire protocol.
//
// Instances are opaque to the core (any); consumers downcast via the
// typed handle helpers in pkg/manager.
type Resource interface {
	// ID returns the stable identifier, unique per manager
	ID() string

	// Create produces a new live instance. It must respect ctx
	// cancellation and may pull credentials from ctx.Credentials.
	Create(ctx Context, cfg Config) (any, error)

	// IsValid reports whether an instance is still usable. Called on
	// every acquire before the instance is handed out.
	IsValid(ctx context.Context, instance any) (bool, error)

	// Recycle resets an instance between uses (rollback transactions,
	// clear session state). A failing recycle discards the instance.
	Recycle(ctx context.Context, instance any) error

	// Cleanup releases an instance permanently
	Cleanup(ctx context.Context, instance any) error

	// Dependencies lists the ids of resources this one depends on.
	// Must not include the resource's own id.
	Dependencies() []string
}

// Base provides the contract defaults. Drivers embed it and override
// only what they need:
//
//	type redisResource struct {
//		resource.Base
//	}
type Base struct{}

// IsValid defaults to accepting the instance
func (Base) IsValid(ctx context.Context, instance any) (bool, error) { return true, nil }

// Recycle defaults to a no-op
func (Base) Recycle(ctx context.Context, instance any) error { return nil }

// Cleanup defaults to dropping the instance
func (Base) Cleanup(ctx context.Context, instance any) error { return nil }

// Dependencies defaults to none
func (Base) Dependencies() []string { return nil }

// NopConfig is a Config for resources that need no configuration
type NopConfig struct{}

func (NopConfig) Validate() error { return nil }
