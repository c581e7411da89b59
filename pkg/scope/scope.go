package scope

import "fmt"

// Kind identifies the level of a scope in the isolation hierarchy
type Kind string

const (
	KindGlobal    Kind = "global"
	KindTenant    Kind = "tenant"
	KindWorkflow  Kind = "workflow"
	KindExecution Kind = "execution"
	KindAction    Kind = "action"
	KindCustom    Kind = "custom"
)

// Scope is a hierarchical access-control value. Scopes form a tree:
//
//	Global ⊃ Tenant ⊃ Workflow ⊃ Execution ⊃ Action
//
// plus an orthogonal Custom{key,value} partition. A resource registered
// under a scope may only be used by requests whose scope it contains.
type Scope struct {
	Kind        Kind   `json:"kind" yaml:"kind"`
	TenantID    string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	WorkflowID  string `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	ExecutionID string `json:"execution_id,omitempty" yaml:"execution_id,omitempty"`
	ActionID    string `json:"action_id,omitempty" yaml:"action_id,omitempty"`

	// Key and Value are only set for Custom scopes
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Global returns the root scope that contains every other scope
func Global() Scope {
	return Scope{Kind: KindGlobal}
}

// Tenant returns a tenant-level scope
func Tenant(tenantID string) Scope {
	return Scope{Kind: KindTenant, TenantID: tenantID}
}

// Workflow returns a workflow-level scope nested under a tenant
func Workflow(workflowID, tenantID string) Scope {
	return Scope{Kind: KindWorkflow, WorkflowID: workflowID, TenantID: tenantID}
}

// Execution returns an execution-level scope nested under a workflow
func Execution(executionID, workflowID, tenantID string) Scope {
	return Scope{
		Kind:        KindExecution,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		TenantID:    tenantID,
	}
}

// Action returns an action-level scope, the narrowest in the hierarchy
func Action(actionID, executionID, workflowID, tenantID string) Scope {
	return Scope{
		Kind:        KindAction,
		ActionID:    actionID,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		TenantID:    tenantID,
	}
}

// Custom returns an ad-hoc partition scope outside the main hierarchy
func Custom(key, value string) Scope {
	return Scope{Kind: KindCustom, Key: key, Value: value}
}

// Equal reports whether two scopes are structurally identical
func (s Scope) Equal(other Scope) bool {
	return s == other
}

// Parent returns the next broader scope in the chain. The second return
// value is false once the chain is exhausted (at Global).
func (s Scope) Parent() (Scope, bool) {
	switch s.Kind {
	case KindAction:
		return Execution(s.ExecutionID, s.WorkflowID, s.TenantID), true
	case KindExecution:
		return Workflow(s.WorkflowID, s.TenantID), true
	case KindWorkflow:
		return Tenant(s.TenantID), true
	case KindTenant, KindCustom:
		return Global(), true
	default:
		return Scope{}, false
	}
}

// Contains answers "can a request made under other use a resource
// registered under s?". It walks other's parent chain and compares at
// each level; deny-by-default unless an exact structural match is found.
func (s Scope) Contains(other Scope) bool {
	for cur := other; ; {
		if s.Equal(cur) {
			return true
		}
		parent, ok := cur.Parent()
		if !ok {
			return false
		}
		cur = parent
	}
}

// String renders the scope for logs and error messages
func (s Scope) String() string {
	switch s.Kind {
	case KindGlobal:
		return "global"
	case KindTenant:
		return fmt.Sprintf("tenant/%s", s.TenantID)
	case KindWorkflow:
		return fmt.Sprintf("tenant/%s/workflow/%s", s.TenantID, s.WorkflowID)
	case KindExecution:
		return fmt.Sprintf("tenant/%s/workflow/%s/execution/%s", s.TenantID, s.WorkflowID, s.ExecutionID)
	case KindAction:
		return fmt.Sprintf("tenant/%s/workflow/%s/execution/%s/action/%s",
			s.TenantID, s.WorkflowID, s.ExecutionID, s.ActionID)
	case KindCustom:
		return fmt.Sprintf("custom/%s=%s", s.Key, s.Value)
	default:
		return string(s.Kind)
	}
}
