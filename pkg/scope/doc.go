/*
Package scope implements Burrow's hierarchical isolation model.

Scopes form a tree that mirrors the workflow engine's nesting:

	┌──────────────────── SCOPE HIERARCHY ────────────────────┐
	│                                                          │
	│   Global                                                 │
	│     └── Tenant{id}                                       │
	│           └── Workflow{id, tenant}                       │
	│                 └── Execution{id, workflow, tenant}      │
	│                       └── Action{id, execution, ...}     │
	│                                                          │
	│   Custom{key,value}   (orthogonal ad-hoc partitions)     │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

Containment is deny-by-default: Contains walks the requesting scope's
parent chain and only returns true on an exact structural match at some
level. Cross-branch scopes (two different tenants, two different
workflows) never contain each other.

Three matching strategies are selectable at the manager level:

  - Strict: exact scope only
  - Hierarchical: broader scopes serve narrower requests (default)
  - Fallback: strict first, then hierarchical

A resource registered under Tenant{"acme"} is usable by any action of
any workflow of tenant acme under the hierarchical strategy, but by
nothing else.
*/
package scope
