/*
Package hooks is the synchronous extension point alongside the async
event broker.

A Before hook runs in-line ahead of an operation and may veto it by
returning an error (credential-expiry refusal is the canonical case).
An After hook runs in-line behind the operation and can only observe;
its failures are logged, never propagated.

Hooks are sorted by ascending priority at registration time and may be
filtered to specific resource ids via Filter.
*/
package hooks
