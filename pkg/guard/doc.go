/*
Package guard provides the one-shot release handle used by the pool.

Go has no destructors, so the RAII pattern is rendered as an explicit
Release that is idempotent: the release callback fires exactly once
whether the guard is released normally, released twice by accident, or
detached via IntoInner. Callers typically defer the release:

	g, err := pool.Acquire(ctx, reqCtx)
	if err != nil {
		return err
	}
	defer g.Release()

IntoInner transfers ownership of the wrapped value to the caller; the
callback still fires (once, with detached=true) so the pool can account
for the instance leaving its custody without double-releasing.
*/
package guard
