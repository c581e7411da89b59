/*
Package credentials provides pull-based credential providers for
resource drivers.

# Architecture

	┌─────────────────────────────────────────────────────────┐
	│                 CREDENTIAL PROVIDERS                    │
	│                                                         │
	│  driver Create/Recycle                                  │
	│        │                                                │
	│        │ ctx.Credentials.Credential(ctx, "db-password") │
	│        ▼                                                │
	│  ┌──────────┐         ┌─────────────────────────┐       │
	│  │  Static  │   or    │          Vault          │       │
	│  │ (memory) │         │  JSON file, AES-256-GCM │       │
	│  └──────────┘         │  per-value nonce        │       │
	│                       └─────────────────────────┘       │
	└─────────────────────────────────────────────────────────┘

Providers are pull-based: the driver asks for a credential by id at the
moment it needs one, and nothing in the core caches the answer. That
makes rotation trivial (Vault.Put the new value; the next Create sees
it) and keeps plaintext out of long-lived state.

Static is a plain map for tests and demos. Vault encrypts each value
with AES-256-GCM under a key derived from a passphrase via SHA-256,
storing base64(nonce||ciphertext) in a JSON file.
*/
package credentials
