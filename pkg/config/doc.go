/*
Package config loads and validates the YAML manifest and watches it for
changes.

	logging:
	  level: info
	  json: true
	strategy: hierarchical
	data_dir: /var/lib/burrow
	credentials:
	  path: /var/lib/burrow/vault.json
	  passphrase_env: BURROW_VAULT_PASSPHRASE
	pools:
	  database:
	    min_size: 2
	    max_size: 10
	    hard_max_size: 20
	    depends_on: [vault]
	    health:
	      interval: 30s
	      timeout: 5s
	      threshold: 3
	    quarantine:
	      max_attempts: 5
	    autoscale:
	      high_watermark: 0.8
	      low_watermark: 0.2
	      scale_up_step: 2
	      scale_down_step: 1
	      scale_up_window: 30s
	      scale_down_window: 2m
	      min_size: 2
	      max_size: 20
	  vault:
	    max_size: 4

The Watcher drives hot reload: it watches the manifest's directory (so
editor rename-replace still fires), debounces write bursts, and only
hands validated configs to the callback. A broken edit is logged and
ignored; the previous configuration stays in effect.
*/
package config
