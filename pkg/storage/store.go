package storage

import (
	"github.com/cuemby/burrow/pkg/quarantine"
)

// Store defines the interface for persisted core state. Quarantine
// entries survive restarts so operators can inspect failures after the
// fact.
type Store interface {
	// Quarantine
	SaveQuarantine(e quarantine.Entry) error
	GetQuarantine(resourceID, instanceID string) (*quarantine.Entry, error)
	ListQuarantine() ([]quarantine.Entry, error)
	DeleteQuarantine(resourceID, instanceID string) error

	// Utility
	Close() error
}
