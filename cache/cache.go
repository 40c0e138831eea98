// Package cache provides the expiring key/value store behind port leases and
// connection liveness flags.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is a shared key/value store with per-entry expiry. An entry whose
// expiry time has been reached is treated as absent.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key, replacing any existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Add writes value under key only if no live entry exists and reports whether it did.
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// LeaseKey is the key holding the project ID a port is leased to.
func LeaseKey(port int) string {
	return fmt.Sprintf("lease:%d", port)
}

// AliveKey is the key holding the liveness flag for a project domain.
func AliveKey(domain string) string {
	return "alive:" + domain
}

// Clock returns the current time. Tests replace it to control expiry.
type Clock func() time.Time

func expired(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt)
}

// Purger is implemented by stores that can drop expired entries in bulk.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}
