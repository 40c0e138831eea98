// Package ports hands out ephemeral upstream ports for agent connections.
package ports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/demos-sh/demos/cache"
	"github.com/demos-sh/demos/domain"
)

const (
	DefaultRangeStart   = 20000
	DefaultRangeEnd     = 30000
	DefaultLeaseTTL     = 30 * time.Second
	DefaultProbeTimeout = 200 * time.Millisecond
)

// Prober reports whether something is already listening on a local port.
type Prober func(ctx context.Context, port int) bool

// DialProber treats a successful TCP connect to 127.0.0.1:port as "in use".
// Any dial error means the port is free.
func DialProber(timeout time.Duration) Prober {
	return func(ctx context.Context, port int) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

type Options struct {
	RangeStart int
	RangeEnd   int // inclusive
	LeaseTTL   time.Duration
	Probe      Prober
}

// Allocator leases ports from a fixed range. A lease is an entry in the
// shared store whose value is the owning project ID.
type Allocator struct {
	store cache.Store
	opts  Options
}

func NewAllocator(store cache.Store, opts Options) *Allocator {
	if opts.RangeStart == 0 {
		opts.RangeStart = DefaultRangeStart
	}
	if opts.RangeEnd == 0 {
		opts.RangeEnd = DefaultRangeEnd
	}
	if opts.LeaseTTL == 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.Probe == nil {
		opts.Probe = DialProber(DefaultProbeTimeout)
	}
	return &Allocator{store: store, opts: opts}
}

// Allocate scans the range in ascending order and leases the first port that
// is neither bound on the host nor already leased.
func (a *Allocator) Allocate(ctx context.Context, projectID string) (int, error) {
	for port := a.opts.RangeStart; port <= a.opts.RangeEnd; port++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if a.opts.Probe(ctx, port) {
			continue
		}

		added, err := a.store.Add(ctx, cache.LeaseKey(port), projectID, a.opts.LeaseTTL)
		if err != nil {
			return 0, fmt.Errorf("failed to lease port %d: %w", port, err)
		}
		if !added {
			continue
		}

		slog.Debug("Port leased",
			"layer", "ports",
			"port", port,
			"project_id", projectID,
			"ttl", a.opts.LeaseTTL)
		return port, nil
	}

	slog.Warn("Port range exhausted",
		"layer", "ports",
		"range_start", a.opts.RangeStart,
		"range_end", a.opts.RangeEnd)
	return 0, &domain.ProjectError{Op: "allocate", Err: domain.ErrPortsExhausted}
}

// Lookup returns the project ID holding a live lease on port.
func (a *Allocator) Lookup(ctx context.Context, port int) (string, bool, error) {
	return a.store.Get(ctx, cache.LeaseKey(port))
}

// Verify checks that port is currently leased to projectID. The lease is
// left in place; callers Release it once the port is in use.
func (a *Allocator) Verify(ctx context.Context, port int, projectID string) error {
	owner, ok, err := a.Lookup(ctx, port)
	if err != nil {
		return err
	}
	if !ok || owner != projectID {
		return domain.ErrPortNotLeased
	}
	return nil
}

// Release drops the lease on port, if any.
func (a *Allocator) Release(ctx context.Context, port int) error {
	return a.store.Delete(ctx, cache.LeaseKey(port))
}

// InRange reports whether port belongs to the allocator's range.
func (a *Allocator) InRange(port int) bool {
	return port >= a.opts.RangeStart && port <= a.opts.RangeEnd
}

// IsExhausted reports whether err means no port could be leased.
func IsExhausted(err error) bool {
	return errors.Is(err, domain.ErrPortsExhausted)
}
