// Package connection moves projects between the placeholder and connected states.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/demos-sh/demos/cache"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/secret"
)

const (
	DefaultKeepAliveTimeout = 300 * time.Second

	aliveValue   = "1"
	checkTimeout = 30 * time.Second
)

// ProjectStore is the persistence the lifecycle needs.
type ProjectStore interface {
	FindByDomain(domain string) (*domain.Project, error)
	ListByState(state domain.ConnectionState) ([]*domain.Project, error)
	Update(project *domain.Project) error
}

// VhostRenderer points a domain at an upstream port, or at the placeholder page for port 0.
type VhostRenderer interface {
	RenderVhost(ctx context.Context, domain string, port int) error
}

// PortLeaser hands out, verifies and releases port leases.
type PortLeaser interface {
	Allocate(ctx context.Context, projectID string) (int, error)
	Verify(ctx context.Context, port int, projectID string) error
	Release(ctx context.Context, port int) error
}

type Options struct {
	KeepAliveTimeout time.Duration
	Now              func() time.Time
}

// Lifecycle owns the PLACEHOLDER <-> CONNECTED transitions of a project.
//
// A connected project stays connected while its liveness flag exists in the
// store. Every connect and keep-alive schedules a check for when the flag
// would expire; the check reverts the project if the flag is gone by then.
// Transitions of one domain are serialized, so the flag is only ever present
// while the vhost proxies to the agent.
type Lifecycle struct {
	projects  ProjectStore
	store     cache.Store
	ports     PortLeaser
	renderer  VhostRenderer
	scheduler *Scheduler
	locks     *domainLocks
	opts      Options
}

func NewLifecycle(
	projects ProjectStore,
	store cache.Store,
	ports PortLeaser,
	renderer VhostRenderer,
	scheduler *Scheduler,
	opts Options,
) *Lifecycle {
	if opts.KeepAliveTimeout == 0 {
		opts.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if scheduler == nil {
		scheduler = NewScheduler()
	}
	return &Lifecycle{
		projects:  projects,
		store:     store,
		ports:     ports,
		renderer:  renderer,
		scheduler: scheduler,
		locks:     newDomainLocks(),
		opts:      opts,
	}
}

// Reserve leases a free upstream port for the project's next Connect.
func (l *Lifecycle) Reserve(ctx context.Context, p *domain.Project) (int, error) {
	port, err := l.ports.Allocate(ctx, p.ID.String())
	if err != nil {
		return 0, &domain.ProjectError{Domain: p.Domain, Op: "reserve", Err: err}
	}
	return port, nil
}

// Connect switches the project to proxy to port. The port must be leased to
// the project; the lease is released only once the vhost points at it.
func (l *Lifecycle) Connect(ctx context.Context, p *domain.Project, secretKey string, port int) error {
	if !secret.Equal(p.SecretKey, secretKey) {
		return &domain.ProjectError{Domain: p.Domain, Op: "connect", Err: domain.ErrForbidden}
	}

	unlock := l.locks.lock(p.Domain)
	defer unlock()

	if err := l.ports.Verify(ctx, port, p.ID.String()); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "connect", Err: err}
	}

	if err := l.renderer.RenderVhost(ctx, p.Domain, port); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "connect", Err: err}
	}

	if err := l.ports.Release(ctx, port); err != nil {
		// The lease expires on its own
		slog.Warn("Failed to release port lease",
			"layer", "connection",
			"domain", p.Domain,
			"port", port,
			"error", err)
	}

	if err := l.store.Set(ctx, cache.AliveKey(p.Domain), aliveValue, l.opts.KeepAliveTimeout); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "connect", Err: err}
	}

	now := l.opts.Now()
	p.State = domain.ConnectionStateConnected
	p.Port = port
	p.LastConnectedAt = &now
	if err := l.projects.Update(p); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "connect", Err: err}
	}

	l.scheduleCheck(p.Domain)

	slog.Info("Project connected",
		"layer", "connection",
		"project_id", p.ID,
		"domain", p.Domain,
		"port", port)
	return nil
}

// KeepAlive extends the liveness window of the project's connection. A
// project that is not connected has nothing to extend and is left alone.
func (l *Lifecycle) KeepAlive(ctx context.Context, p *domain.Project) error {
	unlock := l.locks.lock(p.Domain)
	defer unlock()

	current, err := l.projects.FindByDomain(p.Domain)
	if err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "keep_alive", Err: err}
	}

	if current.State != domain.ConnectionStateConnected {
		slog.Debug("Keep-alive ignored, project not connected",
			"layer", "connection",
			"domain", p.Domain,
			"state", current.State.String())
		return nil
	}

	if err := l.store.Set(ctx, cache.AliveKey(p.Domain), aliveValue, l.opts.KeepAliveTimeout); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "keep_alive", Err: err}
	}
	l.scheduleCheck(p.Domain)

	slog.Debug("Keep-alive received",
		"layer", "connection",
		"domain", p.Domain)
	return nil
}

// Disconnect reverts the project to the placeholder immediately.
func (l *Lifecycle) Disconnect(ctx context.Context, p *domain.Project, secretKey string) error {
	if !secret.Equal(p.SecretKey, secretKey) {
		return &domain.ProjectError{Domain: p.Domain, Op: "disconnect", Err: domain.ErrForbidden}
	}

	unlock := l.locks.lock(p.Domain)
	defer unlock()

	l.scheduler.Cancel(p.Domain)

	if err := l.revert(ctx, p); err != nil {
		return err
	}

	slog.Info("Project disconnected",
		"layer", "connection",
		"project_id", p.ID,
		"domain", p.Domain)
	return nil
}

// Revert renders the placeholder vhost, clears the liveness flag and
// persists the placeholder state.
func (l *Lifecycle) Revert(ctx context.Context, p *domain.Project) error {
	unlock := l.locks.lock(p.Domain)
	defer unlock()

	return l.revert(ctx, p)
}

func (l *Lifecycle) revert(ctx context.Context, p *domain.Project) error {
	if err := l.renderer.RenderVhost(ctx, p.Domain, 0); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "revert", Err: err}
	}

	if err := l.store.Delete(ctx, cache.AliveKey(p.Domain)); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "revert", Err: err}
	}

	p.State = domain.ConnectionStatePlaceholder
	p.Port = 0
	if err := l.projects.Update(p); err != nil {
		return &domain.ProjectError{Domain: p.Domain, Op: "revert", Err: err}
	}
	return nil
}

// Forget cancels any pending liveness check and clears the flag. Used when a
// project is removed.
func (l *Lifecycle) Forget(ctx context.Context, domainName string) error {
	l.scheduler.Cancel(domainName)
	return l.store.Delete(ctx, cache.AliveKey(domainName))
}

// IsAlive reports whether the project's liveness flag is present.
func (l *Lifecycle) IsAlive(ctx context.Context, domainName string) (bool, error) {
	_, ok, err := l.store.Get(ctx, cache.AliveKey(domainName))
	return ok, err
}

// CheckLiveness reverts the connected project behind domainName if its
// liveness flag has expired. It reports whether a revert happened.
func (l *Lifecycle) CheckLiveness(ctx context.Context, domainName string) (bool, error) {
	unlock := l.locks.lock(domainName)
	defer unlock()

	alive, err := l.IsAlive(ctx, domainName)
	if err != nil {
		return false, err
	}
	if alive {
		return false, nil
	}

	p, err := l.projects.FindByDomain(domainName)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			// Deleted while connected; its vhost is already gone
			return false, nil
		}
		return false, err
	}
	if p.State != domain.ConnectionStateConnected {
		return false, nil
	}

	if err := l.revert(ctx, p); err != nil {
		return false, err
	}

	slog.Info("Connection expired, reverted to placeholder",
		"layer", "connection",
		"project_id", p.ID,
		"domain", p.Domain)
	return true, nil
}

// Reconcile reverts every project persisted as connected whose liveness flag
// is gone, and returns how many were reverted. It covers checks lost to a restart.
func (l *Lifecycle) Reconcile(ctx context.Context) (int, error) {
	connected, err := l.projects.ListByState(domain.ConnectionStateConnected)
	if err != nil {
		return 0, fmt.Errorf("failed to list connected projects: %w", err)
	}

	reverted := 0
	var errs []error
	for _, p := range connected {
		if l.scheduler.Pending(p.Domain) {
			continue
		}
		ok, err := l.CheckLiveness(ctx, p.Domain)
		if err != nil {
			slog.Error("Liveness check failed",
				"layer", "connection",
				"operation", "reconcile",
				"domain", p.Domain,
				"error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			reverted++
		}
	}
	return reverted, errors.Join(errs...)
}

// Stop cancels pending liveness checks and waits for running ones.
func (l *Lifecycle) Stop() {
	l.scheduler.Stop()
}

func (l *Lifecycle) scheduleCheck(domainName string) {
	l.scheduler.Schedule(domainName, l.opts.KeepAliveTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if _, err := l.CheckLiveness(ctx, domainName); err != nil {
			slog.Error("Deferred liveness check failed",
				"layer", "connection",
				"domain", domainName,
				"error", err)
		}
	})
}
