package verification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

// API is the slice of the domains endpoints a Flow drives.
// *client.DomainsService satisfies it.
type API interface {
	Get(ctx context.Context, domain string) (client.Domain, error)
	Order(ctx context.Context, domainID int) (client.AcmeOrder, error)
	CreateOrder(ctx context.Context, domainID int) (client.DomainChallenge, error)
	Challenge(ctx context.Context, domain string) (client.DomainChallenge, error)
	FinalizeOrder(ctx context.Context, domainID int) (client.Domain, error)
	CancelOrder(ctx context.Context, domainID int) (client.Domain, error)
	Renew(ctx context.Context, domain string) (client.Provisioning, error)
}

// Snapshot is the server state of one domain after a fetch or mutation.
type Snapshot struct {
	Domain    client.Domain           `json:"domain"`
	Order     *client.AcmeOrder       `json:"order,omitempty"`
	Challenge *client.DomainChallenge `json:"challenge,omitempty"`
	Stage     Stage                   `json:"stage"`
}

// Actions lists the mutations offered for the snapshot's stage.
func (s Snapshot) Actions() []Action { return Actions(s.Stage) }

// Flow follows the verification of a single domain. Every mutation is
// followed by a refetch so callers always render server state.
type Flow struct {
	api    API
	domain string
	logger *zap.Logger

	mu       sync.Mutex
	domainID int
}

// Option customises a Flow.
type Option func(*Flow)

// WithLogger attaches a logger for mutation tracing.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// New returns a Flow for domain.
func New(api API, domain string, opts ...Option) *Flow {
	f := &Flow{
		api:    api,
		domain: strings.ToLower(strings.TrimSpace(domain)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Domain returns the domain name the flow follows.
func (f *Flow) Domain() string { return f.domain }

// CacheKey is where Watch stores each snapshot in the poll cache.
func (f *Flow) CacheKey() string { return poll.Key("domain", f.domain) }

// Refresh fetches the domain, its order and, when an order exists, its
// challenge records.
func (f *Flow) Refresh(ctx context.Context) (Snapshot, error) {
	domain, err := f.api.Get(ctx, f.domain)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch domain %s: %w", f.domain, err)
	}
	f.mu.Lock()
	f.domainID = domain.ID
	f.mu.Unlock()

	snap := Snapshot{Domain: domain}
	order, err := f.api.Order(ctx, domain.ID)
	switch {
	case err == nil:
		snap.Order = &order
	case client.IsNotFound(err):
	default:
		return Snapshot{}, fmt.Errorf("fetch order for %s: %w", f.domain, err)
	}

	if snap.Order != nil && domain.Status != client.DomainActive {
		challenge, err := f.api.Challenge(ctx, f.domain)
		switch {
		case err == nil:
			snap.Challenge = &challenge
		case client.IsNotFound(err):
		default:
			return Snapshot{}, fmt.Errorf("fetch challenge for %s: %w", f.domain, err)
		}
	}
	snap.Stage = Derive(domain, snap.Order)
	return snap, nil
}

// CreateOrder opens an ACME order for the domain.
func (f *Flow) CreateOrder(ctx context.Context) (Snapshot, error) {
	return f.mutate(ctx, ActionCreateOrder, func(id int) error {
		_, err := f.api.CreateOrder(ctx, id)
		return err
	})
}

// Challenge fetches the current challenge records without mutating anything.
func (f *Flow) Challenge(ctx context.Context) (client.DomainChallenge, error) {
	return f.api.Challenge(ctx, f.domain)
}

// Verify finalizes the order once the challenge records are published.
func (f *Flow) Verify(ctx context.Context) (Snapshot, error) {
	return f.mutate(ctx, ActionVerify, func(id int) error {
		_, err := f.api.FinalizeOrder(ctx, id)
		return err
	})
}

// Cancel drops the pending order.
func (f *Flow) Cancel(ctx context.Context) (Snapshot, error) {
	return f.mutate(ctx, ActionCancel, func(id int) error {
		_, err := f.api.CancelOrder(ctx, id)
		return err
	})
}

// Renew requests a new certificate for an active domain.
func (f *Flow) Renew(ctx context.Context) (Snapshot, error) {
	return f.mutate(ctx, ActionRenew, func(int) error {
		prov, err := f.api.Renew(ctx, f.domain)
		if err != nil {
			return err
		}
		if prov.Type == client.ProvisionError {
			return fmt.Errorf("renew %s: %s", f.domain, prov.Message)
		}
		return nil
	})
}

func (f *Flow) mutate(ctx context.Context, action Action, call func(domainID int) error) (Snapshot, error) {
	id, err := f.resolveID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	start := time.Now()
	if err := call(id); err != nil {
		f.logger.Debug("verification mutation failed", zap.String("domain", f.domain), zap.String("action", string(action)), zap.Error(err))
		return Snapshot{}, fmt.Errorf("%s %s: %w", action, f.domain, err)
	}
	f.logger.Debug("verification mutation", zap.String("domain", f.domain), zap.String("action", string(action)), zap.Duration("latency", time.Since(start)))
	return f.Refresh(ctx)
}

func (f *Flow) resolveID(ctx context.Context) (int, error) {
	f.mu.Lock()
	id := f.domainID
	f.mu.Unlock()
	if id != 0 {
		return id, nil
	}
	domain, err := f.api.Get(ctx, f.domain)
	if err != nil {
		return 0, fmt.Errorf("fetch domain %s: %w", f.domain, err)
	}
	f.mu.Lock()
	f.domainID = domain.ID
	f.mu.Unlock()
	return domain.ID, nil
}

// WatchOptions tunes Watch. Zero values use the poll defaults.
type WatchOptions struct {
	Interval    time.Duration
	MaxDuration time.Duration
	Store       poll.Store
	Metrics     *poll.Metrics
	Clock       poll.Clock
	OnUpdate    func(Snapshot)
}

// Watch refreshes the domain until its stage is active or failed.
func (f *Flow) Watch(ctx context.Context, opts WatchOptions) (Snapshot, poll.Result, error) {
	var onUpdate func(Snapshot, poll.State)
	if opts.OnUpdate != nil {
		onUpdate = func(s Snapshot, _ poll.State) { opts.OnUpdate(s) }
	}
	return poll.Run(ctx, poll.Options[Snapshot]{
		Resource:    "domain",
		Fetch:       f.Refresh,
		Classify:    classify,
		Interval:    opts.Interval,
		MaxDuration: opts.MaxDuration,
		Store:       opts.Store,
		Key:         f.CacheKey(),
		OnUpdate:    onUpdate,
		Metrics:     opts.Metrics,
		Logger:      f.logger,
		Clock:       opts.Clock,
	})
}

func classify(s Snapshot) poll.Decision {
	return poll.Decision{Stop: s.Stage.Terminal(), Failed: s.Stage == StageFailed, Status: string(s.Stage)}
}
