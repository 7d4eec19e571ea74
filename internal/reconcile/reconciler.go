package reconcile

import (
	"log/slog"
	"time"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/order"
)

// Reconciler merges remote batches into local collections.
//
// Thread-safety: Reconcile may be called from several goroutines, but the
// caller must not feed two concurrent calls mutations of the same
// collection. The only shared state is the validation Limiter.
type Reconciler struct {
	cfg     Config
	limiter *Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for validation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithClock sets the time source of the validation limiter.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler. Each Reconciler owns its own Limiter.
func New(cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.limiter = NewLimiter(cfg.ValidationWindow, r.now)
	return r
}

// Config returns the reconciler's configuration.
func (r *Reconciler) Config() Config {
	return r.cfg
}

// Stats describes a single reconciliation.
type Stats struct {
	RemoteAccepted    int  `json:"remote_accepted"`
	RemoteDiscarded   int  `json:"remote_discarded"`
	DuplicatesIgnored int  `json:"duplicates_ignored"`
	LocalCarried      int  `json:"local_carried"`
	IndicesRepaired   int  `json:"indices_repaired"`
	Validated         bool `json:"validated"`
}

// Reconcile merges remote into local and returns the new ordered
// collection. The error is always nil unless the configuration asks for
// validation failures to be returned, in which case it is an
// *order.InvalidIndexError and the repaired collection is still returned.
func (r *Reconciler) Reconcile(local, remote []element.Element, editing element.EditingState) ([]element.Element, error) {
	out, _, err := r.ReconcileWithStats(local, remote, editing)
	return out, err
}

// ReconcileWithStats is Reconcile that also reports what happened.
func (r *Reconciler) ReconcileWithStats(local, remote []element.Element, editing element.EditingState) ([]element.Element, Stats, error) {
	var stats Stats

	localByID := element.ByID(local)
	placed := make(map[string]bool, len(local)+len(remote))
	merged := make([]element.Element, 0, len(local)+len(remote))

	for _, rem := range remote {
		if placed[rem.ID] {
			stats.DuplicatesIgnored++
			continue
		}
		placed[rem.ID] = true

		var candidate *element.Element
		if l, ok := localByID[rem.ID]; ok {
			candidate = &l
		}
		if ShouldDiscardRemote(editing, candidate, rem) {
			merged = append(merged, candidate.Clone())
			stats.RemoteDiscarded++
			continue
		}
		merged = append(merged, rem.Clone())
		stats.RemoteAccepted++
	}

	for _, l := range local {
		if placed[l.ID] {
			continue
		}
		placed[l.ID] = true
		merged = append(merged, l.Clone())
		stats.LocalCarried++
	}

	ordered := order.OrderByIndex(merged)
	repaired, n := order.SyncInvalidIndices(ordered)
	stats.IndicesRepaired = n

	if n > 0 {
		r.logger.Debug("repaired fractional indices",
			"repaired", n,
			"elements", len(repaired),
		)
	}

	if !r.cfg.ValidateIndices {
		return repaired, stats, nil
	}
	if !r.limiter.Allow() {
		r.logger.Debug("index validation throttled",
			"dropped", r.limiter.Dropped(),
			"window", r.cfg.ValidationWindow,
		)
		return repaired, stats, nil
	}
	stats.Validated = true

	err := order.ValidateIndices(repaired, order.ValidateOptions{
		ShouldThrow:      r.cfg.ShouldThrow,
		IncludeBoundText: r.cfg.IncludeBoundText,
		Context:          &order.ReconciliationContext{Local: local, Remote: remote},
		Logger:           r.logger,
	})
	return repaired, stats, err
}
