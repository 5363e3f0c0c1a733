// Package quota estimates storage use and guards writes against the quota.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// FallbackQuota is assumed when no platform estimate is available.
	FallbackQuota int64 = 50_000_000
	// DefaultPersistThreshold is the usage ratio above which durable storage
	// is requested.
	DefaultPersistThreshold = 0.9
)

var (
	// ErrQuotaExceeded means a write would take usage over the quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnsupported means the platform cannot estimate storage.
	ErrUnsupported = errors.New("storage estimate unsupported")
)

// Estimate is a storage usage snapshot in bytes.
type Estimate struct {
	Usage int64 `json:"usage"`
	Quota int64 `json:"quota"`
}

// Ratio returns usage as a fraction of quota.
func (e Estimate) Ratio() float64 {
	if e.Quota <= 0 {
		return 0
	}
	return float64(e.Usage) / float64(e.Quota)
}

// Estimator reports platform storage usage.
type Estimator interface {
	Estimate(ctx context.Context) (Estimate, error)
}

// Persister asks the storage layer for eviction-resistant durability.
type Persister interface {
	RequestPersistence(ctx context.Context) (bool, error)
}

// Advisor wraps an Estimator with fallbacks and the persistence policy.
type Advisor struct {
	estimator Estimator
	persister Persister
	fallback  int64
	threshold float64
	logger    *slog.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithFallbackQuota overrides FallbackQuota.
func WithFallbackQuota(n int64) Option {
	return func(a *Advisor) {
		if n > 0 {
			a.fallback = n
		}
	}
}

// WithPersistThreshold overrides DefaultPersistThreshold.
func WithPersistThreshold(ratio float64) Option {
	return func(a *Advisor) {
		if ratio > 0 && ratio <= 1 {
			a.threshold = ratio
		}
	}
}

// NewAdvisor creates an Advisor. Either dependency may be nil.
func NewAdvisor(estimator Estimator, persister Persister, opts ...Option) *Advisor {
	a := &Advisor{
		estimator: estimator,
		persister: persister,
		fallback:  FallbackQuota,
		threshold: DefaultPersistThreshold,
		logger:    slog.Default().With("component", "quota"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FallbackQuota returns the quota assumed without an estimate.
func (a *Advisor) FallbackQuota() int64 {
	return a.fallback
}

// EstimateUsage returns the platform estimate, or zero usage against the
// fallback quota when the estimate is missing, failing, or reports no quota.
func (a *Advisor) EstimateUsage(ctx context.Context) Estimate {
	fallback := Estimate{Usage: 0, Quota: a.fallback}
	if a.estimator == nil {
		return fallback
	}
	est, err := a.estimator.Estimate(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			a.logger.Warn("storage estimate failed", "error", err)
		}
		return fallback
	}
	if est.Quota <= 0 {
		return fallback
	}
	return est
}

// MaybeRequestPersistence requests durable storage once ratio passes the
// threshold. It reports whether persistence was granted; failures are only
// logged.
func (a *Advisor) MaybeRequestPersistence(ctx context.Context, ratio float64) bool {
	if ratio <= a.threshold || a.persister == nil {
		return false
	}
	granted, err := a.persister.RequestPersistence(ctx)
	if err != nil {
		a.logger.Warn("persistent storage request failed", "ratio", ratio, "error", err)
		return false
	}
	if !granted {
		a.logger.Info("persistent storage request denied", "ratio", ratio)
	}
	return granted
}

// RequestPersistence asks for durable storage regardless of usage, as when
// a user opts in explicitly.
func (a *Advisor) RequestPersistence(ctx context.Context) (bool, error) {
	if a.persister == nil {
		return false, ErrUnsupported
	}
	return a.persister.RequestPersistence(ctx)
}

// CheckWrite fails with ErrQuotaExceeded when incoming bytes would not fit.
func CheckWrite(used, incoming, quota int64) error {
	if used+incoming > quota {
		return fmt.Errorf("%w: %d + %d bytes exceeds %d", ErrQuotaExceeded, used, incoming, quota)
	}
	return nil
}
