package quota

import (
	"context"
	"errors"
	"testing"
)

type fixedEstimator struct {
	est Estimate
	err error
}

func (f fixedEstimator) Estimate(context.Context) (Estimate, error) { return f.est, f.err }

type recordingPersister struct {
	calls   int
	granted bool
	err     error
}

func (p *recordingPersister) RequestPersistence(context.Context) (bool, error) {
	p.calls++
	return p.granted, p.err
}

func TestEstimateUsageFallbacks(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		est  Estimator
		want Estimate
	}{
		{"no estimator", nil, Estimate{Quota: FallbackQuota}},
		{"error", fixedEstimator{err: errors.New("boom")}, Estimate{Quota: FallbackQuota}},
		{"unsupported", fixedEstimator{err: ErrUnsupported}, Estimate{Quota: FallbackQuota}},
		{"zero quota", fixedEstimator{est: Estimate{Usage: 10}}, Estimate{Quota: FallbackQuota}},
		{"platform", fixedEstimator{est: Estimate{Usage: 10, Quota: 100}}, Estimate{Usage: 10, Quota: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewAdvisor(tc.est, nil).EstimateUsage(ctx); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}

	a := NewAdvisor(nil, nil, WithFallbackQuota(1234))
	if got := a.EstimateUsage(ctx).Quota; got != 1234 {
		t.Fatalf("expected configured fallback, got %d", got)
	}
}

func TestPersistenceRequestedAboveThreshold(t *testing.T) {
	ctx := context.Background()

	p := &recordingPersister{granted: true}
	a := NewAdvisor(fixedEstimator{est: Estimate{Usage: 95, Quota: 100}}, p)
	est := a.EstimateUsage(ctx)
	if !a.MaybeRequestPersistence(ctx, est.Ratio()) {
		t.Fatalf("expected persistence to be granted at 95%%")
	}
	if p.calls != 1 {
		t.Fatalf("expected one request, got %d", p.calls)
	}

	p = &recordingPersister{granted: true}
	a = NewAdvisor(fixedEstimator{est: Estimate{Usage: 10, Quota: 100}}, p)
	if a.MaybeRequestPersistence(ctx, a.EstimateUsage(ctx).Ratio()) {
		t.Fatalf("expected no persistence at 10%%")
	}
	if p.calls != 0 {
		t.Fatalf("expected no request, got %d", p.calls)
	}

	// Exactly at the threshold is not above it.
	if NewAdvisor(nil, p).MaybeRequestPersistence(ctx, 0.9) {
		t.Fatalf("expected no persistence at exactly 90%%")
	}
}

func TestPersistenceFailureIsAdvisory(t *testing.T) {
	p := &recordingPersister{err: errors.New("denied")}
	if NewAdvisor(nil, p).MaybeRequestPersistence(context.Background(), 0.99) {
		t.Fatalf("expected false when the request fails")
	}
	if p.calls != 1 {
		t.Fatalf("expected one request, got %d", p.calls)
	}
}

func TestCheckWrite(t *testing.T) {
	if err := CheckWrite(40, 10, 50); err != nil {
		t.Fatalf("expected write to fit exactly, got %v", err)
	}
	if err := CheckWrite(40, 11, 50); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestDiskEstimator(t *testing.T) {
	d := DiskEstimator{
		Dir: t.TempDir(),
		Sources: []SizeFunc{
			func(context.Context) (int64, error) { return 100, nil },
			func(context.Context) (int64, error) { return 23, nil },
		},
	}
	est, err := d.Estimate(context.Background())
	if errors.Is(err, ErrUnsupported) {
		t.Skip("free space not available on this platform")
	}
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.Usage != 123 {
		t.Fatalf("expected usage 123, got %d", est.Usage)
	}
	if est.Quota < est.Usage {
		t.Fatalf("quota %d below usage %d", est.Quota, est.Usage)
	}

	failing := DiskEstimator{Dir: t.TempDir(), Sources: []SizeFunc{
		func(context.Context) (int64, error) { return 0, errors.New("db closed") },
	}}
	if _, err := failing.Estimate(context.Background()); err == nil {
		t.Fatalf("expected source error")
	}
}
