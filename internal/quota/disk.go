package quota

import "context"

// SizeFunc reports a byte count that counts towards usage.
type SizeFunc func(ctx context.Context) (int64, error)

// DiskEstimator reports usage as the sum of its sources and quota as usage
// plus the free space of the filesystem holding Dir.
type DiskEstimator struct {
	Dir     string
	Sources []SizeFunc
}

// Estimate implements Estimator.
func (d DiskEstimator) Estimate(ctx context.Context) (Estimate, error) {
	var usage int64
	for _, src := range d.Sources {
		n, err := src(ctx)
		if err != nil {
			return Estimate{}, err
		}
		usage += n
	}

	free, err := freeBytes(d.Dir)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Usage: usage, Quota: usage + free}, nil
}
