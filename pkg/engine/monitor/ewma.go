// Package monitor contains the pressure-sensing half of the decision plane:
// the EWMA rate estimator, the PID pressure controller, the predictive action
// policy and the adaptive calibration guard.
package monitor

import (
	"math"
	"time"
)

// RateEstimate is the smoothed consumption estimate for one mount.
// BytesPerSec is signed: positive means the filesystem is filling.
type RateEstimate struct {
	BytesPerSec float64 `json:"bytes_per_sec"`
	Confidence  float64 `json:"confidence"`
	SampleCount uint32  `json:"sample_count"`
	// TimeToThresholdSeconds is nil when the rate is non-positive or the
	// estimate has not stabilized.
	TimeToThresholdSeconds *float64 `json:"time_to_threshold_seconds,omitempty"`
}

// DiskRateEstimator maintains a primary EWMA of the fill rate and a slower
// secondary EWMA used as a variance proxy for the confidence signal.
type DiskRateEstimator struct {
	alpha         float64
	beta          float64
	minConfidence float64
	minSamples    uint32

	rate     float64
	variance float64
	samples  uint32

	lastFree uint64
	lastAt   time.Time
	primed   bool

	last RateEstimate
}

// NewDiskRateEstimator builds an estimator. alpha is the primary smoothing
// factor, beta (< alpha) the slower variance smoothing, minConfidence the
// floor below which no TTE is emitted, minSamples the warm-up length.
func NewDiskRateEstimator(alpha, beta, minConfidence float64, minSamples uint32) *DiskRateEstimator {
	if minSamples < 3 {
		minSamples = 3
	}
	return &DiskRateEstimator{
		alpha:         alpha,
		beta:          beta,
		minConfidence: minConfidence,
		minSamples:    minSamples,
	}
}

// Update folds one capacity sample into the estimate. thresholdBytes is the
// free-space level whose crossing TTE predicts. Non-monotonic timestamps and
// zero-dt samples return the previous estimate unchanged.
func (e *DiskRateEstimator) Update(freeBytes uint64, observedAt time.Time, thresholdBytes uint64) RateEstimate {
	if !e.primed {
		e.lastFree = freeBytes
		e.lastAt = observedAt
		e.primed = true
		e.samples = 1
		e.last = RateEstimate{SampleCount: 1}
		return e.last
	}

	dt := observedAt.Sub(e.lastAt).Seconds()
	if dt <= 0 {
		return e.last
	}

	// Positive instantaneous rate = free space shrinking.
	instant := (float64(e.lastFree) - float64(freeBytes)) / dt
	e.lastFree = freeBytes
	e.lastAt = observedAt
	e.samples++

	if e.samples == 2 {
		e.rate = instant
	} else {
		e.rate = e.alpha*instant + (1-e.alpha)*e.rate
	}
	deviation := instant - e.rate
	e.variance = e.beta*deviation*deviation + (1-e.beta)*e.variance

	estimate := RateEstimate{
		BytesPerSec: e.rate,
		SampleCount: e.samples,
		Confidence:  e.confidence(),
	}

	if e.rate > 0 && estimate.Confidence >= e.minConfidence && freeBytes > thresholdBytes {
		tte := (float64(freeBytes) - float64(thresholdBytes)) / e.rate
		estimate.TimeToThresholdSeconds = &tte
	}

	e.last = estimate
	return estimate
}

// confidence grows with sample count and shrinks with relative variance.
// It stays at zero until the warm-up threshold is reached.
func (e *DiskRateEstimator) confidence() float64 {
	if e.samples < e.minSamples {
		return 0
	}
	saturation := 1 - math.Exp(-float64(e.samples)/10.0)
	stability := 1.0
	if e.rate != 0 || e.variance != 0 {
		stability = 1 / (1 + math.Sqrt(e.variance)/(math.Abs(e.rate)+1))
	}
	c := saturation * stability
	if c > 1 {
		c = 1
	}
	return c
}

// Last returns the most recent estimate without folding a new sample.
func (e *DiskRateEstimator) Last() RateEstimate { return e.last }
