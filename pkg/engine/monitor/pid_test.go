package monitor

import (
	"testing"
	"time"
)

func newTestController(minDt time.Duration) *PidPressureController {
	return NewPidPressureController(
		0.25, 0.08, 0.02, // Kp, Ki, Kd
		100.0, // scale
		18.0,  // target free pct
		1.0,   // hysteresis pct
		20.0, 14.0, 10.0, 6.0, // band minimums
		minDt,
	)
}

func TestUrgencyDoesNotSpikeOnClockSkew(t *testing.T) {
	pid := newTestController(time.Second)
	t0 := time.Now()

	r1 := pid.Update(PressureReading{FreeBytes: 20, TotalBytes: 100, Mount: "/"}, nil, t0)
	if r1.Level != Green {
		t.Fatalf("expected Green, got %v", r1.Level)
	}
	if r1.Urgency >= 0.1 {
		t.Fatalf("urgency should be low initially, got %f", r1.Urgency)
	}

	// Same instant, slight drop to 19.9% free. With a naive derivative the
	// term would explode on dt→0; the min-dt guard must suppress it.
	r2 := pid.Update(PressureReading{FreeBytes: 199, TotalBytes: 1000, Mount: "/"}, nil, t0)
	if r2.Urgency >= 0.5 {
		t.Fatalf("urgency spiked to %f on clock skew", r2.Urgency)
	}
	if r2.DerivativeTerm != 0 {
		t.Fatalf("derivative term must be suppressed at dt=0, got %f", r2.DerivativeTerm)
	}
}

func TestSuddenDropGoesStraightToCritical(t *testing.T) {
	pid := newTestController(time.Second)
	t0 := time.Now()

	r1 := pid.Update(PressureReading{FreeBytes: 50, TotalBytes: 100, Mount: "/"}, nil, t0)
	if r1.Level != Green {
		t.Fatalf("expected Green at 50%% free, got %v", r1.Level)
	}

	// Worsening transitions skip hysteresis entirely.
	r2 := pid.Update(PressureReading{FreeBytes: 1, TotalBytes: 100, Mount: "/"}, nil, t0.Add(time.Second))
	if r2.Level != Critical {
		t.Fatalf("massive pressure spike must jump straight to Critical, got %v", r2.Level)
	}

	// Leaving Critical upward needs red_min + hysteresis = 7%.
	r3 := pid.Update(PressureReading{FreeBytes: 7, TotalBytes: 100, Mount: "/"}, nil, t0.Add(2*time.Second))
	if r3.Level != Red {
		t.Fatalf("7%% free should clear hysteresis into Red, got %v", r3.Level)
	}
}

func TestHysteresisHoldsImprovement(t *testing.T) {
	pid := newTestController(time.Second)
	t0 := time.Now()

	pid.Update(PressureReading{FreeBytes: 5, TotalBytes: 100, Mount: "/"}, nil, t0)
	if pid.Level() != Critical {
		t.Fatalf("expected Critical at 5%%, got %v", pid.Level())
	}

	// 6.5% free is inside Red's band but not past red_min + H.
	r := pid.Update(PressureReading{FreeBytes: 65, TotalBytes: 1000, Mount: "/"}, nil, t0.Add(time.Second))
	if r.Level != Critical {
		t.Fatalf("improvement below hysteresis must hold the level, got %v", r.Level)
	}
}

func TestEscalationThroughLevels(t *testing.T) {
	pid := newTestController(2 * time.Second)
	t0 := time.Now()

	steps := []struct {
		freePct uint64
		level   PressureLevel
	}{
		{50, Green},
		{16, Yellow},
		{12, Orange},
		{7, Red},
		{3, Critical},
	}
	for i, step := range steps {
		r := pid.Update(
			PressureReading{FreeBytes: step.freePct, TotalBytes: 100, Mount: "/"},
			nil,
			t0.Add(time.Duration(i)*time.Second),
		)
		if r.Level != step.level {
			t.Fatalf("step %d: expected %v at %d%% free, got %v", i, step.level, step.freePct, r.Level)
		}
	}
}

func TestUrgencyMonotoneUnderPressure(t *testing.T) {
	pid := newTestController(time.Millisecond)
	t0 := time.Now()

	var prev float64
	free := uint64(18)
	for i := 0; i < 10; i++ {
		r := pid.Update(
			PressureReading{FreeBytes: free, TotalBytes: 100, Mount: "/"},
			nil,
			t0.Add(time.Duration(i)*time.Second),
		)
		if i > 1 && r.Urgency+1e-9 < prev {
			t.Fatalf("urgency regressed while pressure worsened: %f < %f", r.Urgency, prev)
		}
		prev = r.Urgency
		if free >= 2 {
			free -= 2
		}
	}
	if prev <= 0 {
		t.Fatal("sustained under-target pressure must build urgency")
	}
}

func TestImminentTTEBiasesUrgency(t *testing.T) {
	pid := newTestController(time.Millisecond)
	t0 := time.Now()
	reading := PressureReading{FreeBytes: 19, TotalBytes: 100, Mount: "/"}

	without := pid.Update(reading, nil, t0)

	pid2 := newTestController(time.Millisecond)
	tte := 60.0
	rate := RateEstimate{BytesPerSec: 1000, Confidence: 0.9, SampleCount: 10, TimeToThresholdSeconds: &tte}
	with := pid2.Update(reading, &rate, t0)

	if with.Urgency <= without.Urgency {
		t.Fatalf("imminent TTE must bias urgency upward: %f vs %f", with.Urgency, without.Urgency)
	}
}

func TestIntegralAntiWindup(t *testing.T) {
	pid := newTestController(time.Millisecond)
	t0 := time.Now()

	// Hold deep under target for a long simulated stretch; the integral
	// term alone must never exceed the output scale.
	for i := 0; i < 10_000; i++ {
		r := pid.Update(
			PressureReading{FreeBytes: 1, TotalBytes: 100, Mount: "/"},
			nil,
			t0.Add(time.Duration(i)*time.Second),
		)
		if r.IntegralTerm > 100.0+1e-9 {
			t.Fatalf("integral term escaped anti-windup clamp: %f", r.IntegralTerm)
		}
		if r.Urgency > 1.0 {
			t.Fatalf("urgency must stay in [0,1], got %f", r.Urgency)
		}
	}
}
