package monitor

// PredictiveConfig tunes the horizon thresholds for acting on a rate
// estimate before the pressure controller reacts.
type PredictiveConfig struct {
	Enabled               bool
	ActionHorizonMinutes  float64
	WarningHorizonMinutes float64
	MinConfidence         float64
	MinSamples            uint32
	ImminentDangerMinutes float64
	CriticalDangerMinutes float64
}

// DefaultPredictiveConfig mirrors the daemon defaults.
func DefaultPredictiveConfig() PredictiveConfig {
	return PredictiveConfig{
		Enabled:               true,
		ActionHorizonMinutes:  30,
		WarningHorizonMinutes: 60,
		MinConfidence:         0.3,
		MinSamples:            3,
		ImminentDangerMinutes: 5,
		CriticalDangerMinutes: 2,
	}
}

// PredictedAction is the escalation ladder derived from TTE.
type PredictedAction int

const (
	ActionNone PredictedAction = iota
	ActionWarning
	ActionActNow
	ActionImminent
	ActionCritical
)

// Severity orders actions; higher is worse.
func (a PredictedAction) Severity() int { return int(a) }

func (a PredictedAction) String() string {
	switch a {
	case ActionWarning:
		return "warning"
	case ActionActNow:
		return "act_now"
	case ActionImminent:
		return "imminent"
	case ActionCritical:
		return "critical"
	default:
		return "none"
	}
}

// PredictiveActionPolicy maps rate estimates to early actions.
type PredictiveActionPolicy struct {
	cfg PredictiveConfig
}

func NewPredictiveActionPolicy(cfg PredictiveConfig) *PredictiveActionPolicy {
	return &PredictiveActionPolicy{cfg: cfg}
}

// Evaluate returns the action warranted by the estimate. Estimates that are
// disabled, unstable, or not predicting exhaustion yield ActionNone.
func (p *PredictiveActionPolicy) Evaluate(estimate RateEstimate, currentFreePct float64, mount string) PredictedAction {
	_ = currentFreePct
	_ = mount
	if !p.cfg.Enabled {
		return ActionNone
	}
	if estimate.SampleCount < p.cfg.MinSamples || estimate.Confidence < p.cfg.MinConfidence {
		return ActionNone
	}
	if estimate.TimeToThresholdSeconds == nil {
		return ActionNone
	}
	minutes := *estimate.TimeToThresholdSeconds / 60.0
	switch {
	case minutes < p.cfg.CriticalDangerMinutes:
		return ActionCritical
	case minutes < p.cfg.ImminentDangerMinutes:
		return ActionImminent
	case minutes < p.cfg.ActionHorizonMinutes:
		return ActionActNow
	case minutes < p.cfg.WarningHorizonMinutes:
		return ActionWarning
	default:
		return ActionNone
	}
}
