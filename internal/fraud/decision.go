package fraud

// Recommended actions attached to each decision rule
const (
	ActionNone            = "No action"
	ActionCriticalBlock   = "Block transaction + lock account + step-up verification"
	ActionHighReview      = "Queue for manual review + step-up verification"
	ActionChargebackBlock = "Confirmed fraud signal (chargeback): block + lock + investigation"
	ActionVelocityBlock   = "High-confidence fraud: CNP + geo mismatch + velocity"
	ActionBaselineBlock   = "High-confidence fraud: amount extremely above baseline"
)

const (
	velocityEscalation = 12
	baselineEscalation = 6.0
)

type decisionRule struct {
	name    string
	applies func(txn *Transaction, risk RiskAssessment, ev *Evidence) bool
	outcome Decision
}

// decisionRules run top to bottom. Every matching rule overwrites the verdict
// of the ones before it, so the last match wins.
var decisionRules = []decisionRule{
	{
		name: "critical_risk",
		applies: func(_ *Transaction, risk RiskAssessment, _ *Evidence) bool {
			return risk.Level == RiskLevelCritical
		},
		outcome: Decision{Outcome: DecisionBlock, RecommendedAction: ActionCriticalBlock},
	},
	{
		name: "high_risk",
		applies: func(_ *Transaction, risk RiskAssessment, _ *Evidence) bool {
			return risk.Level == RiskLevelHigh
		},
		outcome: Decision{Outcome: DecisionReview, RecommendedAction: ActionHighReview},
	},
	{
		name: "chargeback",
		applies: func(txn *Transaction, _ RiskAssessment, _ *Evidence) bool {
			return txn.EffectiveStatus() == StatusChargeback
		},
		outcome: Decision{Outcome: DecisionBlock, RecommendedAction: ActionChargebackBlock},
	},
	{
		name: "cnp_geo_velocity",
		applies: func(txn *Transaction, _ RiskAssessment, ev *Evidence) bool {
			return txn.CardNotPresent() && txn.GeoMismatch() && ev.VelocityProxy >= velocityEscalation
		},
		outcome: Decision{Outcome: DecisionBlock, RecommendedAction: ActionVelocityBlock},
	},
	{
		name: "baseline_deviation",
		applies: func(_ *Transaction, _ RiskAssessment, ev *Evidence) bool {
			return ev.AmountVsBaselineRatio != nil && *ev.AmountVsBaselineRatio >= baselineEscalation
		},
		outcome: Decision{Outcome: DecisionBlock, RecommendedAction: ActionBaselineBlock},
	},
}

// Decide applies every decision rule in order and returns the final verdict.
func Decide(txn *Transaction, risk RiskAssessment, ev *Evidence) Decision {
	decision := Decision{Outcome: DecisionApprove, RecommendedAction: ActionNone}
	for _, rule := range decisionRules {
		if rule.applies(txn, risk, ev) {
			decision = rule.outcome
		}
	}
	return decision
}

// MatchedRules lists the names of the rules that fired, in evaluation order.
func MatchedRules(txn *Transaction, risk RiskAssessment, ev *Evidence) []string {
	var names []string
	for _, rule := range decisionRules {
		if rule.applies(txn, risk, ev) {
			names = append(names, rule.name)
		}
	}
	return names
}
