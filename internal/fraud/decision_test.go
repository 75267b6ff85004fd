package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ratio(v float64) *float64 { return &v }

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Transaction)
		level    RiskLevel
		evidence Evidence
		want     Decision
		rules    []string
	}{
		{
			name:  "nothing fires",
			level: RiskLevelMedium,
			want:  Decision{Outcome: DecisionApprove, RecommendedAction: ActionNone},
		},
		{
			name:  "critical blocks",
			level: RiskLevelCritical,
			want:  Decision{Outcome: DecisionBlock, RecommendedAction: ActionCriticalBlock},
			rules: []string{"critical_risk"},
		},
		{
			name:  "high reviews",
			level: RiskLevelHigh,
			want:  Decision{Outcome: DecisionReview, RecommendedAction: ActionHighReview},
			rules: []string{"high_risk"},
		},
		{
			name:   "chargeback overrides high",
			mutate: func(t *Transaction) { t.Status = StatusChargeback },
			level:  RiskLevelHigh,
			want:   Decision{Outcome: DecisionBlock, RecommendedAction: ActionChargebackBlock},
			rules:  []string{"high_risk", "chargeback"},
		},
		{
			name: "cnp geo velocity",
			mutate: func(t *Transaction) {
				t.Channel = ChannelCardNotPresent
				t.Country = "GB"
			},
			level:    RiskLevelHigh,
			evidence: Evidence{VelocityProxy: 12},
			want:     Decision{Outcome: DecisionBlock, RecommendedAction: ActionVelocityBlock},
			rules:    []string{"high_risk", "cnp_geo_velocity"},
		},
		{
			name: "velocity below threshold keeps review",
			mutate: func(t *Transaction) {
				t.Channel = ChannelCardNotPresent
				t.Country = "GB"
			},
			level:    RiskLevelHigh,
			evidence: Evidence{VelocityProxy: 11},
			want:     Decision{Outcome: DecisionReview, RecommendedAction: ActionHighReview},
			rules:    []string{"high_risk"},
		},
		{
			name:     "baseline deviation is the last word",
			mutate:   func(t *Transaction) { t.Status = StatusChargeback },
			level:    RiskLevelCritical,
			evidence: Evidence{AmountVsBaselineRatio: ratio(6)},
			want:     Decision{Outcome: DecisionBlock, RecommendedAction: ActionBaselineBlock},
			rules:    []string{"critical_risk", "chargeback", "baseline_deviation"},
		},
		{
			name:     "nil ratio never matches",
			level:    RiskLevelMedium,
			evidence: Evidence{AmountVsBaselineRatio: nil},
			want:     Decision{Outcome: DecisionApprove, RecommendedAction: ActionNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := baseTxn()
			if tt.mutate != nil {
				tt.mutate(&txn)
			}
			risk := RiskAssessment{Level: tt.level}

			assert.Equal(t, tt.want, Decide(&txn, risk, &tt.evidence))
			assert.Equal(t, tt.rules, MatchedRules(&txn, risk, &tt.evidence))
		})
	}
}
