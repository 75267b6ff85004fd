package fraud

import "fmt"

const (
	rationaleBaselineRatio = 3.0
	rationaleReuseCount    = 6
)

// InvestigatorRationale builds the analyst-facing narrative for a case.
// Every applicable statement is included, always in the same order.
func InvestigatorRationale(txn *Transaction, risk RiskAssessment, ev *Evidence) []string {
	out := []string{fmt.Sprintf("Risk %s (score=%d).", risk.Level, risk.Score)}

	if txn.GeoMismatch() {
		out = append(out, "Geo mismatch relative to account profile.")
	}
	if ev.AmountVsBaselineRatio != nil && *ev.AmountVsBaselineRatio >= rationaleBaselineRatio {
		out = append(out, "Amount significantly above account baseline (>=3x).")
	}
	if ev.VelocityProxy >= velocityEscalation {
		out = append(out, "High velocity behavior consistent with burst activity.")
	}
	if IsHighRiskType(txn.EffectiveType()) && txn.CardNotPresent() {
		out = append(out, "High-risk type combined with CNP channel increases fraud likelihood.")
	}
	if ev.TopReuseCount() >= rationaleReuseCount {
		out = append(out, "IP/device reuse pattern across multiple accounts is suspicious.")
	}
	if txn.EffectiveStatus() == StatusChargeback {
		out = append(out, "Chargeback observed (strong fraud confirmation signal).")
	}

	return out
}
