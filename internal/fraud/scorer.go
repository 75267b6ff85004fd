package fraud

import "fmt"

var gradeDelta = map[string]int{"A": -5, "B": 0, "C": 8, "D": 15}

var (
	highRiskTypes     = map[TransactionType]bool{TypeP2PSend: true, TypeCashout: true}
	mediumRiskTypes   = map[TransactionType]bool{TypeCashin: true, TypeMerchPay: true}
	confirmedStatuses = map[TransactionStatus]bool{StatusChargeback: true}
	softRiskStatuses  = map[TransactionStatus]bool{StatusReversed: true, StatusDeclined: true}
)

const (
	cardNotPresentDelta = 18
	geoMismatchDelta    = 22
	highRiskTypeDelta   = 14
	mediumRiskTypeDelta = 7
	confirmedDelta      = 35
	softStatusDelta     = 8
	highAmountDelta     = 25
	midAmountDelta      = 12
	probeDelta          = 18

	highAmountThreshold = 800.0
	midAmountThreshold  = 300.0
	probeMaxAmount      = 2.0

	criticalThreshold = 85
	highThreshold     = 60
	mediumThreshold   = 35
)

// IsHighRiskType reports whether t carries elevated fraud exposure
func IsHighRiskType(t TransactionType) bool {
	return highRiskTypes[t]
}

// ScoreRisk computes the additive risk score of a transaction.
// Reasons are appended in evaluation order. It never fails; absent fields take their defaults.
func ScoreRisk(txn *Transaction) RiskAssessment {
	score := 0
	reasons := make([]string, 0, 6)

	grade := txn.EffectiveGrade()
	score += gradeDelta[grade]
	if grade == "C" || grade == "D" {
		reasons = append(reasons, "Lower customer grade: "+grade)
	}

	if txn.CardNotPresent() {
		score += cardNotPresentDelta
		reasons = append(reasons, "Card-not-present")
	}

	if txn.GeoMismatch() {
		score += geoMismatchDelta
		reasons = append(reasons, "Geo mismatch vs home")
	}

	ttype := txn.EffectiveType()
	switch {
	case highRiskTypes[ttype]:
		score += highRiskTypeDelta
		reasons = append(reasons, fmt.Sprintf("High-risk transaction type: %s", ttype))
	case mediumRiskTypes[ttype]:
		score += mediumRiskTypeDelta
		reasons = append(reasons, fmt.Sprintf("Medium-risk transaction type: %s", ttype))
	}

	status := txn.EffectiveStatus()
	switch {
	case confirmedStatuses[status]:
		score += confirmedDelta
		reasons = append(reasons, fmt.Sprintf("Fraud-confirming status: %s", status))
	case softRiskStatuses[status]:
		score += softStatusDelta
		reasons = append(reasons, fmt.Sprintf("Suspicious status: %s", status))
	}

	// tiers are exclusive, only the highest applies
	switch {
	case txn.Amount >= highAmountThreshold:
		score += highAmountDelta
		reasons = append(reasons, "High amount >= 800")
	case txn.Amount >= midAmountThreshold:
		score += midAmountDelta
		reasons = append(reasons, "Amount >= 300")
	}

	if ttype == TypeAirtimeRecharge && txn.Amount <= probeMaxAmount && txn.CardNotPresent() {
		score += probeDelta
		reasons = append(reasons, "Probe-like small airtime recharge")
	}

	return RiskAssessment{
		Score:   score,
		Level:   LevelForScore(score),
		Reasons: reasons,
	}
}

// LevelForScore maps a score onto its risk level
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= criticalThreshold:
		return RiskLevelCritical
	case score >= highThreshold:
		return RiskLevelHigh
	case score >= mediumThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
