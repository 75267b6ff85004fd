package fraud

// Event and feed frame types
const (
	EventTransactionScored = "fraud.transaction.scored"
	EventCaseOpened        = "fraud.case.opened"

	FeedTypeTransaction = "txn"
	FeedTypeAlert       = "alert"
)

// TransactionScoredEvent is published for every processed transaction
type TransactionScoredEvent struct {
	Type      string         `json:"type"`
	Txn       Transaction    `json:"txn"`
	Risk      RiskAssessment `json:"risk"`
	LatencyMS int64          `json:"latency_ms"`
}

// CaseOpenedEvent is published when a transaction opens an investigation case
type CaseOpenedEvent struct {
	Type              string          `json:"type"`
	CaseID            string          `json:"case_id"`
	TxnID             string          `json:"txn_id"`
	AccountID         string          `json:"account_id"`
	Decision          DecisionOutcome `json:"decision"`
	RecommendedAction string          `json:"recommended_action"`
	RiskLevel         RiskLevel       `json:"risk_level"`
	RiskScore         int             `json:"risk_score"`
	ReportMD          string          `json:"report_md"`
	ReportURL         string          `json:"report_url"`
	LatencyMS         int64           `json:"latency_ms"`
}

// ReportURL is the API path an analyst downloads a case report from
func ReportURL(caseID string) string {
	return "/api/v1/fraud/cases/" + caseID + "/report?download=1"
}

func newTransactionScoredEvent(txn *Transaction, risk RiskAssessment, latencyMS int64) TransactionScoredEvent {
	return TransactionScoredEvent{
		Type:      FeedTypeTransaction,
		Txn:       *txn,
		Risk:      risk,
		LatencyMS: latencyMS,
	}
}

func newCaseOpenedEvent(c *Case, latencyMS int64) CaseOpenedEvent {
	return CaseOpenedEvent{
		Type:              FeedTypeAlert,
		CaseID:            c.CaseID,
		TxnID:             c.Transaction.TxnID,
		AccountID:         c.Transaction.AccountID,
		Decision:          c.Decision.Outcome,
		RecommendedAction: c.Decision.RecommendedAction,
		RiskLevel:         c.Risk.Level,
		RiskScore:         c.Risk.Score,
		ReportMD:          c.ReportMD,
		ReportURL:         ReportURL(c.CaseID),
		LatencyMS:         latencyMS,
	}
}
