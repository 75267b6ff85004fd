package fraud

import (
	"time"
)

// Channel says whether the card was physically present
type Channel string

const (
	ChannelCardPresent    Channel = "card_present"
	ChannelCardNotPresent Channel = "card_not_present"
)

// TransactionType is the wallet operation being performed
type TransactionType string

const (
	TypeP2PSend         TransactionType = "P2P_SEND"
	TypeCashout         TransactionType = "CASHOUT"
	TypeCashin          TransactionType = "CASHIN"
	TypeMerchPay        TransactionType = "MERCHPAY"
	TypeAirtimeRecharge TransactionType = "AIRTIME_RECHARGE"
	TypeDSTVPayment     TransactionType = "DSTV_PAYMENT"
)

// TransactionStatus is the settlement outcome reported by the network
type TransactionStatus string

const (
	StatusApproved   TransactionStatus = "approved"
	StatusDeclined   TransactionStatus = "declined"
	StatusReversed   TransactionStatus = "reversed"
	StatusChargeback TransactionStatus = "chargeback"
)

// Defaults applied when the feed omits a field
const (
	DefaultGrade  = "B"
	DefaultType   = TypeMerchPay
	DefaultStatus = StatusApproved
)

// RiskLevel represents the severity bucket of a risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Investigate reports whether the level opens a case.
func (l RiskLevel) Investigate() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}

// DecisionOutcome is the final verdict on an investigated transaction
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "APPROVE"
	DecisionReview  DecisionOutcome = "REVIEW"
	DecisionBlock   DecisionOutcome = "BLOCK"
)

// Transaction is a single wallet or card movement as received from the feed
type Transaction struct {
	TxnID         string            `json:"txn_id" validate:"required,max=32"`
	Timestamp     time.Time         `json:"ts" validate:"required,not_future"`
	AccountID     string            `json:"account_id" validate:"required,max=16"`
	CustomerGrade string            `json:"customer_grade,omitempty" validate:"omitempty,customer_grade"`
	DeviceID      string            `json:"device_id" validate:"required,max=64"`
	IPAddress     string            `json:"ip_address" validate:"required,ip"`
	Merchant      string            `json:"merchant" validate:"max=128"`
	MCC           string            `json:"mcc" validate:"max=16"`
	Amount        float64           `json:"amount" validate:"gte=0"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	Country       string            `json:"country" validate:"required,max=8"`
	HomeCountry   string            `json:"home_country" validate:"max=8"`
	Channel       Channel           `json:"channel" validate:"required,channel"`
	Type          TransactionType   `json:"transaction_type,omitempty" validate:"omitempty,transaction_type"`
	Status        TransactionStatus `json:"transaction_status,omitempty" validate:"omitempty,transaction_status"`
}

// EffectiveGrade returns the customer grade, defaulting to B
func (t *Transaction) EffectiveGrade() string {
	if t.CustomerGrade == "" {
		return DefaultGrade
	}
	return t.CustomerGrade
}

// EffectiveType returns the transaction type, defaulting to MERCHPAY
func (t *Transaction) EffectiveType() TransactionType {
	if t.Type == "" {
		return DefaultType
	}
	return t.Type
}

// EffectiveStatus returns the transaction status, defaulting to approved
func (t *Transaction) EffectiveStatus() TransactionStatus {
	if t.Status == "" {
		return DefaultStatus
	}
	return t.Status
}

// GeoMismatch reports whether the transaction country differs from the account's home country
func (t *Transaction) GeoMismatch() bool {
	return t.Country != t.HomeCountry
}

// CardNotPresent reports whether the channel is card-not-present
func (t *Transaction) CardNotPresent() bool {
	return t.Channel == ChannelCardNotPresent
}

// RiskAssessment is the immutable output of the risk scorer
type RiskAssessment struct {
	Score   int       `json:"risk_score"`
	Level   RiskLevel `json:"risk_level"`
	Reasons []string  `json:"reasons"`
}

// AccountCount pairs an account with the number of times it was seen
type AccountCount struct {
	AccountID string `json:"account_id"`
	Count     int    `json:"count"`
}

// Evidence summarises the account history and device/IP reuse around a transaction
type Evidence struct {
	RiskScore   int       `json:"risk_score"`
	RiskLevel   RiskLevel `json:"risk_level"`
	RiskReasons []string  `json:"risk_reasons"`

	RecentAccountTxnCount int `json:"recent_account_txn_count"`
	ReuseSampleCount      int `json:"reuse_sample_count"`

	AccountAvgAmount float64 `json:"acct_avg_amount_80"`
	AccountMaxAmount float64 `json:"acct_max_amount_80"`
	VelocityProxy    int     `json:"velocity_proxy_15"`

	StatusCounts map[TransactionStatus]int `json:"acct_status_counts"`
	TypeCounts   map[TransactionType]int   `json:"acct_type_counts"`

	ReuseAccountsTop []AccountCount `json:"ip_or_device_reuse_accounts_top"`

	// AmountVsBaselineRatio is nil when the account has no baseline
	AmountVsBaselineRatio *float64 `json:"amount_vs_baseline_ratio"`
}

// TopReuseCount returns the count of the most reused account, or 0
func (e *Evidence) TopReuseCount() int {
	if len(e.ReuseAccountsTop) == 0 {
		return 0
	}
	return e.ReuseAccountsTop[0].Count
}

// Decision is the verdict and the action an analyst should take
type Decision struct {
	Outcome           DecisionOutcome `json:"decision"`
	RecommendedAction string          `json:"recommended_action"`
}

// Case is the persisted investigation record for a HIGH or CRITICAL transaction
type Case struct {
	CaseID      string         `json:"case_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Transaction Transaction    `json:"txn"`
	Risk        RiskAssessment `json:"risk"`
	Evidence    Evidence       `json:"evidence"`
	Decision    Decision       `json:"decision"`
	Rationale   []string       `json:"rationale"`
	ReportMD    string         `json:"report_md,omitempty"`
	ReportKey   string         `json:"report_key,omitempty"`
}

// CaseSummary is the list view of a case
type CaseSummary struct {
	CaseID            string          `json:"case_id"`
	CreatedAt         time.Time       `json:"created_at"`
	TxnID             string          `json:"txn_id"`
	AccountID         string          `json:"account_id"`
	RiskScore         int             `json:"risk_score"`
	RiskLevel         RiskLevel       `json:"risk_level"`
	Decision          DecisionOutcome `json:"decision"`
	RecommendedAction string          `json:"recommended_action"`
}

// ProcessResult is what the pipeline returns for every transaction
type ProcessResult struct {
	Transaction Transaction    `json:"txn"`
	Risk        RiskAssessment `json:"risk"`
	LatencyMS   int64          `json:"latency_ms"`
	Case        *Case          `json:"case,omitempty"`
}

// DailyCount is the number of transactions on one local day
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// HourlyCount is the number of transactions in one local hour of today
type HourlyCount struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

// SystemMetrics combines database counters with live pipeline telemetry
type SystemMetrics struct {
	TZ                   string   `json:"tz"`
	TotalTxns            int64    `json:"total_txns"`
	TotalCases           int64    `json:"total_cases"`
	TodayTxns            int64    `json:"today_txns"`
	TodayCases           int64    `json:"today_cases"`
	TotalChargebacks     int64    `json:"total_chargebacks"`
	ChargebacksFlagged   int64    `json:"chargebacks_flagged"`
	ChargebackDetectRate *float64 `json:"chargeback_detect_rate"`
	AvgCaseRiskScore     *float64 `json:"avg_case_risk_score"`

	AvgLatencyMS     *float64 `json:"avg_latency_ms"`
	RecentAlertRate  *float64 `json:"recent_alert_rate"`
	TelemetrySamples int      `json:"telemetry_samples"`
	LiveClients      int      `json:"live_clients"`
}
