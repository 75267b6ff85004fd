package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// baseTxn is a low-risk card-present merchant payment at home
func baseTxn() Transaction {
	return Transaction{
		TxnID:         "T0001",
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AccountID:     "ACC001",
		CustomerGrade: "B",
		DeviceID:      "dev-1",
		IPAddress:     "10.0.0.1",
		Merchant:      "Corner Shop",
		MCC:           "5411",
		Amount:        50,
		Currency:      "USD",
		Country:       "US",
		HomeCountry:   "US",
		Channel:       ChannelCardPresent,
		Type:          TypeMerchPay,
		Status:        StatusApproved,
	}
}

func TestScoreRisk_Baseline(t *testing.T) {
	txn := baseTxn()

	risk := ScoreRisk(&txn)

	assert.Equal(t, 7, risk.Score)
	assert.Equal(t, RiskLevelLow, risk.Level)
	assert.Equal(t, []string{"Medium-risk transaction type: MERCHPAY"}, risk.Reasons)
}

func TestScoreRisk_AllSignalsCritical(t *testing.T) {
	txn := baseTxn()
	txn.CustomerGrade = "D"
	txn.Channel = ChannelCardNotPresent
	txn.Country = "NG"
	txn.Type = TypeCashout
	txn.Status = StatusChargeback
	txn.Amount = 900

	risk := ScoreRisk(&txn)

	assert.Equal(t, 15+18+22+14+35+25, risk.Score)
	assert.Equal(t, RiskLevelCritical, risk.Level)
	assert.Equal(t, []string{
		"Lower customer grade: D",
		"Card-not-present",
		"Geo mismatch vs home",
		"High-risk transaction type: CASHOUT",
		"Fraud-confirming status: chargeback",
		"High amount >= 800",
	}, risk.Reasons)
}

func TestScoreRisk_ProbeAirtime(t *testing.T) {
	txn := baseTxn()
	txn.Type = TypeAirtimeRecharge
	txn.Channel = ChannelCardNotPresent
	txn.Amount = 1.5

	risk := ScoreRisk(&txn)

	assert.Equal(t, 36, risk.Score)
	assert.Equal(t, RiskLevelMedium, risk.Level)
	assert.Equal(t, []string{"Card-not-present", "Probe-like small airtime recharge"}, risk.Reasons)
}

func TestScoreRisk_ProbeNeedsCardNotPresent(t *testing.T) {
	txn := baseTxn()
	txn.Type = TypeAirtimeRecharge
	txn.Amount = 2

	risk := ScoreRisk(&txn)

	assert.Equal(t, 0, risk.Score)
	assert.Empty(t, risk.Reasons)
}

func TestScoreRisk_GradeAIsNegative(t *testing.T) {
	txn := baseTxn()
	txn.CustomerGrade = "A"
	txn.Type = TypeDSTVPayment

	risk := ScoreRisk(&txn)

	assert.Equal(t, -5, risk.Score)
	assert.Equal(t, RiskLevelLow, risk.Level)
	assert.Empty(t, risk.Reasons)
}

func TestScoreRisk_Defaults(t *testing.T) {
	txn := baseTxn()
	txn.CustomerGrade = ""
	txn.Type = ""
	txn.Status = ""

	risk := ScoreRisk(&txn)

	// B grade, MERCHPAY and approved
	assert.Equal(t, 7, risk.Score)
	assert.Equal(t, []string{"Medium-risk transaction type: MERCHPAY"}, risk.Reasons)
}

func TestScoreRisk_AmountTiersAreExclusive(t *testing.T) {
	tests := []struct {
		amount float64
		delta  int
		reason string
	}{
		{299.99, 0, ""},
		{300, 12, "Amount >= 300"},
		{799.99, 12, "Amount >= 300"},
		{800, 25, "High amount >= 800"},
		{5000, 25, "High amount >= 800"},
	}

	for _, tt := range tests {
		txn := baseTxn()
		txn.Type = TypeDSTVPayment
		txn.Amount = tt.amount

		risk := ScoreRisk(&txn)

		assert.Equal(t, tt.delta, risk.Score, "amount %v", tt.amount)
		if tt.reason == "" {
			assert.Empty(t, risk.Reasons)
		} else {
			assert.Equal(t, []string{tt.reason}, risk.Reasons)
		}
	}
}

func TestScoreRisk_SoftStatus(t *testing.T) {
	for _, status := range []TransactionStatus{StatusDeclined, StatusReversed} {
		txn := baseTxn()
		txn.Type = TypeDSTVPayment
		txn.Status = status

		risk := ScoreRisk(&txn)

		assert.Equal(t, 8, risk.Score)
		assert.Equal(t, []string{"Suspicious status: " + string(status)}, risk.Reasons)
	}
}

func TestLevelForScore_Boundaries(t *testing.T) {
	tests := map[int]RiskLevel{
		-5:  RiskLevelLow,
		34:  RiskLevelLow,
		35:  RiskLevelMedium,
		59:  RiskLevelMedium,
		60:  RiskLevelHigh,
		84:  RiskLevelHigh,
		85:  RiskLevelCritical,
		150: RiskLevelCritical,
	}
	for score, want := range tests {
		assert.Equal(t, want, LevelForScore(score), "score %d", score)
	}
}

func TestRiskLevel_Investigate(t *testing.T) {
	assert.False(t, RiskLevelLow.Investigate())
	assert.False(t, RiskLevelMedium.Investigate())
	assert.True(t, RiskLevelHigh.Investigate())
	assert.True(t, RiskLevelCritical.Investigate())
}
