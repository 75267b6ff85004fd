package fraud

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RenderReport renders the markdown case file. It reads only stored case fields,
// so rendering the same case twice yields the same document.
func RenderReport(c *Case) string {
	txn := &c.Transaction
	ev := &c.Evidence

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Fraud Case Report: %s", c.CaseID)
	line("- Created: %s", c.CreatedAt.UTC().Format(time.RFC3339))
	line("")
	line("## Transaction")
	line("- txn_id: %s", txn.TxnID)
	line("- account_id: %s (grade=%s)", txn.AccountID, txn.EffectiveGrade())
	line("- type: %s", txn.EffectiveType())
	line("- status: %s", txn.EffectiveStatus())
	line("- amount: %s %s", formatAmount(txn.Amount), txn.Currency)
	line("- merchant: %s (mcc=%s)", txn.Merchant, txn.MCC)
	line("- channel: %s", txn.Channel)
	line("- country: %s (home=%s)", txn.Country, txn.HomeCountry)
	line("- device_id: %s", txn.DeviceID)
	line("- ip_address: %s", txn.IPAddress)
	line("")
	line("## Decision")
	line("- Decision: **%s**", c.Decision.Outcome)
	line("- Recommended action: %s", c.Decision.RecommendedAction)
	line("")
	line("## Evidence")
	line("- Risk level: %s (score=%d)", ev.RiskLevel, ev.RiskScore)
	line("- Reasons: %s", strings.Join(ev.RiskReasons, ", "))
	line("- Account avg amount (last 80): %s", formatAmount(ev.AccountAvgAmount))
	line("- Account max amount (last 80): %s", formatAmount(ev.AccountMaxAmount))
	line("- Amount vs baseline: %s", formatRatio(ev.AmountVsBaselineRatio))
	line("- Velocity proxy (15): %d", ev.VelocityProxy)
	line("- Account status counts: %s", formatCounts(ev.StatusCounts))
	line("- Account type counts: %s", formatCounts(ev.TypeCounts))
	line("- IP/device reuse top: %s", formatReuse(ev.ReuseAccountsTop))
	line("")
	b.WriteString("## Rationale")
	for _, r := range c.Rationale {
		b.WriteString("\n- ")
		b.WriteString(r)
	}

	return b.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatRatio(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*r, 'f', 2, 64) + "x"
}

func formatCounts[K ~string](m map[K]int) string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, m[K(k)])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatReuse(top []AccountCount) string {
	if len(top) == 0 {
		return "[]"
	}
	parts := make([]string, len(top))
	for i, a := range top {
		parts[i] = fmt.Sprintf("%s (%d)", a.AccountID, a.Count)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
