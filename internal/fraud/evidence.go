package fraud

import (
	"math"
	"sort"
)

const (
	baselineWindow   = 80
	velocityCap      = 15
	reuseTopAccounts = 6
)

// BuildEvidence aggregates the account history and the device/IP reuse window around txn.
// recent is expected most-recent-first; only its first 80 entries feed the amount baseline.
// Empty windows yield zero aggregates and a nil ratio.
func BuildEvidence(txn *Transaction, risk RiskAssessment, recent, reuse []Transaction) Evidence {
	ev := Evidence{
		RiskScore:             risk.Score,
		RiskLevel:             risk.Level,
		RiskReasons:           append([]string(nil), risk.Reasons...),
		RecentAccountTxnCount: len(recent),
		ReuseSampleCount:      len(reuse),
		VelocityProxy:         min(len(recent), velocityCap),
		StatusCounts:          make(map[TransactionStatus]int),
		TypeCounts:            make(map[TransactionType]int),
		ReuseAccountsTop:      topAccounts(reuse, reuseTopAccounts),
	}

	window := recent
	if len(window) > baselineWindow {
		window = window[:baselineWindow]
	}
	if len(window) > 0 {
		var sum, peak float64
		for i, t := range window {
			sum += t.Amount
			if i == 0 || t.Amount > peak {
				peak = t.Amount
			}
		}
		ev.AccountAvgAmount = round2(sum / float64(len(window)))
		ev.AccountMaxAmount = round2(peak)
	}

	for i := range recent {
		ev.StatusCounts[recent[i].EffectiveStatus()]++
		ev.TypeCounts[recent[i].EffectiveType()]++
	}

	if ev.AccountAvgAmount > 0 {
		ratio := round2(txn.Amount / ev.AccountAvgAmount)
		ev.AmountVsBaselineRatio = &ratio
	}

	return ev
}

// topAccounts ranks accounts by occurrence; ties keep first-seen order.
func topAccounts(txns []Transaction, n int) []AccountCount {
	counts := make([]AccountCount, 0)
	index := make(map[string]int)
	for i := range txns {
		id := txns[i].AccountID
		if pos, ok := index[id]; ok {
			counts[pos].Count++
			continue
		}
		index[id] = len(counts)
		counts = append(counts, AccountCount{AccountID: id, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func round2(v float64) float64 {
	return roundTo(v, 2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
