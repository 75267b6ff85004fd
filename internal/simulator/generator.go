package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/fraud-investigator/internal/fraud"
)

// Pool sizes for the live stream and the historical seed
const (
	LiveAccounts = 80
	SeedAccounts = 120
)

var (
	transactionTypes = []fraud.TransactionType{
		fraud.TypeP2PSend, fraud.TypeAirtimeRecharge, fraud.TypeDSTVPayment,
		fraud.TypeCashout, fraud.TypeCashin, fraud.TypeMerchPay,
	}

	countries     = []string{"ZW", "ZA", "NG", "KE", "AE", "GB", "US"}
	homeCountries = []string{"ZW", "ZA", "AE", "US"}
	channels      = []fraud.Channel{fraud.ChannelCardPresent, fraud.ChannelCardNotPresent}
	prefixes      = []string{"71", "78", "772", "771", "773", "775", "776", "777", "778"}

	grades       = []string{"A", "B", "C", "D"}
	gradeWeights = []float64{0.40, 0.30, 0.20, 0.10}
)

type merchantInfo struct {
	name string
	mcc  string
}

var merchants = map[fraud.TransactionType]merchantInfo{
	fraud.TypeP2PSend:         {"P2P Wallet", "4829"},
	fraud.TypeAirtimeRecharge: {"Airtime Vendor", "4814"},
	fraud.TypeDSTVPayment:     {"DsTV", "4899"},
	fraud.TypeCashout:         {"Agent Cashout", "6011"},
	fraud.TypeCashin:          {"Agent Cashin", "6012"},
	fraud.TypeMerchPay:        {"Merchant Payments", "5411"},
}

// amountRanges are the uniform [min, max) amount bands per type
var amountRanges = map[fraud.TransactionType][2]float64{
	fraud.TypeAirtimeRecharge: {0.5, 20},
	fraud.TypeDSTVPayment:     {10, 80},
	fraud.TypeCashin:          {5, 200},
	fraud.TypeCashout:         {10, 500},
	fraud.TypeP2PSend:         {1, 800},
	fraud.TypeMerchPay:        {1, 300},
}

// Account is a simulated wallet holder
type Account struct {
	ID          string
	HomeCountry string
	Grade       string
}

// Generator produces synthetic transactions. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator; the same seed yields the same sequence
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Accounts builds a pool of n accounts
func (g *Generator) Accounts(n int) []Account {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool := make([]Account, n)
	for i := range pool {
		pool[i] = Account{
			ID:          g.accountID(),
			HomeCountry: pick(g.rng, homeCountries),
			Grade:       g.grade(),
		}
	}
	return pool
}

// Live returns a streamed transaction stamped ts. Devices and IPs are often
// shared so the reuse evidence has something to find.
func (g *Generator) Live(pool []Account, ts time.Time) fraud.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	a := pick(g.rng, pool)
	txn := g.base(a, ts)

	if g.rng.Float64() < 0.25 {
		txn.DeviceID = g.device()
	} else {
		txn.DeviceID = "D" + strings.ReplaceAll(a.ID, "-", "")[:4] + "000"
	}
	if g.rng.Float64() < 0.30 {
		txn.IPAddress = g.ip()
	} else {
		txn.IPAddress = fmt.Sprintf("10.0.%d.%d", 1+g.rng.IntN(200), 2+g.rng.IntN(253))
	}
	return txn
}

// Historical returns a transaction with a random timestamp in [start, end]
func (g *Generator) Historical(pool []Account, start, end time.Time) fraud.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	span := end.Sub(start)
	ts := start
	if span > 0 {
		ts = start.Add(time.Duration(g.rng.Int64N(int64(span) + 1)))
	}

	txn := g.base(pick(g.rng, pool), ts)
	txn.DeviceID = g.device()
	txn.IPAddress = g.ip()
	return txn
}

func (g *Generator) base(a Account, ts time.Time) fraud.Transaction {
	ttype := pick(g.rng, transactionTypes)
	m := merchants[ttype]

	country := a.HomeCountry
	if g.rng.Float64() >= 0.88 {
		others := make([]string, 0, len(countries)-1)
		for _, c := range countries {
			if c != a.HomeCountry {
				others = append(others, c)
			}
		}
		country = pick(g.rng, others)
	}

	return fraud.Transaction{
		TxnID:         "T" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10],
		Timestamp:     ts.UTC(),
		AccountID:     a.ID,
		CustomerGrade: a.Grade,
		Merchant:      m.name,
		MCC:           m.mcc,
		Amount:        g.amount(ttype),
		Currency:      "USD",
		Country:       country,
		HomeCountry:   a.HomeCountry,
		Channel:       pick(g.rng, channels),
		Type:          ttype,
		Status:        g.status(),
	}
}

// status draws approved 88%, declined 6%, reversed 4.5%, chargeback 1.5%
func (g *Generator) status() fraud.TransactionStatus {
	r := g.rng.Float64()
	switch {
	case r < 0.88:
		return fraud.StatusApproved
	case r < 0.94:
		return fraud.StatusDeclined
	case r < 0.985:
		return fraud.StatusReversed
	default:
		return fraud.StatusChargeback
	}
}

func (g *Generator) grade() string {
	r := g.rng.Float64()
	acc := 0.0
	for i, w := range gradeWeights {
		acc += w
		if r < acc {
			return grades[i]
		}
	}
	return grades[len(grades)-1]
}

func (g *Generator) amount(t fraud.TransactionType) float64 {
	band, ok := amountRanges[t]
	if !ok {
		band = [2]float64{1, 200}
	}
	v := band[0] + g.rng.Float64()*(band[1]-band[0])
	return math.Round(v*100) / 100
}

// accountID is 8 digits formatted xxxx-xxxx with a known prefix
func (g *Generator) accountID() string {
	var b strings.Builder
	b.WriteString(pick(g.rng, prefixes))
	for b.Len() < 8 {
		b.WriteByte(byte('0' + g.rng.IntN(10)))
	}
	digits := b.String()
	return digits[:4] + "-" + digits[4:]
}

func (g *Generator) device() string {
	return fmt.Sprintf("D%d", 10000+g.rng.IntN(90000))
}

func (g *Generator) ip() string {
	return fmt.Sprintf("%d.%d.%d.%d", 1+g.rng.IntN(254), 1+g.rng.IntN(254), 1+g.rng.IntN(254), 1+g.rng.IntN(254))
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}
