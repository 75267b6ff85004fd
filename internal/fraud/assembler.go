package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Default history windows read for each investigated transaction
const (
	DefaultRecentLimit = 120
	DefaultReuseLimit  = 200
)

var (
	ErrCaseNotFound       = errors.New("case not found")
	ErrCaseIDCollision    = errors.New("case id collision")
	ErrHistoryUnavailable = errors.New("transaction history unavailable")
)

// HistoryReader supplies the two history windows an investigation needs.
type HistoryReader interface {
	// RecentAccountTransactions returns the account's transactions, most recent first.
	RecentAccountTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	// ReuseTransactions returns transactions from any account sharing ip or deviceID.
	ReuseTransactions(ctx context.Context, ip, deviceID string, limit int) ([]Transaction, error)
}

// NewCaseID returns "C" followed by 12 hex characters of a random UUID.
func NewCaseID() string {
	return "C" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Assembler scores transactions and builds a Case for the ones that warrant investigation.
type Assembler struct {
	history     HistoryReader
	recentLimit int
	reuseLimit  int
	newID       func() string
	now         func() time.Time
}

// AssemblerOption customises an Assembler
type AssemblerOption func(*Assembler)

// WithLimits overrides the history window sizes
func WithLimits(recent, reuse int) AssemblerOption {
	return func(a *Assembler) {
		if recent > 0 {
			a.recentLimit = recent
		}
		if reuse > 0 {
			a.reuseLimit = reuse
		}
	}
}

// WithIDGenerator overrides the case id generator
func WithIDGenerator(gen func() string) AssemblerOption {
	return func(a *Assembler) { a.newID = gen }
}

// WithClock overrides the creation timestamp source
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates an assembler reading history from h
func NewAssembler(h HistoryReader, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		history:     h,
		recentLimit: DefaultRecentLimit,
		reuseLimit:  DefaultReuseLimit,
		newID:       NewCaseID,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble scores txn and, when the level is HIGH or CRITICAL, opens a case.
// The case is nil for LOW and MEDIUM.
func (a *Assembler) Assemble(ctx context.Context, txn *Transaction) (RiskAssessment, *Case, error) {
	risk := ScoreRisk(txn)
	if !risk.Level.Investigate() {
		return risk, nil, nil
	}
	c, err := a.OpenCase(ctx, txn, risk)
	return risk, c, err
}

// OpenCase reads both history windows concurrently and returns a complete Case.
// Either both windows are read and a full case is returned, or an error is.
func (a *Assembler) OpenCase(ctx context.Context, txn *Transaction, risk RiskAssessment) (*Case, error) {
	var recent, reuse []Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = a.history.RecentAccountTransactions(gctx, txn.AccountID, a.recentLimit)
		if err != nil {
			return fmt.Errorf("%w: recent account window: %w", ErrHistoryUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reuse, err = a.history.ReuseTransactions(gctx, txn.IPAddress, txn.DeviceID, a.reuseLimit)
		if err != nil {
			return fmt.Errorf("%w: reuse window: %w", ErrHistoryUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return a.Investigate(txn, risk, recent, reuse), nil
}

// Investigate builds the case from already fetched windows.
func (a *Assembler) Investigate(txn *Transaction, risk RiskAssessment, recent, reuse []Transaction) *Case {
	ev := BuildEvidence(txn, risk, recent, reuse)
	return &Case{
		CaseID:      a.newID(),
		CreatedAt:   a.now(),
		Transaction: *txn,
		Risk:        risk,
		Evidence:    ev,
		Decision:    Decide(txn, risk, &ev),
		Rationale:   InvestigatorRationale(txn, risk, &ev),
	}
}
