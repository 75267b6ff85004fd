package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/richxcame/fraud-investigator/pkg/database"
)

// ErrDuplicateTransaction is returned when a txn_id has already been ingested
var ErrDuplicateTransaction = errors.New("transaction already ingested")

// DB is the subset of *pgxpool.Pool the repository needs
type DB interface {
	database.Querier
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Repository handles transaction and case persistence
type Repository struct {
	db DB
}

// NewRepository creates a new fraud repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `txn_id, ts, account_id, customer_grade, device_id, ip_address,
	merchant, mcc, amount, currency, country, home_country, channel,
	transaction_type, transaction_status`

var transactionColumnNames = []string{
	"txn_id", "ts", "account_id", "customer_grade", "device_id", "ip_address",
	"merchant", "mcc", "amount", "currency", "country", "home_country", "channel",
	"transaction_type", "transaction_status",
}

func transactionArgs(t *Transaction) []interface{} {
	return []interface{}{
		t.TxnID, t.Timestamp, t.AccountID, t.EffectiveGrade(), t.DeviceID, t.IPAddress,
		t.Merchant, t.MCC, t.Amount, t.Currency, t.Country, t.HomeCountry, string(t.Channel),
		string(t.EffectiveType()), string(t.EffectiveStatus()),
	}
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	out := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.TxnID, &t.Timestamp, &t.AccountID, &t.CustomerGrade, &t.DeviceID, &t.IPAddress,
			&t.Merchant, &t.MCC, &t.Amount, &t.Currency, &t.Country, &t.HomeCountry, &t.Channel,
			&t.Type, &t.Status,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction stores a single transaction
func (r *Repository) InsertTransaction(ctx context.Context, t *Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := database.RetryableExec(ctx, r.db, query, transactionArgs(t)...)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.TxnID, err)
	}
	return nil
}

// InsertTransactions bulk-loads transactions with COPY, used for historical seeding
func (r *Repository) InsertTransactions(ctx context.Context, txns []Transaction) (int64, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumnNames,
		pgx.CopyFromSlice(len(txns), func(i int) ([]interface{}, error) {
			return transactionArgs(&txns[i]), nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy transactions: %w", err)
	}
	return n, nil
}

// RecentAccountTransactions returns the account's latest transactions, most recent first
func (r *Repository) RecentAccountTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY ts DESC
		LIMIT $2`

	return database.RetryableQuery(ctx, r.db, query, []interface{}{accountID, limit}, scanTransactions)
}

// ReuseTransactions returns the latest transactions sharing the IP or the device, across accounts
func (r *Repository) ReuseTransactions(ctx context.Context, ip, deviceID string, limit int) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE ip_address = $1 OR device_id = $2
		ORDER BY ts DESC
		LIMIT $3`

	return database.RetryableQuery(ctx, r.db, query, []interface{}{ip, deviceID, limit}, scanTransactions)
}

// InsertCase stores a case. A duplicate case id is reported as ErrCaseIDCollision and never retried.
func (r *Repository) InsertCase(ctx context.Context, c *Case) error {
	txnJSON, err := json.Marshal(c.Transaction)
	if err != nil {
		return err
	}
	evidenceJSON, err := json.Marshal(c.Evidence)
	if err != nil {
		return err
	}
	reasonsJSON, err := json.Marshal(c.Risk.Reasons)
	if err != nil {
		return err
	}
	rationaleJSON, err := json.Marshal(c.Rationale)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cases (
			case_id, created_at, txn_id, account_id, risk_score, risk_level, risk_reasons,
			decision, recommended_action, rationale, transaction, evidence, report_md, report_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = database.RetryableExec(ctx, r.db, query,
		c.CaseID,
		c.CreatedAt,
		c.Transaction.TxnID,
		c.Transaction.AccountID,
		c.Risk.Score,
		string(c.Risk.Level),
		reasonsJSON,
		string(c.Decision.Outcome),
		c.Decision.RecommendedAction,
		rationaleJSON,
		txnJSON,
		evidenceJSON,
		c.ReportMD,
		c.ReportKey,
	)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrCaseIDCollision, c.CaseID)
	}
	return err
}

// GetCase retrieves a full case by id
func (r *Repository) GetCase(ctx context.Context, caseID string) (*Case, error) {
	query := `
		SELECT case_id, created_at, risk_score, risk_level, risk_reasons,
		       decision, recommended_action, rationale, transaction, evidence,
		       report_md, report_key
		FROM cases
		WHERE case_id = $1
	`

	var (
		c                                           Case
		reasonsJSON, rationaleJSON, txnJSON, evJSON []byte
	)
	err := r.db.QueryRow(ctx, query, caseID).Scan(
		&c.CaseID,
		&c.CreatedAt,
		&c.Risk.Score,
		&c.Risk.Level,
		&reasonsJSON,
		&c.Decision.Outcome,
		&c.Decision.RecommendedAction,
		&rationaleJSON,
		&txnJSON,
		&evJSON,
		&c.ReportMD,
		&c.ReportKey,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case %s: %w", caseID, err)
	}

	for _, part := range []struct {
		raw  []byte
		dest interface{}
	}{
		{reasonsJSON, &c.Risk.Reasons},
		{rationaleJSON, &c.Rationale},
		{txnJSON, &c.Transaction},
		{evJSON, &c.Evidence},
	} {
		if err := json.Unmarshal(part.raw, part.dest); err != nil {
			return nil, fmt.Errorf("decode case %s: %w", caseID, err)
		}
	}

	return &c, nil
}

// ListCases returns case summaries newest first, with the total count
func (r *Repository) ListCases(ctx context.Context, limit, offset int) ([]CaseSummary, int64, error) {
	query := `
		SELECT case_id, created_at, txn_id, account_id, risk_score, risk_level,
		       decision, recommended_action, COUNT(*) OVER() AS total
		FROM cases
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	type page struct {
		items []CaseSummary
		total int64
	}

	p, err := database.RetryableQuery(ctx, r.db, query, []interface{}{limit, offset}, func(rows pgx.Rows) (page, error) {
		out := page{items: make([]CaseSummary, 0)}
		for rows.Next() {
			var s CaseSummary
			if err := rows.Scan(
				&s.CaseID, &s.CreatedAt, &s.TxnID, &s.AccountID, &s.RiskScore, &s.RiskLevel,
				&s.Decision, &s.RecommendedAction, &out.total,
			); err != nil {
				return page{}, err
			}
			out.items = append(out.items, s)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return p.items, p.total, nil
}

// UpdateReport replaces the stored report and artifact key of a case
func (r *Repository) UpdateReport(ctx context.Context, caseID, reportMD, reportKey string) error {
	tag, err := database.RetryableExec(ctx, r.db,
		`UPDATE cases SET report_md = $2, report_key = $3 WHERE case_id = $1`,
		caseID, reportMD, reportKey,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// DailyVolume counts transactions per local day over the last days
func (r *Repository) DailyVolume(ctx context.Context, tz string, since time.Time) ([]DailyCount, error) {
	query := `
		SELECT to_char(date_trunc('day', ts AT TIME ZONE $1), 'YYYY-MM-DD') AS day, COUNT(*)
		FROM transactions
		WHERE ts >= $2
		GROUP BY 1
		ORDER BY 1
	`

	return database.RetryableQuery(ctx, r.db, query, []interface{}{tz, since}, func(rows pgx.Rows) ([]DailyCount, error) {
		out := make([]DailyCount, 0)
		for rows.Next() {
			var d DailyCount
			if err := rows.Scan(&d.Day, &d.Count); err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, rows.Err()
	})
}

// HourlyToday counts transactions per local hour since the start of the local day
func (r *Repository) HourlyToday(ctx context.Context, tz string, startOfDay time.Time) ([]HourlyCount, error) {
	query := `
		SELECT to_char(date_trunc('hour', ts AT TIME ZONE $1), 'HH24":00"') AS hour, COUNT(*)
		FROM transactions
		WHERE ts >= $2
		GROUP BY 1
		ORDER BY 1
	`

	return database.RetryableQuery(ctx, r.db, query, []interface{}{tz, startOfDay}, func(rows pgx.Rows) ([]HourlyCount, error) {
		out := make([]HourlyCount, 0)
		for rows.Next() {
			var h HourlyCount
			if err := rows.Scan(&h.Hour, &h.Count); err != nil {
				return nil, err
			}
			out = append(out, h)
		}
		return out, rows.Err()
	})
}

// SystemMetrics gathers the database side of the system stats
func (r *Repository) SystemMetrics(ctx context.Context, startOfDay time.Time) (*SystemMetrics, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM transactions),
			(SELECT COUNT(*) FROM cases),
			(SELECT COUNT(*) FROM transactions WHERE ts >= $1),
			(SELECT COUNT(*) FROM cases WHERE created_at >= $1),
			(SELECT COUNT(*) FROM transactions WHERE transaction_status = 'chargeback'),
			(SELECT COUNT(*) FROM cases c JOIN transactions t ON t.txn_id = c.txn_id
				WHERE t.transaction_status = 'chargeback'),
			(SELECT AVG(risk_score)::float8 FROM cases)
	`

	return database.RetryableQueryRow(ctx, r.db, query, []interface{}{startOfDay}, func(row pgx.Row) (*SystemMetrics, error) {
		var (
			m       SystemMetrics
			avgRisk *float64
		)
		if err := row.Scan(
			&m.TotalTxns, &m.TotalCases, &m.TodayTxns, &m.TodayCases,
			&m.TotalChargebacks, &m.ChargebacksFlagged, &avgRisk,
		); err != nil {
			return nil, err
		}

		if m.TotalChargebacks > 0 {
			rate := roundTo(float64(m.ChargebacksFlagged)/float64(m.TotalChargebacks), 3)
			m.ChargebackDetectRate = &rate
		}
		if avgRisk != nil {
			v := roundTo(*avgRisk, 1)
			m.AvgCaseRiskScore = &v
		}
		return &m, nil
	})
}

// ExpiredCases lists the ids and report artifacts of cases older than cutoff
func (r *Repository) ExpiredCases(ctx context.Context, cutoff time.Time) ([]ExpiredCase, error) {
	query := `SELECT case_id, report_key FROM cases WHERE created_at < $1`

	return database.RetryableQuery(ctx, r.db, query, []interface{}{cutoff}, func(rows pgx.Rows) ([]ExpiredCase, error) {
		expired := make([]ExpiredCase, 0)
		for rows.Next() {
			var e ExpiredCase
			if err := rows.Scan(&e.CaseID, &e.ReportKey); err != nil {
				return nil, err
			}
			expired = append(expired, e)
		}
		return expired, rows.Err()
	})
}

// PurgeOlderThan deletes cases and transactions older than cutoff
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (txns, cases int64, err error) {
	tag, err := database.RetryableExec(ctx, r.db, `DELETE FROM cases WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("purge cases: %w", err)
	}
	cases = tag.RowsAffected()

	tag, err = database.RetryableExec(ctx, r.db, `DELETE FROM transactions WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, cases, fmt.Errorf("purge transactions: %w", err)
	}
	return tag.RowsAffected(), cases, nil
}
