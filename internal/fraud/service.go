package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/fraud-investigator/pkg/cache"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/eventbus"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"github.com/richxcame/fraud-investigator/pkg/storage"
	"github.com/richxcame/fraud-investigator/pkg/tracing"
	"github.com/richxcame/fraud-investigator/pkg/websocket"
	"go.uber.org/zap"
)

const (
	tracerName = "fraud"
	source     = "fraud-investigator"

	defaultCaseTTL  = time.Hour
	defaultStatsTTL = 10 * time.Second
)

// ErrReportMissing is returned when a case has neither a stored artifact nor markdown
var ErrReportMissing = errors.New("case report missing")

// Store is the persistence the pipeline and the case API need
type Store interface {
	HistoryReader
	InsertTransaction(ctx context.Context, t *Transaction) error
	InsertCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, caseID string) (*Case, error)
	ListCases(ctx context.Context, limit, offset int) ([]CaseSummary, int64, error)
	UpdateReport(ctx context.Context, caseID, reportMD, reportKey string) error
	DailyVolume(ctx context.Context, tz string, since time.Time) ([]DailyCount, error)
	HourlyToday(ctx context.Context, tz string, startOfDay time.Time) ([]HourlyCount, error)
	SystemMetrics(ctx context.Context, startOfDay time.Time) (*SystemMetrics, error)
	ExpiredCases(ctx context.Context, cutoff time.Time) ([]ExpiredCase, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (txns, cases int64, err error)
}

// ReportStore keeps rendered report artifacts. Create must fail with
// storage.ErrObjectExists rather than replace an existing artifact.
type ReportStore interface {
	Create(ctx context.Context, caseID string, body []byte) (string, error)
	Put(ctx context.Context, caseID string, body []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Publisher sends pipeline events to the event bus
type Publisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Broadcaster pushes feed frames to live viewers
type Broadcaster interface {
	Broadcast(msg *websocket.Message) bool
	ClientCount() int
}

// Service runs the transaction pipeline and serves the case API
type Service struct {
	store       Store
	assembler   *Assembler
	reports     ReportStore
	publisher   Publisher
	broadcaster Broadcaster
	cache       *cache.Manager
	caseTTL     time.Duration
	statsTTL    time.Duration
	telemetry   *Telemetry
	now         func() time.Time
}

// ServiceOption customises a Service
type ServiceOption func(*Service)

// WithReportStore uploads rendered reports as artifacts
func WithReportStore(r ReportStore) ServiceOption {
	return func(s *Service) { s.reports = r }
}

// WithPublisher publishes pipeline events
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithBroadcaster pushes pipeline events to live viewers
func WithBroadcaster(b Broadcaster) ServiceOption {
	return func(s *Service) { s.broadcaster = b }
}

// WithCache caches cases and stats
func WithCache(m *cache.Manager, caseTTL, statsTTL time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = m
		if caseTTL > 0 {
			s.caseTTL = caseTTL
		}
		if statsTTL > 0 {
			s.statsTTL = statsTTL
		}
	}
}

// WithTelemetry replaces the default telemetry ring
func WithTelemetry(t *Telemetry) ServiceOption {
	return func(s *Service) { s.telemetry = t }
}

// WithServiceClock overrides the clock used for latency and stats windows
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the pipeline service. The assembler reads history from store
// unless one is supplied.
func NewService(store Store, assembler *Assembler, opts ...ServiceOption) *Service {
	if assembler == nil {
		assembler = NewAssembler(store)
	}
	s := &Service{
		store:     store,
		assembler: assembler,
		caseTTL:   defaultCaseTTL,
		statsTTL:  defaultStatsTTL,
		telemetry: NewTelemetry(DefaultTelemetryWindow),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessTransaction runs one transaction through the pipeline: insert, score,
// and for HIGH and CRITICAL open a case with a rendered report. Events are
// published after the case is stored; publish failures are logged only.
func (s *Service) ProcessTransaction(ctx context.Context, txn *Transaction) (*ProcessResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "fraud.process_transaction")
	defer span.End()
	span.SetAttributes(tracing.TransactionAttributes(txn.TxnID, txn.AccountID)...)

	start := s.now()
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		pipelineFailures.WithLabelValues("insert").Inc()
		span.RecordError(err)
		if errors.Is(err, ErrDuplicateTransaction) {
			return nil, common.NewConflictError("transaction " + txn.TxnID + " already ingested")
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	risk := ScoreRisk(txn)
	elapsed := s.now().Sub(start)
	latencyMS := elapsed.Milliseconds()
	pipelineLatency.Observe(elapsed.Seconds())
	transactionsScored.WithLabelValues(string(risk.Level)).Inc()
	span.SetAttributes(tracing.RiskScoreKey.Int(risk.Score), tracing.RiskLevelKey.String(string(risk.Level)))

	result := &ProcessResult{Transaction: *txn, Risk: risk, LatencyMS: latencyMS}

	if risk.Level.Investigate() {
		c, err := s.openCase(ctx, txn, risk)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		result.Case = c
		casesOpened.WithLabelValues(string(c.Decision.Outcome)).Inc()
		span.SetAttributes(tracing.CaseIDKey.String(c.CaseID), tracing.DecisionKey.String(string(c.Decision.Outcome)))
	}

	s.emit(ctx, result)
	s.telemetry.Record(latencyMS, result.Case != nil)
	return result, nil
}

// openCase assembles, renders, uploads and stores a case. The artifact of an
// existing case is never replaced; an uploaded artifact whose case insert fails
// is removed.
func (s *Service) openCase(ctx context.Context, txn *Transaction, risk RiskAssessment) (*Case, error) {
	var c *Case
	err := tracing.TraceStage(ctx, tracerName, "fraud.assemble_case", nil, func(ctx context.Context) error {
		var err error
		c, err = s.assembler.OpenCase(ctx, txn, risk)
		return err
	})
	if err != nil {
		pipelineFailures.WithLabelValues("assemble").Inc()
		return nil, fmt.Errorf("assemble case: %w", err)
	}

	c.ReportMD = RenderReport(c)

	if s.reports != nil {
		err := tracing.TraceExternal(ctx, tracerName, "s3", "put_report", func(ctx context.Context) error {
			key, err := s.reports.Create(ctx, c.CaseID, []byte(c.ReportMD))
			c.ReportKey = key
			return err
		})
		if errors.Is(err, storage.ErrObjectExists) {
			pipelineFailures.WithLabelValues("case_insert").Inc()
			return nil, fmt.Errorf("store report: %w: %w", ErrCaseIDCollision, err)
		}
		if err != nil {
			pipelineFailures.WithLabelValues("report").Inc()
			return nil, fmt.Errorf("store report: %w", err)
		}
	}

	if err := s.store.InsertCase(ctx, c); err != nil {
		pipelineFailures.WithLabelValues("case_insert").Inc()
		if c.ReportKey != "" {
			if delErr := s.reports.Delete(ctx, c.ReportKey); delErr != nil {
				logger.WarnContext(ctx, "failed to remove orphaned report",
					zap.String("case_id", c.CaseID),
					zap.String("report_key", c.ReportKey),
					zap.Error(delErr),
				)
			}
		}
		return nil, fmt.Errorf("insert case: %w", err)
	}

	logger.InfoContext(ctx, "case opened",
		zap.String("case_id", c.CaseID),
		zap.String("txn_id", txn.TxnID),
		zap.String("account_id", txn.AccountID),
		zap.Int("risk_score", risk.Score),
		zap.String("decision", string(c.Decision.Outcome)),
	)
	return c, nil
}

// emit fans the result out to the event bus and live viewers
func (s *Service) emit(ctx context.Context, result *ProcessResult) {
	txnEvent := newTransactionScoredEvent(&result.Transaction, result.Risk, result.LatencyMS)
	s.publish(ctx, eventbus.SubjectTransactionScored, EventTransactionScored, txnEvent)
	s.broadcast(FeedTypeTransaction, txnEvent)

	if result.Case == nil {
		return
	}
	alert := newCaseOpenedEvent(result.Case, result.LatencyMS)
	s.publish(ctx, eventbus.SubjectCaseOpened, EventCaseOpened, alert)
	s.broadcast(FeedTypeAlert, alert)
}

func (s *Service) publish(ctx context.Context, subject, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	event, err := eventbus.NewEvent(eventType, source, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, subject, event)
	}
	if err != nil {
		pipelineFailures.WithLabelValues("publish").Inc()
		logger.WarnContext(ctx, "failed to publish event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

func (s *Service) broadcast(feedType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if !s.broadcaster.Broadcast(websocket.NewMessage(feedType, payload)) {
		logger.Debug("live feed queue full, frame dropped", zap.String("type", feedType))
	}
}

// GetCase returns one case, served from cache when possible
func (s *Service) GetCase(ctx context.Context, caseID string) (*Case, error) {
	c, err := cache.GetOrLoad(ctx, s.cache, cache.CaseKey(caseID), s.caseTTL, func(ctx context.Context) (*Case, error) {
		return s.store.GetCase(ctx, caseID)
	})
	if err != nil {
		return nil, caseError(caseID, err)
	}
	return c, nil
}

// ListCases returns case summaries, newest first
func (s *Service) ListCases(ctx context.Context, limit, offset int) ([]CaseSummary, int64, error) {
	cases, total, err := s.store.ListCases(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	return cases, total, nil
}

// GetReport returns the markdown report of a case. The stored artifact is
// preferred; the markdown kept on the case row is the fallback.
func (s *Service) GetReport(ctx context.Context, caseID string) ([]byte, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if c.ReportKey != "" && s.reports != nil {
		body, err := s.reports.Get(ctx, c.ReportKey)
		if err == nil {
			return body, nil
		}
		logger.WarnContext(ctx, "report artifact unavailable, serving stored markdown",
			zap.String("case_id", caseID),
			zap.String("report_key", c.ReportKey),
			zap.Error(err),
		)
	}

	if c.ReportMD == "" {
		return nil, common.NewNotFoundError("report for case "+caseID+" is missing", ErrReportMissing)
	}
	return []byte(c.ReportMD), nil
}

// RegenerateReport re-renders a case report from its stored fields and uploads
// it again under the same key. Running it twice yields the same artifact.
func (s *Service) RegenerateReport(ctx context.Context, caseID string) (*Case, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, caseError(caseID, err)
	}

	c.ReportMD = RenderReport(c)
	if s.reports != nil {
		key, err := s.reports.Put(ctx, c.CaseID, []byte(c.ReportMD))
		if err != nil {
			return nil, fmt.Errorf("store report: %w", err)
		}
		c.ReportKey = key
	}

	if err := s.store.UpdateReport(ctx, c.CaseID, c.ReportMD, c.ReportKey); err != nil {
		return nil, caseError(caseID, err)
	}
	s.invalidate(ctx, cache.CaseKey(caseID))

	logger.InfoContext(ctx, "case report regenerated", zap.String("case_id", caseID))
	return c, nil
}

// DailyVolume counts transactions per local day over the last days
func (s *Service) DailyVolume(ctx context.Context, days int, tz string) ([]DailyCount, error) {
	if days <= 0 {
		days = 7
	}
	name, _ := ResolveTimezone(tz)
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	return cache.GetOrLoad(ctx, s.cache, cache.DailyVolumeKey(days, name), s.statsTTL, func(ctx context.Context) ([]DailyCount, error) {
		return s.store.DailyVolume(ctx, name, since)
	})
}

// HourlyToday counts transactions per local hour of the current local day
func (s *Service) HourlyToday(ctx context.Context, tz string) ([]HourlyCount, error) {
	name, loc := ResolveTimezone(tz)
	return s.store.HourlyToday(ctx, name, startOfDay(s.now(), loc))
}

// SystemMetrics combines database counters with live telemetry
func (s *Service) SystemMetrics(ctx context.Context, tz string) (*SystemMetrics, error) {
	name, loc := ResolveTimezone(tz)
	since := startOfDay(s.now(), loc)

	m, err := cache.GetOrLoad(ctx, s.cache, cache.SystemStatsKey(name), s.statsTTL, func(ctx context.Context) (*SystemMetrics, error) {
		return s.store.SystemMetrics(ctx, since)
	})
	if err != nil {
		return nil, fmt.Errorf("system metrics: %w", err)
	}

	out := *m
	out.TZ = name
	snap := s.telemetry.Snapshot()
	out.TelemetrySamples = snap.Samples
	out.AvgLatencyMS = snap.AvgLatencyMS
	out.RecentAlertRate = snap.RecentAlertRate
	if s.broadcaster != nil {
		out.LiveClients = s.broadcaster.ClientCount()
	}
	return &out, nil
}

// Telemetry returns the live telemetry snapshot
func (s *Service) Telemetry() TelemetrySnapshot {
	return s.telemetry.Snapshot()
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.WarnContext(ctx, "cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func caseError(caseID string, err error) error {
	if errors.Is(err, ErrCaseNotFound) {
		return common.NewNotFoundError("case "+caseID+" not found", err)
	}
	return fmt.Errorf("case %s: %w", caseID, err)
}

// ResolveTimezone returns a usable IANA zone name and location. Empty or
// unknown names fall back to UTC.
func ResolveTimezone(tz string) (string, *time.Location) {
	if tz == "" || tz == "Local" {
		return "UTC", time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "UTC", time.UTC
	}
	return tz, loc
}

func startOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
