package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/richxcame/fraud-investigator/pkg/cache"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

// ExpiredCase is a case due for purge. ReportKey is empty when no artifact was stored.
type ExpiredCase struct {
	CaseID    string
	ReportKey string
}

// PurgeResult reports what one retention pass removed
type PurgeResult struct {
	Cutoff       time.Time `json:"cutoff"`
	Transactions int64     `json:"transactions"`
	Cases        int64     `json:"cases"`
	Reports      int       `json:"reports"`
}

// Purge deletes transactions, cases and report artifacts older than days.
// Artifacts are removed first so no case row outlives its report listing;
// cached copies of purged cases are dropped last.
func (s *Service) Purge(ctx context.Context, days int) (*PurgeResult, error) {
	if days <= 0 {
		return &PurgeResult{}, nil
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	res := &PurgeResult{Cutoff: cutoff}

	var expired []ExpiredCase
	if s.reports != nil || s.cache != nil {
		var err error
		expired, err = s.store.ExpiredCases(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("list expired cases: %w", err)
		}
	}

	if s.reports != nil {
		for _, e := range expired {
			if e.ReportKey == "" {
				continue
			}
			if err := s.reports.Delete(ctx, e.ReportKey); err != nil {
				logger.WarnContext(ctx, "failed to delete expired report", zap.String("report_key", e.ReportKey), zap.Error(err))
				continue
			}
			res.Reports++
		}
	}

	txns, cases, err := s.store.PurgeOlderThan(ctx, cutoff)
	res.Transactions, res.Cases = txns, cases
	retentionPurged.WithLabelValues("transactions").Add(float64(txns))
	retentionPurged.WithLabelValues("cases").Add(float64(cases))
	retentionPurged.WithLabelValues("reports").Add(float64(res.Reports))

	if len(expired) > 0 {
		keys := make([]string, len(expired))
		for i, e := range expired {
			keys[i] = cache.CaseKey(e.CaseID)
		}
		s.invalidate(ctx, keys...)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// RunRetention purges once immediately and then on every interval until ctx is done.
// Failures are logged and the loop keeps running.
func (s *Service) RunRetention(ctx context.Context, days int, interval time.Duration) {
	if days <= 0 {
		logger.Info("retention disabled")
		return
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	s.retentionPass(ctx, days)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.retentionPass(ctx, days)
		}
	}
}

func (s *Service) retentionPass(ctx context.Context, days int) {
	res, err := s.Purge(ctx, days)
	if err != nil {
		logger.Error("retention purge failed", zap.Int("days", days), zap.Error(err))
		return
	}
	logger.Info("retention purge completed",
		zap.Time("cutoff", res.Cutoff),
		zap.Int64("transactions", res.Transactions),
		zap.Int64("cases", res.Cases),
		zap.Int("reports", res.Reports),
	)
}
