package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_transactions_scored_total",
		Help: "Transactions scored by the risk scorer, by risk level",
	}, []string{"level"})

	casesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_cases_opened_total",
		Help: "Investigation cases opened, by decision",
	}, []string{"decision"})

	pipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_pipeline_failures_total",
		Help: "Transactions that failed in the pipeline, by stage",
	}, []string{"stage"})

	pipelineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraud_pipeline_latency_seconds",
		Help:    "Time from transaction insert to scoring",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	retentionPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_retention_purged_total",
		Help: "Rows removed by the retention job",
	}, []string{"table"})
)
