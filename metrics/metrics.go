// Package metrics defines the prometheus collectors for the auction engine
// and its deadline monitor. Collectors are package-level and registered on
// the default registry; the daemon exposes them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NominationsTotal counts created lots by source ("user" or "auto").
	NominationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_nominations_total",
		Help: "Lots created, by nomination source.",
	}, []string{"source"})

	// BidsTotal counts max-bid calls by result ("accepted", "rejected",
	// "conflict", "replayed").
	BidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_total",
		Help: "Max-bid calls, by result.",
	}, []string{"result"})

	// SettlementsTotal counts settled lots by outcome ("won", "passed").
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_settlements_total",
		Help: "Settled lots, by outcome.",
	}, []string{"outcome"})

	// OutbidNoticesTotal counts outbid notifications by disposition
	// ("sent", "throttled").
	OutbidNoticesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_outbid_notices_total",
		Help: "Outbid notifications, by disposition.",
	}, []string{"disposition"})

	// DraftsCompletedTotal counts drafts that reached completion.
	DraftsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_drafts_completed_total",
		Help: "Drafts that reached completion.",
	})

	// MonitorTicksTotal counts deadline monitor scans.
	MonitorTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_monitor_ticks_total",
		Help: "Deadline monitor scan iterations.",
	})

	// MonitorWorkersActive gauges per-draft monitor workers alive.
	MonitorWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auction_monitor_workers_active",
		Help: "Per-draft deadline workers currently running.",
	})

	// MonitorQueueDepth gauges queued monitor work items.
	MonitorQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auction_monitor_queue_depth",
		Help: "Deadline work items queued across drafts.",
	})

	// OperationDuration observes locked-transaction latency per operation.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auction_operation_duration_seconds",
		Help:    "Locked-transaction duration per service operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
