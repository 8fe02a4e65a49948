package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksTotal counts processed list-sync chunks by result (ok, failed).
	ChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "sync_chunks_total",
		Help:      "List-sync chunks processed, by result.",
	}, []string{"result"})

	// ChunkRetriesTotal counts chunk retries by failure class.
	ChunkRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "sync_chunk_retries_total",
		Help:      "Chunk fetch retries, by failure class.",
	}, []string{"class"})

	// DetailFetchesTotal counts detail backfill fetches by result (ok, failed).
	DetailFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "detail_fetches_total",
		Help:      "Detail backfill fetches, by result.",
	}, []string{"result"})

	// GatewayRequestsTotal counts upstream requests by operation and outcome.
	GatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "gateway_requests_total",
		Help:      "Upstream gateway requests, by operation and outcome.",
	}, []string{"op", "outcome"})

	// EventsTotal counts bus events by kind, fed by the daemon's bridge.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "events_total",
		Help:      "Domain events published on the internal bus, by kind.",
	}, []string{"kind"})

	// RepairedRunsTotal counts double-encoding runs repaired by the codec.
	RepairedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "encoding_repaired_runs_total",
		Help:      "Misencoded text runs repaired via the fixed lookup table.",
	})

	// UnmappedRunsTotal counts suspicious runs the repair table did not cover.
	// A growing value means a new upstream corruption variant appeared.
	UnmappedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "declsync",
		Name:      "encoding_unmapped_runs_total",
		Help:      "Suspicious misencoded runs with no repair-table entry.",
	})
)
