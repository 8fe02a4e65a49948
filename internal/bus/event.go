package bus

import "time"

// Event kinds published by the daemon. Namespaces: "job." for job lifecycle
// and progress, "decl." for declaration writes, "stats." for cache hints.
const (
	KindJobStarted        = "job.started"
	KindJobChunkCompleted = "job.chunk_completed"
	KindJobChunkFailed    = "job.chunk_failed"
	KindJobDetailFetched  = "job.detail_fetched"
	KindJobCompleted      = "job.completed"
	KindJobCancelled      = "job.cancelled"
	KindJobErrored        = "job.errored"
	KindDeclUpserted      = "decl.upserted"
	KindStatsInvalidate   = "stats.invalidate"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
