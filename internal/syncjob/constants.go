package syncjob

import "time"

// Upstream rate-limit policy. The pacing and backoff values are contractual
// with the external API, not tuning knobs.
const (
	// MaxChunkDays is the hard API ceiling on one list request's period.
	MaxChunkDays = 45
	// MaxPeriodSpanDays bounds an explicit period sync.
	MaxPeriodSpanDays = 45
	// RetentionHorizonDays is how far back upstream keeps data at all.
	RetentionHorizonDays = 1095
	// MaxChunkRetries: each failed chunk is retried at most once.
	MaxChunkRetries = 1
)

// Timing carries the delay profile of a run. Production uses
// DefaultTiming(); tests inject compressed values.
type Timing struct {
	// ChunkPacing separates consecutive list requests.
	ChunkPacing time.Duration
	// DetailPacing separates consecutive detail requests; mandated by the
	// external rate policy and the dominant cost of phase 2.
	DetailPacing time.Duration

	BackoffTimeout time.Duration
	BackoffServer  time.Duration
	BackoffNetwork time.Duration
	// BackoffChannel is the longest: the 400-channel-timeout variant means
	// upstream is queuing.
	BackoffChannel time.Duration

	// DetailPageSize is the backfill cursor page size.
	DetailPageSize int
	// DetailPersistEvery bounds progress-counter write volume.
	DetailPersistEvery int
}

// DefaultTiming returns the production delay profile.
func DefaultTiming() Timing {
	return Timing{
		ChunkPacing:        2 * time.Second,
		DetailPacing:       1 * time.Second,
		BackoffTimeout:     5 * time.Second,
		BackoffServer:      8 * time.Second,
		BackoffNetwork:     10 * time.Second,
		BackoffChannel:     12 * time.Second,
		DetailPageSize:     50,
		DetailPersistEvery: 10,
	}
}

// BackoffFor maps a failure class to its retry backoff.
func (t Timing) BackoffFor(class FailureClass) time.Duration {
	switch class {
	case ClassServerError:
		return t.BackoffServer
	case ClassNetwork:
		return t.BackoffNetwork
	case ClassChannelTimeout:
		return t.BackoffChannel
	default:
		return t.BackoffTimeout
	}
}
