package syncjob

import "time"

// Chunk is one bounded sub-period of a sync run.
type Chunk struct {
	Index int
	Start time.Time
	End   time.Time
}

// SplitPeriod splits [start, end] into contiguous, non-overlapping chunks of
// at most chunkDays calendar days that together cover the span exactly.
// start == end yields a single one-day chunk. chunkDays is clamped to the
// API ceiling of [1, 45].
func SplitPeriod(start, end time.Time, chunkDays int) []Chunk {
	if chunkDays < 1 {
		chunkDays = 1
	}
	if chunkDays > MaxChunkDays {
		chunkDays = MaxChunkDays
	}
	if end.Before(start) {
		return nil
	}

	var chunks []Chunk
	cur := truncateDay(start)
	last := truncateDay(end)
	for !cur.After(last) {
		chunkEnd := cur.AddDate(0, 0, chunkDays-1)
		if chunkEnd.After(last) {
			chunkEnd = last
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
