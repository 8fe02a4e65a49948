package syncjob

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSplitPeriodTenDaysBySeven(t *testing.T) {
	chunks := SplitPeriod(day(2025, 1, 1), day(2025, 1, 10), 7)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !chunks[0].Start.Equal(day(2025, 1, 1)) || !chunks[0].End.Equal(day(2025, 1, 7)) {
		t.Errorf("chunk 0 = %v..%v", chunks[0].Start, chunks[0].End)
	}
	if !chunks[1].Start.Equal(day(2025, 1, 8)) || !chunks[1].End.Equal(day(2025, 1, 10)) {
		t.Errorf("chunk 1 = %v..%v", chunks[1].Start, chunks[1].End)
	}
	if chunks[0].Index != 0 || chunks[1].Index != 1 {
		t.Error("chunk indexes not sequential")
	}
}

func TestSplitPeriodSingleDay(t *testing.T) {
	chunks := SplitPeriod(day(2025, 3, 15), day(2025, 3, 15), 7)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !chunks[0].Start.Equal(chunks[0].End) {
		t.Errorf("chunk = %v..%v", chunks[0].Start, chunks[0].End)
	}
}

func TestSplitPeriodEndBeforeStart(t *testing.T) {
	if chunks := SplitPeriod(day(2025, 1, 10), day(2025, 1, 1), 7); chunks != nil {
		t.Errorf("chunks = %v, want nil", chunks)
	}
}

func TestSplitPeriodClampsChunkDays(t *testing.T) {
	// 100-day request is clamped to the 45-day API ceiling.
	chunks := SplitPeriod(day(2025, 1, 1), day(2025, 3, 31), 100)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 after clamping", len(chunks))
	}
	if got := chunks[0].End.Sub(chunks[0].Start).Hours()/24 + 1; got != MaxChunkDays {
		t.Errorf("first chunk spans %v days, want %d", got, MaxChunkDays)
	}

	// Zero and negative clamp up to single-day chunks.
	chunks = SplitPeriod(day(2025, 1, 1), day(2025, 1, 3), 0)
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3 one-day chunks", len(chunks))
	}
}

// Chunks must tile the span exactly: contiguous, non-overlapping, within the
// size bound.
func TestSplitPeriodCoversSpan(t *testing.T) {
	spans := []struct {
		start, end time.Time
		days       int
	}{
		{day(2025, 1, 1), day(2025, 12, 31), 45},
		{day(2025, 2, 25), day(2025, 3, 5), 3},
		{day(2024, 2, 1), day(2024, 3, 1), 7}, // leap february
	}
	for _, span := range spans {
		chunks := SplitPeriod(span.start, span.end, span.days)
		if len(chunks) == 0 {
			t.Fatalf("no chunks for %v..%v", span.start, span.end)
		}
		if !chunks[0].Start.Equal(span.start) {
			t.Errorf("first chunk starts %v, want %v", chunks[0].Start, span.start)
		}
		if !chunks[len(chunks)-1].End.Equal(span.end) {
			t.Errorf("last chunk ends %v, want %v", chunks[len(chunks)-1].End, span.end)
		}
		for i, ch := range chunks {
			if ch.End.Before(ch.Start) {
				t.Errorf("chunk %d inverted: %v..%v", i, ch.Start, ch.End)
			}
			if days := int(ch.End.Sub(ch.Start).Hours()/24) + 1; days > span.days && span.days >= 1 {
				t.Errorf("chunk %d spans %d days, max %d", i, days, span.days)
			}
			if i > 0 && !ch.Start.Equal(chunks[i-1].End.AddDate(0, 0, 1)) {
				t.Errorf("gap between chunk %d and %d", i-1, i)
			}
		}
	}
}
