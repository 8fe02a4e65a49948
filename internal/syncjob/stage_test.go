package syncjob

import (
	"testing"

	"github.com/ykovtun/declsync/internal/store"
)

func TestStatusNoteRendering(t *testing.T) {
	tests := []struct {
		name  string
		state StageState
		want  string
	}{
		{
			name:  "plain period sync renders empty",
			state: StageState{},
			want:  "",
		},
		{
			name:  "listing",
			state: StageState{Stage: 2, Label: "last-30-days", Phase: store.PhaseListing},
			want:  "STAGE:2:last-30-days",
		},
		{
			name:  "detailing",
			state: StageState{Stage: 2, Label: "last-30-days", Phase: store.PhaseDetailing},
			want:  "STAGE:2:last-30-days|PROCESSING_61_1",
		},
		{
			name:  "completed with next and errors",
			state: StageState{Stage: 1, Label: "last-7-days", Phase: store.PhaseCompleted, NextStage: 2, ErrorCount: 3},
			want:  "STAGE:1:last-7-days|COMPLETED|NEXT:2|ERRORS:3",
		},
		{
			name:  "final stage has no next",
			state: StageState{Stage: 5, Label: "last-1095-days", Phase: store.PhaseCompleted},
			want:  "STAGE:5:last-1095-days|COMPLETED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.StatusNote(); got != tt.want {
				t.Errorf("StatusNote() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStatusNoteRoundTrip(t *testing.T) {
	states := []StageState{
		{Stage: 1, Label: "last-7-days", Phase: store.PhaseListing},
		{Stage: 3, Label: "last-90-days", Phase: store.PhaseDetailing},
		{Stage: 4, Label: "last-365-days", Phase: store.PhaseCompleted, NextStage: 5, ErrorCount: 12},
	}
	for _, s := range states {
		got := ParseStatusNote(s.StatusNote())
		if got != s {
			t.Errorf("round trip %+v -> %q -> %+v", s, s.StatusNote(), got)
		}
	}
}

func TestParseStatusNoteGarbage(t *testing.T) {
	for _, note := range []string{"", "not a note", "STAGE:x:y", "|COMPLETED"} {
		if got := ParseStatusNote(note); got != (StageState{}) {
			t.Errorf("ParseStatusNote(%q) = %+v, want zero state", note, got)
		}
	}
}

func TestWindowForStage(t *testing.T) {
	w, ok := WindowForStage(3)
	if !ok || w.Days != 90 || w.Label != "last-90-days" {
		t.Errorf("stage 3 = %+v ok=%v", w, ok)
	}
	if _, ok := WindowForStage(0); ok {
		t.Error("stage 0 should not resolve")
	}
	if _, ok := WindowForStage(6); ok {
		t.Error("stage 6 should not resolve")
	}
	if last := StageWindows[len(StageWindows)-1]; last.Days != RetentionHorizonDays {
		t.Errorf("final window %d days, want retention horizon %d", last.Days, RetentionHorizonDays)
	}
}
