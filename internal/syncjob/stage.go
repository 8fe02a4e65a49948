package syncjob

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ykovtun/declsync/internal/store"
)

// StageWindow is one fixed window of a staged full sync.
type StageWindow struct {
	Stage int
	Days  int
	Label string
}

// StageWindows are the five fixed staged-sync windows, shortest first, so a
// caller can walk from recent data to the full retention horizon.
var StageWindows = []StageWindow{
	{Stage: 1, Days: 7, Label: "last-7-days"},
	{Stage: 2, Days: 30, Label: "last-30-days"},
	{Stage: 3, Days: 90, Label: "last-90-days"},
	{Stage: 4, Days: 365, Label: "last-365-days"},
	{Stage: 5, Days: 1095, Label: "last-1095-days"},
}

// WindowForStage returns the window for a stage number, or false.
func WindowForStage(stage int) (StageWindow, bool) {
	for _, w := range StageWindows {
		if w.Stage == stage {
			return w, true
		}
	}
	return StageWindow{}, false
}

// StageState is the explicit form of what older deployments packed into the
// free-text status-note column. The daemon stores it in structured columns;
// this type exists to render and parse the legacy pipe-delimited format at
// the API boundary.
type StageState struct {
	Stage      int
	Label      string
	Phase      store.StagePhase
	NextStage  int
	ErrorCount int
}

// StageStateOf extracts the stage state from a job row.
func StageStateOf(job *store.SyncJob) StageState {
	return StageState{
		Stage:      job.Stage,
		Label:      job.StageLabel,
		Phase:      job.StagePhase,
		NextStage:  job.NextStage,
		ErrorCount: job.ErrorCount,
	}
}

// StatusNote renders the legacy pipe-delimited side-channel format:
// "STAGE:<n>:<label>" optionally followed by |PROCESSING_61_1, |COMPLETED,
// |NEXT:<n>, |ERRORS:<count>, in that relative order. A non-staged run
// renders empty.
func (s StageState) StatusNote() string {
	if s.Stage == 0 {
		return ""
	}
	note := fmt.Sprintf("STAGE:%d:%s", s.Stage, s.Label)
	switch s.Phase {
	case store.PhaseDetailing:
		note += "|PROCESSING_61_1"
	case store.PhaseCompleted:
		note += "|COMPLETED"
	}
	if s.NextStage > 0 {
		note += fmt.Sprintf("|NEXT:%d", s.NextStage)
	}
	if s.ErrorCount > 0 {
		note += fmt.Sprintf("|ERRORS:%d", s.ErrorCount)
	}
	return note
}

// One regex per concern, matching how every consumer of the legacy format
// reads it.
var (
	stageMarkerRe = regexp.MustCompile(`STAGE:(\d+):([^|]+)`)
	detailingRe   = regexp.MustCompile(`\|PROCESSING_61_1`)
	completedRe   = regexp.MustCompile(`\|COMPLETED`)
	nextStageRe   = regexp.MustCompile(`\|NEXT:(\d+)`)
	errorsRe      = regexp.MustCompile(`\|ERRORS:(\d+)`)
)

// ParseStatusNote decodes the legacy pipe-delimited format back into a
// StageState. Unrecognized text yields the zero state.
func ParseStatusNote(note string) StageState {
	var s StageState
	m := stageMarkerRe.FindStringSubmatch(note)
	if m == nil {
		return s
	}
	s.Stage, _ = strconv.Atoi(m[1])
	s.Label = m[2]
	s.Phase = store.PhaseListing
	if detailingRe.MatchString(note) {
		s.Phase = store.PhaseDetailing
	}
	if completedRe.MatchString(note) {
		s.Phase = store.PhaseCompleted
	}
	if m := nextStageRe.FindStringSubmatch(note); m != nil {
		s.NextStage, _ = strconv.Atoi(m[1])
	}
	if m := errorsRe.FindStringSubmatch(note); m != nil {
		s.ErrorCount, _ = strconv.Atoi(m[1])
	}
	return s
}
