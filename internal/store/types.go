package store

// DeclStatus is the tri-state declaration lifecycle status.
type DeclStatus string

const (
	StatusProcessing DeclStatus = "PROCESSING"
	StatusCleared    DeclStatus = "CLEARED"
	StatusRejected   DeclStatus = "REJECTED"
)

// StatusFromCode maps the raw upstream status code onto the tri-state.
func StatusFromCode(code string) DeclStatus {
	switch code {
	case "R", "10", "11":
		return StatusCleared
	case "N", "F", "90":
		return StatusRejected
	default:
		return StatusProcessing
	}
}

// Company is one synchronized company scope. The upstream API token rests
// sealed (AES-GCM); TokenCipher/TokenNonce are opaque to everything but the
// credential layer.
type Company struct {
	ID          string
	Name        string
	CliCode     string
	TokenCipher []byte
	TokenNonce  []byte
	CreatedAt   int64
}

// Declaration is one persisted customs declaration record. Created on first
// sighting of a guid/mrn pair within a company scope, updated on every later
// sighting, never deleted by this subsystem.
type Declaration struct {
	ID         string
	CompanyID  string
	GUID       string
	MRNCustoms string
	MRNDate    string
	MRNNumber  string
	Status     DeclStatus
	// DocDate is best-effort parsed from the registration timestamp,
	// unix millis; 0 when unparseable.
	DocDate    int64
	Sender     string
	Receiver   string
	Declarant  string
	RawPayload string
	// HasDetail is derived once at the write boundary from the payload
	// envelope so detail-lacking records can be counted and paged cheaply.
	HasDetail bool
	CreatedAt int64
	UpdatedAt int64
}

// MRN joins the three registration-number parts.
func (d *Declaration) MRN() string {
	if d.MRNCustoms == "" && d.MRNDate == "" && d.MRNNumber == "" {
		return ""
	}
	return d.MRNCustoms + "/" + d.MRNDate + "/" + d.MRNNumber
}

// JobStatus is a sync job lifecycle state. Transitions only move forward
// from processing to one of the terminal states.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
	JobError      JobStatus = "error"
)

// StagePhase marks where a staged run currently is.
type StagePhase string

const (
	PhaseListing   StagePhase = "listing"
	PhaseDetailing StagePhase = "detailing"
	PhaseCompleted StagePhase = "completed"
)

// SyncJob is one orchestrated synchronization run.
type SyncJob struct {
	ID                     string
	CompanyID              string
	Status                 JobStatus
	TotalChunks            int
	CompletedChunks        int
	TotalDetailTargets     int
	CompletedDetailTargets int
	PeriodStart            int64
	PeriodEnd              int64
	// Stage fields carry staged-run state in structured columns; stage 0
	// means a plain period sync.
	Stage        int
	StageLabel   string
	StagePhase   StagePhase
	NextStage    int
	ErrorCount   int
	ErrorMessage string
	CreatedAt    int64
	UpdatedAt    int64
	FinishedAt   int64
}

// SyncJobFailure records one chunk that exhausted retries or failed
// non-retryably. Append-only.
type SyncJobFailure struct {
	ID           int64
	JobID        string
	ChunkIndex   int
	ChunkStart   int64
	ChunkEnd     int64
	ErrorMessage string
	ErrorClass   string
	RetryCount   int
	Retried      bool
	CreatedAt    int64
}

// SyncHistoryEntry is one append-only audit row per completed phase.
type SyncHistoryEntry struct {
	ID         int64
	JobID      string
	CompanyID  string
	Phase      string // "list" or "detail"
	ItemCount  int
	ErrorCount int
	Summary    string
	CreatedAt  int64
}

// DeclarationSummaryRow is the derived listing row kept in sync with every
// declaration write.
type DeclarationSummaryRow struct {
	DeclarationID string
	CompanyID     string
	MRN           string
	Status        DeclStatus
	DocDate       int64
	Sender        string
	Receiver      string
	Transport     string
	HasDetail     bool
	UpdatedAt     int64
}
