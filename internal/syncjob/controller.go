// Package syncjob drives chunked synchronization runs: the list phase over
// bounded sub-periods, the detail backfill phase, retry policy, and job
// state.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ykovtun/declsync/internal/bus"
	"github.com/ykovtun/declsync/internal/declparser"
	"github.com/ykovtun/declsync/internal/gateway"
	"github.com/ykovtun/declsync/internal/metrics"
	"github.com/ykovtun/declsync/internal/store"
)

// Role is the caller's role within a company scope. Authentication itself
// happens upstream of the daemon; the controller only enforces the
// precondition that the caller may run synchronization.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// CanSync reports whether the role may start or cancel sync jobs.
func (r Role) CanSync() bool {
	return r == RoleOwner || r == RoleMember
}

// Validation failures: rejected synchronously, before any job row exists.
var (
	ErrUnauthorized   = errors.New("role is not authorized to run synchronization")
	ErrBadPeriod      = errors.New("period end precedes period start")
	ErrSpanTooLong    = fmt.Errorf("period span exceeds %d days", MaxPeriodSpanDays)
	ErrBeyondHorizon  = fmt.Errorf("period start is beyond the %d-day retention horizon", RetentionHorizonDays)
	ErrUnknownStage   = errors.New("unknown sync stage")
	ErrUnknownCompany = errors.New("unknown company")
)

// Gateway is the upstream surface the controller drives.
type Gateway interface {
	FetchList(ctx context.Context, cred gateway.Credential, from, to time.Time) ([]*declparser.Summary, error)
	FetchDetail(ctx context.Context, cred gateway.Credential, guid string) (string, error)
}

// Controller runs sync jobs. All fetches for one job are strictly
// sequential: the upstream rate limit is global per company scope, so there
// is no intra-job parallelism and no second concurrent job per scope.
type Controller struct {
	db        *store.DB
	gw        Gateway
	creds     *Credentials
	bus       *bus.Bus
	logger    *zap.Logger
	timing    Timing
	chunkDays int

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// New creates a controller. chunkDays is clamped to [1, MaxChunkDays].
func New(db *store.DB, gw Gateway, creds *Credentials, b *bus.Bus, logger *zap.Logger, timing Timing, chunkDays int) *Controller {
	if chunkDays < 1 {
		chunkDays = 1
	}
	if chunkDays > MaxChunkDays {
		chunkDays = MaxChunkDays
	}
	// Zero pacing intervals are legitimate (no pacing), but the backfill
	// cursor and checkpoint cadence must be positive.
	if timing.DetailPageSize <= 0 {
		timing.DetailPageSize = DefaultTiming().DetailPageSize
	}
	if timing.DetailPersistEvery <= 0 {
		timing.DetailPersistEvery = DefaultTiming().DetailPersistEvery
	}
	return &Controller{
		db:        db,
		gw:        gw,
		creds:     creds,
		bus:       b,
		logger:    logger,
		timing:    timing,
		chunkDays: chunkDays,
		now:       time.Now,
	}
}

// Start arms the controller's background context.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx, c.cancel = context.WithCancel(ctx)
}

// Stop cancels all background runs and waits for them to wind down.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// StartPeriodSync validates and launches a sync over an explicit [from, to]
// span. Validation failures are hard rejections: no job row is created. The
// run itself is detached; the returned job id is the observation handle.
func (c *Controller) StartPeriodSync(companyID string, role Role, from, to time.Time) (string, error) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return "", ErrBadPeriod
	}
	if int(to.Sub(from).Hours()/24) >= MaxPeriodSpanDays {
		return "", ErrSpanTooLong
	}
	horizon := truncateDay(c.now()).AddDate(0, 0, -RetentionHorizonDays)
	if from.Before(horizon) {
		return "", ErrBeyondHorizon
	}
	return c.startRun(companyID, role, from, to, 0, "")
}

// StartStagedSync launches one fixed window of a staged full sync
// (stage 1..5 = last 7/30/90/365/1095 days). The stage marker lets a caller
// resume with the next stage after completion.
func (c *Controller) StartStagedSync(companyID string, role Role, stage int) (string, error) {
	window, ok := WindowForStage(stage)
	if !ok {
		return "", ErrUnknownStage
	}
	to := truncateDay(c.now())
	from := to.AddDate(0, 0, -window.Days)
	return c.startRun(companyID, role, from, to, window.Stage, window.Label)
}

func (c *Controller) startRun(companyID string, role Role, from, to time.Time, stage int, stageLabel string) (string, error) {
	if !role.CanSync() {
		return "", ErrUnauthorized
	}

	company, err := c.db.GetCompany(companyID)
	if err != nil {
		return "", err
	}
	if company == nil {
		return "", ErrUnknownCompany
	}
	cred, err := c.creds.Open(company)
	if err != nil {
		return "", err
	}

	if existing, err := c.db.FindProcessingJob(companyID); err != nil {
		return "", err
	} else if existing != nil {
		return "", store.ErrJobConflict
	}

	chunks := SplitPeriod(from, to, c.chunkDays)
	job := &store.SyncJob{
		CompanyID:   companyID,
		TotalChunks: len(chunks),
		PeriodStart: from.UnixMilli(),
		PeriodEnd:   to.AddDate(0, 0, 1).Add(-time.Millisecond).UnixMilli(),
		Stage:       stage,
		StageLabel:  stageLabel,
		StagePhase:  store.PhaseListing,
	}
	if stage == 0 {
		job.StagePhase = ""
	}
	if err := c.db.CreateJob(job); err != nil {
		return "", err
	}

	c.publish(bus.KindJobStarted, map[string]string{"job_id": job.ID, "company_id": companyID})

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	c.wg.Add(1)
	go c.supervise(job.ID, "list phase", func() error {
		return c.runListPhase(ctx, job.ID, cred, chunks)
	})

	return job.ID, nil
}

// CancelJob requests cooperative cancellation. Both run loops poll the job
// status at iteration boundaries; already-applied writes stay applied.
func (c *Controller) CancelJob(jobID string, role Role) error {
	if !role.CanSync() {
		return ErrUnauthorized
	}
	if err := c.db.TransitionJob(jobID, store.JobCancelled, ""); err != nil {
		return err
	}
	c.publish(bus.KindJobCancelled, map[string]string{"job_id": jobID})
	return nil
}

// supervise is the boundary around one background phase: a panic or an
// escaped error marks the job errored instead of taking the daemon down.
func (c *Controller) supervise(jobID, phase string, run func() error) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("sync phase panicked",
				zap.String("job_id", jobID), zap.String("phase", phase), zap.Any("panic", r))
			c.markErrored(jobID, fmt.Sprintf("%s: panic: %v", phase, r))
		}
	}()

	if err := run(); err != nil {
		c.logger.Error("sync phase failed",
			zap.String("job_id", jobID), zap.String("phase", phase), zap.Error(err))
		c.markErrored(jobID, fmt.Sprintf("%s: %v", phase, err))
	}
}

func (c *Controller) markErrored(jobID, message string) {
	if err := c.db.TransitionJob(jobID, store.JobError, message); err != nil {
		c.logger.Error("cannot mark job errored", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	c.publish(bus.KindJobErrored, map[string]string{"job_id": jobID, "error": message})
}

// runListPhase is phase 1: one sequential pass over the chunks. A failed
// chunk never aborts the run; it is recorded and the loop moves on.
func (c *Controller) runListPhase(ctx context.Context, jobID string, cred gateway.Credential, chunks []Chunk) error {
	limiter := rate.NewLimiter(rate.Every(c.timing.ChunkPacing), 1)
	itemCount := 0
	errorCount := 0

	for _, chunk := range chunks {
		job, err := c.db.GetJob(jobID)
		if err != nil {
			return err
		}
		if job == nil || job.Status != store.JobProcessing {
			// Cancelled (or otherwise finalized) out from under us: stop
			// making progress, keep what was already applied.
			return nil
		}

		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		summaries, retried, fetchErr := c.fetchListWithRetry(ctx, cred, chunk)
		if fetchErr != nil {
			errorCount++
			class := Classify(fetchErr)
			retryCount := 0
			if retried {
				retryCount = MaxChunkRetries
			}
			if err := c.db.AddJobFailure(&store.SyncJobFailure{
				JobID:        jobID,
				ChunkIndex:   chunk.Index,
				ChunkStart:   chunk.Start.UnixMilli(),
				ChunkEnd:     chunk.End.UnixMilli(),
				ErrorMessage: fetchErr.Error(),
				ErrorClass:   string(class),
				RetryCount:   retryCount,
				Retried:      retried,
			}); err != nil {
				c.logger.Error("cannot record chunk failure", zap.String("job_id", jobID), zap.Error(err))
			}
			_ = c.db.SetJobErrorCount(jobID, errorCount)
			metrics.ChunksTotal.WithLabelValues("failed").Inc()
			c.publish(bus.KindJobChunkFailed, map[string]string{"job_id": jobID, "class": string(class)})
		} else {
			n, upsertErr := c.applySummaries(job.CompanyID, chunk, summaries)
			itemCount += n
			if upsertErr != nil {
				// Persistence failures are not retried; they count against
				// this chunk's accounting and the run proceeds.
				errorCount++
				if err := c.db.AddJobFailure(&store.SyncJobFailure{
					JobID:        jobID,
					ChunkIndex:   chunk.Index,
					ChunkStart:   chunk.Start.UnixMilli(),
					ChunkEnd:     chunk.End.UnixMilli(),
					ErrorMessage: upsertErr.Error(),
					ErrorClass:   string(ClassPersistence),
				}); err != nil {
					c.logger.Error("cannot record chunk failure", zap.String("job_id", jobID), zap.Error(err))
				}
				_ = c.db.SetJobErrorCount(jobID, errorCount)
				metrics.ChunksTotal.WithLabelValues("failed").Inc()
			} else {
				metrics.ChunksTotal.WithLabelValues("ok").Inc()
			}
			c.publish(bus.KindJobChunkCompleted, map[string]any{"job_id": jobID, "items": n})
		}

		// The resumability checkpoint: success or failure, the chunk is done.
		if err := c.db.IncrementCompletedChunks(jobID); err != nil {
			return err
		}
	}

	job, err := c.db.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil || job.Status != store.JobProcessing {
		return nil
	}

	targets, err := c.db.CountMissingDetail(job.CompanyID, job.PeriodStart, job.PeriodEnd)
	if err != nil {
		return fmt.Errorf("count detail targets: %w", err)
	}
	if err := c.db.SetDetailTargets(jobID, targets); err != nil {
		return err
	}

	if err := c.db.AddHistoryEntry(&store.SyncHistoryEntry{
		JobID:      jobID,
		CompanyID:  job.CompanyID,
		Phase:      "list",
		ItemCount:  itemCount,
		ErrorCount: errorCount,
		Summary: fmt.Sprintf("list sync: %d declarations over %d periods, %d periods with errors",
			itemCount, len(chunks), errorCount),
	}); err != nil {
		c.logger.Error("cannot write history entry", zap.String("job_id", jobID), zap.Error(err))
	}

	if job.Stage > 0 {
		_ = c.db.SetJobStage(jobID, store.PhaseDetailing, 0)
	}

	// Phase 2 runs detached but supervised; its outcome still lands on the
	// same job row.
	c.wg.Add(1)
	go c.supervise(jobID, "detail phase", func() error {
		return c.runDetailPhase(ctx, jobID, cred)
	})
	return nil
}

// fetchListWithRetry applies the retry policy: at most one retry, after a
// class-specific backoff, for retryable classes only.
func (c *Controller) fetchListWithRetry(ctx context.Context, cred gateway.Credential, chunk Chunk) (summaries []*declparser.Summary, retried bool, err error) {
	summaries, err = c.gw.FetchList(ctx, cred, chunk.Start, chunk.End)
	if err == nil {
		return summaries, false, nil
	}

	class := Classify(err)
	if !class.Retryable() {
		return nil, false, err
	}

	metrics.ChunkRetriesTotal.WithLabelValues(string(class)).Inc()
	c.logger.Warn("chunk fetch failed, retrying once",
		zap.Int("chunk", chunk.Index), zap.String("class", string(class)), zap.Error(err))

	select {
	case <-time.After(c.timing.BackoffFor(class)):
	case <-ctx.Done():
		return nil, false, err
	}

	summaries, err = c.gw.FetchList(ctx, cred, chunk.Start, chunk.End)
	return summaries, true, err
}

// applySummaries upserts one chunk's items and refreshes the derived
// summary row after each write.
func (c *Controller) applySummaries(companyID string, chunk Chunk, summaries []*declparser.Summary) (int, error) {
	applied := 0
	for _, s := range summaries {
		docDate := parseRegistered(s.Registered)
		if docDate == 0 {
			// Keep undated records inside the job window so the backfill
			// worklist still finds them.
			docDate = chunk.Start.UnixMilli()
		}
		id, _, err := c.db.UpsertFromList(companyID, &store.ListUpsert{
			GUID:       s.GUID,
			MRNCustoms: s.MRNCustoms,
			MRNDate:    s.MRNDate,
			MRNNumber:  s.MRNNumber,
			Status:     store.StatusFromCode(s.StatusCode),
			DocDate:    docDate,
			Sender:     s.Sender,
			Receiver:   s.Receiver,
			Declarant:  s.Declarant,
			ListFields: s.Fields,
		})
		if err != nil {
			return applied, err
		}
		if err := c.refreshSummary(id); err != nil {
			return applied, err
		}
		applied++
		c.publish(bus.KindDeclUpserted, map[string]string{"declaration_id": id, "company_id": companyID})
	}
	return applied, nil
}

func (c *Controller) refreshSummary(declarationID string) error {
	decl, err := c.db.GetDeclaration(declarationID)
	if err != nil {
		return err
	}
	if decl == nil {
		return fmt.Errorf("declaration %s vanished", declarationID)
	}
	return c.db.UpdateDeclarationSummary(decl.ID, decl.RawPayload)
}

func (c *Controller) publish(kind string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// registeredLayouts are tried in order against the registration timestamp.
var registeredLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"20060102T150405",
	"2006-01-02",
}

// parseRegistered best-effort parses the registration timestamp; 0 means
// unparseable.
func parseRegistered(s string) int64 {
	for _, layout := range registeredLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
