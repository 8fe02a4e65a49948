package syncjob

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ykovtun/declsync/internal/bus"
	"github.com/ykovtun/declsync/internal/gateway"
	"github.com/ykovtun/declsync/internal/metrics"
	"github.com/ykovtun/declsync/internal/store"
)

// runDetailPhase is phase 2: the detail backfill. The worklist is re-derived
// from persisted state (records in range lacking detail data), never carried
// in memory from phase 1, which makes the whole pipeline crash-resumable.
func (c *Controller) runDetailPhase(ctx context.Context, jobID string, cred gateway.Credential) error {
	job, err := c.db.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil || job.Status != store.JobProcessing {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(c.timing.DetailPacing), 1)
	completed := job.CompletedDetailTargets
	errorCount := 0
	cursor := ""

	for {
		current, err := c.db.GetJob(jobID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != store.JobProcessing {
			_ = c.db.SetCompletedDetailTargets(jobID, completed)
			return nil
		}

		page, err := c.db.FindMissingDetail(job.CompanyID, job.PeriodStart, job.PeriodEnd,
			cursor, c.timing.DetailPageSize)
		if err != nil {
			return fmt.Errorf("page detail targets: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			decl := &page[i]
			cursor = decl.ID

			current, err := c.db.GetJob(jobID)
			if err != nil {
				return err
			}
			if current == nil || current.Status != store.JobProcessing {
				_ = c.db.SetCompletedDetailTargets(jobID, completed)
				return nil
			}

			// Mandatory pacing per the external rate policy; this, not the
			// fetch itself, dominates phase-2 wall time.
			if err := limiter.Wait(ctx); err != nil {
				_ = c.db.SetCompletedDetailTargets(jobID, completed)
				return err
			}

			detailXML, err := c.gw.FetchDetail(ctx, cred, decl.GUID)
			if err != nil {
				// One failed detail fetch never fails the job; the record
				// stays detail-less and a later run picks it up again.
				errorCount++
				metrics.DetailFetchesTotal.WithLabelValues("failed").Inc()
				c.logger.Warn("detail fetch failed",
					zap.String("job_id", jobID), zap.String("guid", decl.GUID), zap.Error(err))
				continue
			}
			if detailXML == "" {
				errorCount++
				metrics.DetailFetchesTotal.WithLabelValues("empty").Inc()
				continue
			}

			merged, err := c.db.MergeDetail(decl.ID, detailXML, false)
			if err != nil {
				errorCount++
				metrics.DetailFetchesTotal.WithLabelValues("failed").Inc()
				c.logger.Error("detail merge failed",
					zap.String("job_id", jobID), zap.String("declaration_id", decl.ID), zap.Error(err))
				continue
			}
			if !merged {
				// Someone already attached detail data; idempotent skip.
				continue
			}
			if err := c.refreshSummary(decl.ID); err != nil {
				c.logger.Error("summary refresh failed",
					zap.String("declaration_id", decl.ID), zap.Error(err))
			}

			completed++
			metrics.DetailFetchesTotal.WithLabelValues("ok").Inc()
			c.publish(bus.KindJobDetailFetched, map[string]string{"job_id": jobID, "guid": decl.GUID})

			// Batched checkpoint to bound write volume.
			if completed%c.timing.DetailPersistEvery == 0 {
				if err := c.db.SetCompletedDetailTargets(jobID, completed); err != nil {
					return err
				}
			}
		}
	}

	if err := c.db.SetCompletedDetailTargets(jobID, completed); err != nil {
		return err
	}

	return c.finalize(jobID, job, completed, errorCount)
}

// finalize moves the job to completed, advances the stage marker for staged
// runs, writes the phase-2 audit entry (only when there was anything to
// backfill), and kicks the downstream stats cache.
func (c *Controller) finalize(jobID string, job *store.SyncJob, completed, errorCount int) error {
	if job.Stage > 0 {
		next := 0
		if job.Stage < StageWindows[len(StageWindows)-1].Stage {
			next = job.Stage + 1
		}
		if err := c.db.SetJobStage(jobID, store.PhaseCompleted, next); err != nil {
			return err
		}
	}

	if err := c.db.TransitionJob(jobID, store.JobCompleted, ""); err != nil {
		if errors.Is(err, store.ErrBadTransition) {
			// A concurrent cancel landed first; its status stands.
			return nil
		}
		return err
	}

	final, err := c.db.GetJob(jobID)
	if err == nil && final != nil && final.TotalDetailTargets > 0 {
		if err := c.db.AddHistoryEntry(&store.SyncHistoryEntry{
			JobID:      jobID,
			CompanyID:  job.CompanyID,
			Phase:      "detail",
			ItemCount:  completed,
			ErrorCount: errorCount,
			Summary: fmt.Sprintf("detail backfill: %d of %d documents fetched, %d errors",
				completed, final.TotalDetailTargets, errorCount),
		}); err != nil {
			c.logger.Error("cannot write history entry", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	// Fire-and-forget: downstream aggregate caches re-derive lazily;
	// nobody listening is fine.
	c.publish(bus.KindStatsInvalidate, map[string]string{"company_id": job.CompanyID})
	c.publish(bus.KindJobCompleted, map[string]string{"job_id": jobID})
	return nil
}
