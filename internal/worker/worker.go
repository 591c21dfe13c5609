package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/engagement"
	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/queue"
	"github.com/connect-event/backend/pkg/storage"
)

// settleTimeout bounds re-queueing or failing a job after its context ended.
const settleTimeout = 5 * time.Second

// Rankings is the engagement side of an export.
type Rankings interface {
	GetExport(ctx context.Context, id uuid.UUID) (*models.RankingExport, error)
	Ranking(ctx context.Context, f engagement.Filter) ([]models.EngagementScore, error)
	CompleteExport(ctx context.Context, id uuid.UUID, key string, rows int) error
	FailExport(ctx context.Context, id uuid.UUID, reason string) error
}

// Uploader stores rendered exports.
type Uploader interface {
	UploadExport(ctx context.Context, key string, body io.Reader) error
	DeleteExport(ctx context.Context, key string) error
}

// JobQueue is the queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// ExportProcessor renders ranking exports to CSV and uploads them to S3.
type ExportProcessor struct {
	rankings Rankings
	uploader Uploader
	queue    JobQueue
	backoff  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewExportProcessor creates a ranking export processor.
func NewExportProcessor(rankings Rankings, uploader Uploader, q JobQueue, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{
		rankings: rankings,
		uploader: uploader,
		queue:    q,
		backoff:  queue.RetryBackoff,
		now:      time.Now,
		logger:   logger,
	}
}

// Process executes one ranking export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRankingExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RankingExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	exp, err := p.rankings.GetExport(ctx, payload.ExportID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", payload.ExportID, err)
	}
	if exp.Status != models.ExportPending {
		p.logger.Info("ranking export already finished",
			zap.String("export_id", exp.ID.String()),
			zap.String("status", string(exp.Status)),
		)
		return nil
	}

	f, err := engagement.ExportFilter(exp)
	if err != nil {
		return err
	}
	scores, err := p.rankings.Ranking(ctx, f)
	if err != nil {
		return fmt.Errorf("build ranking: %w", err)
	}

	var buf bytes.Buffer
	if err := engagement.WriteCSV(&buf, scores); err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	key := storage.ExportKey(exp.ID.String(), p.now())
	if err := p.uploader.UploadExport(ctx, key, &buf); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.rankings.CompleteExport(ctx, exp.ID, key, len(scores)); err != nil {
		p.logger.Error("update export result failed", zap.Error(err), zap.String("export_id", exp.ID.String()))
		if derr := p.uploader.DeleteExport(ctx, key); derr != nil {
			p.logger.Warn("delete orphaned export", zap.String("s3_key", key), zap.Error(derr))
		}
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("ranking export completed",
		zap.String("export_id", exp.ID.String()),
		zap.String("s3_key", key),
		zap.Int("rows", len(scores)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			p.retry(ctx, job, err)
			p.sleep(ctx)
		}
	}
}

// retry re-queues a failed job, or marks its export failed once the job reaches
// the DLQ. It outlives ctx so a job interrupted by shutdown is not dropped.
func (p *ExportProcessor) retry(ctx context.Context, job *queue.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	moved, err := p.queue.Retry(ctx, job)
	if err != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !moved {
		return
	}
	var payload queue.RankingExportPayload
	if json.Unmarshal(job.Payload, &payload) != nil || payload.ExportID == uuid.Nil {
		return
	}
	if err := p.rankings.FailExport(ctx, payload.ExportID, cause.Error()); err != nil && !errors.Is(err, engagement.ErrExportNotFound) {
		p.logger.Error("mark export failed", zap.String("export_id", payload.ExportID.String()), zap.Error(err))
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
