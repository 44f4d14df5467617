package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// BatchProcessor runs spreadsheet rows one after another, each as its own
// query job with its own browser session.
type BatchProcessor struct {
	runner *Runner
	store  JobStore
	events Publisher
	files  ArtifactStore
	logger *logrus.Logger

	// RowPause is the wait between consecutive rows
	RowPause time.Duration
	now      func() time.Time
}

// NewBatchProcessor creates a batch processor on top of runner
func NewBatchProcessor(runner *Runner, store JobStore, events Publisher, files ArtifactStore, rowPause time.Duration, logger *logrus.Logger) *BatchProcessor {
	return &BatchProcessor{
		runner:   runner,
		store:    store,
		events:   events,
		files:    files,
		logger:   logger,
		RowPause: rowPause,
		now:      time.Now,
	}
}

// Process drives batch through rows and returns the terminal snapshot.
// Invalid rows fail without opening a browser. When ctx ends the remaining
// rows are recorded as failed.
func (p *BatchProcessor) Process(ctx context.Context, batch models.BatchJob, rows []models.BatchRow) models.BatchJob {
	log := p.logger.WithFields(logrus.Fields{"batch_id": batch.ID, "total": batch.Total})
	log.Info("Batch started")

	batch.State = models.BatchRunning
	batch.Message = fmt.Sprintf("Procesando 0/%d", batch.Total)
	batch.UpdatedAt = p.now()
	p.commit(ctx, batch)

	for i, row := range rows {
		if ctx.Err() != nil {
			for _, rest := range rows[i:] {
				batch.Record(interrupted(rest), p.now())
			}
			break
		}

		outcome, ran := p.processRow(ctx, &batch, i, row)
		batch.Record(outcome, p.now())
		batch.Message = fmt.Sprintf("Procesadas %d/%d", batch.Processed, batch.Total)
		p.commit(ctx, batch)

		if ran && i < len(rows)-1 {
			_ = utils.Sleep(ctx, p.RowPause)
		}
	}

	return p.finish(ctx, batch, log)
}

// processRow reports whether the row reached the browser
func (p *BatchProcessor) processRow(ctx context.Context, batch *models.BatchJob, i int, row models.BatchRow) (models.RowOutcome, bool) {
	documentType, number, err := utils.ValidateDocument(row.DocumentType, row.DocumentNumber)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"batch_id": batch.ID,
			"line":     row.Line,
		}).Warn("Skipping invalid batch row")
		outcome := interrupted(row)
		outcome.Message = "Fila inválida: " + err.Error()
		outcome.Error = err.Error()
		return outcome, false
	}

	batch.Message = fmt.Sprintf("Procesando %d/%d: %s %s", i+1, batch.Total, documentType, number)
	batch.UpdatedAt = p.now()
	p.commit(ctx, *batch)

	job := models.NewQueryJob(documentType, number, p.now())
	final := <-p.runner.Start(ctx, job)

	// the row outcome carries everything the per-row record had
	if err := p.store.DeleteJob(context.WithoutCancel(ctx), final.ID); err != nil {
		p.logger.WithError(err).WithField("job_id", final.ID).Debug("Could not drop row job")
	}

	return models.RowOutcome{
		Line:           row.Line,
		DocumentType:   documentType,
		DocumentNumber: number,
		State:          final.State,
		Message:        final.Message,
		Result:         final.Result,
		Error:          final.Error,
		ArtifactName:   final.ArtifactName,
		Artifacts:      final.Artifacts,
		DownloadLinks:  final.DownloadLinks,
	}, true
}

func interrupted(row models.BatchRow) models.RowOutcome {
	return models.RowOutcome{
		Line:           row.Line,
		DocumentType:   utils.NormalizeDocumentType(row.DocumentType),
		DocumentNumber: utils.NormalizeDocumentNumber(row.DocumentNumber),
		State:          models.StateFailed,
		Message:        MessageInterrupted,
		Error:          context.Canceled.Error(),
	}
}

func (p *BatchProcessor) finish(ctx context.Context, batch models.BatchJob, log *logrus.Entry) models.BatchJob {
	location, err := p.files.SaveBatch(context.WithoutCancel(ctx), batch.ID, batch.Outcomes)
	switch {
	case err != nil:
		log.WithError(err).Error("Failed to save batch summary")
		batch.State = models.BatchFailed
		batch.Error = err.Error()
		batch.Message = "Error guardando el resumen del lote"
	default:
		batch.State = models.BatchCompleted
		batch.Artifact = location
		batch.DownloadLink = fmt.Sprintf("/api/v1/batches/%s/download", batch.ID)
		batch.Message = fmt.Sprintf("Lote completado: %d exitosas, %d fallidas", batch.Succeeded, batch.Failed)
	}
	batch.UpdatedAt = p.now()
	p.commit(ctx, batch)

	log.WithFields(logrus.Fields{
		"succeeded": batch.Succeeded,
		"failed":    batch.Failed,
		"state":     batch.State,
	}).Info("Batch finished")
	return batch
}

func (p *BatchProcessor) commit(ctx context.Context, batch models.BatchJob) {
	ctx = context.WithoutCancel(ctx)
	if err := p.store.SaveBatch(ctx, batch); err != nil {
		p.logger.WithError(err).WithField("batch_id", batch.ID).Error("Failed to save batch")
	}
	p.events.PublishBatch(ctx, batch)
}

