package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event is the envelope published for every record change
type Event struct {
	Kind      string      `json:"kind"`
	ID        string      `json:"id"`
	State     string      `json:"state"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message"`
	Record    interface{} `json:"record"`
	Timestamp time.Time   `json:"timestamp"`
}

func jobEvent(job models.QueryJob) Event {
	return Event{
		Kind:      "job",
		ID:        job.ID,
		State:     string(job.State),
		Progress:  job.Progress,
		Message:   job.Message,
		Record:    job,
		Timestamp: job.UpdatedAt,
	}
}

func batchEvent(batch models.BatchJob) Event {
	progress := 0
	if batch.Total > 0 {
		progress = batch.Processed * 100 / batch.Total
	}
	return Event{
		Kind:      "batch",
		ID:        batch.ID,
		State:     string(batch.State),
		Progress:  progress,
		Message:   batch.Message,
		Record:    batch,
		Timestamp: batch.UpdatedAt,
	}
}

// LogPublisher writes each change to the log
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a log publisher
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishJob(_ context.Context, job models.QueryJob) {
	entry := p.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"state":    job.State,
		"progress": job.Progress,
	})
	if job.State == models.StateFailed {
		entry.WithField("error", job.Error).Warn(job.Message)
		return
	}
	entry.Info(job.Message)
}

func (p *LogPublisher) PublishBatch(_ context.Context, batch models.BatchJob) {
	p.logger.WithFields(logrus.Fields{
		"batch_id":  batch.ID,
		"state":     batch.State,
		"processed": batch.Processed,
		"total":     batch.Total,
	}).Info(batch.Message)
}

func (p *LogPublisher) Close() error { return nil }

// NATSPublisher sends events on <subject>.job.<id> and <subject>.batch.<id>
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *logrus.Logger
}

// NewNATSPublisher connects to url, reconnecting forever
func NewNATSPublisher(url, subject string, logger *logrus.Logger) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("adres-eps-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	if subject == "" {
		subject = "adres.consultas"
	}
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}, nil
}

// Subject returns the subject an event is published on
func (p *NATSPublisher) Subject(evt Event) string {
	return fmt.Sprintf("%s.%s.%s", p.subject, evt.Kind, evt.ID)
}

func (p *NATSPublisher) publish(evt Event) {
	data, err := json.Marshal(evt)
	if err == nil {
		err = p.nc.Publish(p.Subject(evt), data)
	}
	if err != nil {
		p.logger.WithError(err).WithField("id", evt.ID).Warn("Failed to publish event")
	}
}

func (p *NATSPublisher) PublishJob(_ context.Context, job models.QueryJob) {
	p.publish(jobEvent(job))
}

func (p *NATSPublisher) PublishBatch(_ context.Context, batch models.BatchJob) {
	p.publish(batchEvent(batch))
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	err := p.nc.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

// MultiPublisher fans out to several publishers
type MultiPublisher []Publisher

func (m MultiPublisher) PublishJob(ctx context.Context, job models.QueryJob) {
	for _, p := range m {
		p.PublishJob(ctx, job)
	}
}

func (m MultiPublisher) PublishBatch(ctx context.Context, batch models.BatchJob) {
	for _, p := range m {
		p.PublishBatch(ctx, batch)
	}
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
