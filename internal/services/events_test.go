package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsCarryProgress(t *testing.T) {
	job := models.NewQueryJob("CC", "1", time.Now())
	require.NoError(t, job.Advance(models.StateSubmitting, "Enviando formulario", time.Now()))

	evt := jobEvent(job)
	assert.Equal(t, "job", evt.Kind)
	assert.Equal(t, "submitting", evt.State)
	assert.Equal(t, 75, evt.Progress)

	batch := models.NewBatchJob(4, time.Now())
	batch.Record(models.RowOutcome{State: models.StateCompleted}, time.Now())
	evt = batchEvent(batch)
	assert.Equal(t, "batch", evt.Kind)
	assert.Equal(t, 25, evt.Progress)

	assert.Zero(t, batchEvent(models.BatchJob{}).Progress)
}

func TestNATSSubject(t *testing.T) {
	p := &NATSPublisher{subject: "adres.consultas"}
	assert.Equal(t, "adres.consultas.job.CC_1_2_x", p.Subject(Event{Kind: "job", ID: "CC_1_2_x"}))
	assert.Equal(t, "adres.consultas.batch.9", p.Subject(Event{Kind: "batch", ID: "9"}))
}

func TestNATSUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "", logger.Discard())
	assert.Error(t, err)
}

func TestLogPublisherLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	p := NewLogPublisher(log)

	job := models.NewQueryJob("CC", "1", time.Now())
	p.PublishJob(context.Background(), job)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	job.Fail(errors.New("boom"), "Error: boom", time.Now())
	p.PublishJob(context.Background(), job)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "boom", hook.LastEntry().Data["error"])
}

type closeErr struct{ recorder }

func (*closeErr) Close() error { return errors.New("close failed") }

func TestMultiPublisherFansOut(t *testing.T) {
	a, b := &recorder{}, &closeErr{}
	m := MultiPublisher{a, b}

	m.PublishJob(context.Background(), models.NewQueryJob("CC", "1", time.Now()))
	m.PublishBatch(context.Background(), models.NewBatchJob(1, time.Now()))

	assert.Len(t, a.Jobs(), 1)
	assert.Len(t, b.Jobs(), 1)
	assert.Len(t, b.Batches(), 1)
	assert.EqualError(t, m.Close(), "close failed")
}
