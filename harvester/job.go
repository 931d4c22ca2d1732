package harvester

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openharvest/harvestmux/fetcher"
	"github.com/openharvest/harvestmux/model"
	Logger "github.com/openharvest/harvestmux/utils/log"
)

const (
	// FetchExceptionType classifies job errors raised at the fetch boundary.
	FetchExceptionType = "FetchException"
	// StorageExceptionType classifies job errors raised by the record store.
	StorageExceptionType = "StorageException"
)

// Store is the narrow persistence contract the engine runs against. Record
// writes are append-only; job status is the only mutable column and only
// through the two compare-and-set transitions below.
type Store interface {
	StateReader

	GetHarvestSource(id string) (*model.HarvestSource, error)
	GetHarvestJob(id string) (*model.HarvestJob, error)

	// BeginHarvestJob transitions a job from new to in_progress iff no other
	// job for the source is in_progress. This compare-and-set is the sole
	// mutual-exclusion lock at source granularity.
	BeginHarvestJob(jobID, sourceID string) error
	// FinishHarvestJob transitions a job from in_progress to a terminal
	// status. Terminal statuses never change again.
	FinishHarvestJob(jobID string, status model.JobStatus) error

	AppendHarvestRecords(records []*model.HarvestRecord) error
	AppendHarvestJobError(jobError *model.HarvestJobError) error
}

// Notifier is told about finished jobs. Notification failures never alter a
// job outcome.
type Notifier interface {
	JobFinished(source *model.HarvestSource, job *model.HarvestJob, counts JobCounts) error
}

// JobCounts are the terminal record counts of a finished job, stable and
// reportable only once the job reaches complete or error.
type JobCounts struct {
	Created int
	Updated int
	Deleted int
	Errored int
}

// Harvester runs harvest jobs end to end: fetch, reconcile, persist, report.
// Jobs for different sources share no mutable state and may run concurrently.
type Harvester struct {
	Store    Store
	Fetcher  fetcher.Fetcher
	Notifier Notifier
}

// RunJob executes one harvest job. Record-level failures never fail the run;
// fetch failures do, recording a single job error and no record decisions. A
// cancelled context aborts at the fetch boundary the same way.
func (h *Harvester) RunJob(ctx context.Context, jobID string) error {
	job, err := h.Store.GetHarvestJob(jobID)
	if err != nil {
		return errors.Wrap(err, "cannot load harvest job")
	}
	source, err := h.Store.GetHarvestSource(job.HarvestSourceId)
	if err != nil {
		return errors.Wrap(err, "cannot load harvest source")
	}

	if err := h.Store.BeginHarvestJob(job.Id, source.Id); err != nil {
		// the job was not acquired and keeps its current status; the next due
		// run retries
		return errors.Wrap(err, "cannot begin harvest job")
	}
	job.Status = model.JobStatusInProgress
	Logger.Log.WithFields(logrus.Fields{
		"job_id":    job.Id,
		"source_id": source.Id,
		"source":    source.Name,
	}).Info("harvest job started")

	fetched, err := h.Fetcher.Fetch(ctx, source)
	if err != nil {
		return h.failJob(source, job, FetchExceptionType, errors.Wrap(err, "fetch failed"))
	}

	state, err := h.Store.LatestRecords(source.Id)
	if err != nil {
		return h.failJob(source, job, StorageExceptionType, errors.Wrap(err, "cannot resolve current state"))
	}

	decisions := Reconcile(source, fetched, state)

	records := make([]*model.HarvestRecord, 0, len(decisions))
	var counts JobCounts
	for _, d := range decisions {
		records = append(records, recordForDecision(source, job, d))
		switch d.Action {
		case model.ActionCreate:
			counts.Created++
		case model.ActionUpdate:
			counts.Updated++
		case model.ActionDelete:
			counts.Deleted++
		}
		if !d.Validation.Valid {
			counts.Errored++
		}
	}
	if err := h.Store.AppendHarvestRecords(records); err != nil {
		return h.failJob(source, job, StorageExceptionType, errors.Wrap(err, "cannot persist harvest records"))
	}

	if err := h.Store.FinishHarvestJob(job.Id, model.JobStatusComplete); err != nil {
		return errors.Wrap(err, "cannot complete harvest job")
	}
	job.Status = model.JobStatusComplete

	Logger.Log.WithFields(logrus.Fields{
		"job_id":  job.Id,
		"source":  source.Name,
		"created": counts.Created,
		"updated": counts.Updated,
		"deleted": counts.Deleted,
		"errored": counts.Errored,
	}).Info("harvest job complete")

	h.notify(source, job, counts)
	return nil
}

// failJob records a job-level error, classified by the boundary it crossed,
// and moves the job to its error terminal state. No record decisions are
// persisted for a failed job.
func (h *Harvester) failJob(source *model.HarvestSource, job *model.HarvestJob, errType string, cause error) error {
	jobError := &model.HarvestJobError{
		Id:           uuid.New().String(),
		DateCreated:  time.Now().UTC(),
		HarvestJobId: job.Id,
		Message:      cause.Error(),
		Type:         errType,
	}
	if err := h.Store.AppendHarvestJobError(jobError); err != nil {
		Logger.Log.WithField("job_id", job.Id).Error("cannot persist job error: ", err)
	}
	if err := h.Store.FinishHarvestJob(job.Id, model.JobStatusError); err != nil {
		Logger.Log.WithField("job_id", job.Id).Error("cannot mark job as failed: ", err)
	}
	job.Status = model.JobStatusError

	Logger.Log.WithFields(logrus.Fields{
		"job_id": job.Id,
		"source": source.Name,
	}).Error("harvest job failed: ", cause)

	h.notify(source, job, JobCounts{})
	return cause
}

func (h *Harvester) notify(source *model.HarvestSource, job *model.HarvestJob, counts JobCounts) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.JobFinished(source, job, counts); err != nil {
		Logger.Log.WithField("job_id", job.Id).Warn("cannot notify job outcome: ", err)
	}
}

func recordForDecision(source *model.HarvestSource, job *model.HarvestJob, d RecordDecision) *model.HarvestRecord {
	record := &model.HarvestRecord{
		Id:              uuid.New().String(),
		DateCreated:     time.Now().UTC(),
		Identifier:      d.Identifier,
		HarvestJobId:    job.Id,
		HarvestSourceId: source.Id,
		Action:          d.Action,
		Status:          model.RecordStatusSuccess,
		SourceHash:      d.Hash,
	}
	if d.Action == model.ActionDelete {
		// deletes carry no content
		record.SourceHash = ""
		return record
	}
	if len(d.Raw) > 0 && json.Valid(d.Raw) {
		record.SourceRaw = d.Raw
	} else if b, err := json.Marshal(d.Dataset); err == nil {
		record.SourceRaw = b
	}
	if !d.Validation.Valid {
		record.Status = model.RecordStatusError
		for _, e := range d.Validation.Errors {
			record.Errors = append(record.Errors, model.HarvestRecordError{
				Id:              uuid.New().String(),
				DateCreated:     record.DateCreated,
				HarvestRecordId: record.Id,
				Message:         e.Message,
				Type:            e.Type,
			})
		}
	}
	return record
}
