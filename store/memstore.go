package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/model"
)

// MemStore is an in-memory Store used in tests and local development runs.
// It implements the same append-only and compare-and-set semantics as the
// database-backed store.
type MemStore struct {
	mu sync.Mutex

	organizations map[string]*model.Organization
	sources       map[string]*model.HarvestSource
	jobs          map[string]*model.HarvestJob
	jobErrors     []model.HarvestJobError
	records       []*model.HarvestRecord
	seq           int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		organizations: map[string]*model.Organization{},
		sources:       map[string]*model.HarvestSource{},
		jobs:          map[string]*model.HarvestJob{},
	}
}

func (s *MemStore) CreateOrganization(org *model.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.Id == "" {
		org.Id = uuid.New().String()
	}
	s.organizations[org.Id] = org
	return nil
}

func (s *MemStore) CreateHarvestSource(source *model.HarvestSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source.Id == "" {
		source.Id = uuid.New().String()
	}
	s.sources[source.Id] = source
	return nil
}

func (s *MemStore) GetHarvestSource(id string) (*model.HarvestSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.sources[id]
	if !ok {
		return nil, errors.Errorf("harvest source not found: %s", id)
	}
	out := *source
	return &out, nil
}

func (s *MemStore) ListHarvestSources() ([]model.HarvestSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.HarvestSource, 0, len(s.sources))
	for _, source := range s.sources {
		out = append(out, *source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *MemStore) CreateHarvestJob(job *model.HarvestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Id == "" {
		job.Id = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusNew
	}
	if job.DateCreated.IsZero() {
		job.DateCreated = time.Now().UTC()
	}
	stored := *job
	s.jobs[job.Id] = &stored
	return nil
}

func (s *MemStore) GetHarvestJob(id string) (*model.HarvestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.Errorf("harvest job not found: %s", id)
	}
	out := *job
	return &out, nil
}

func (s *MemStore) BeginHarvestJob(jobID, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.jobs {
		if other.HarvestSourceId == sourceID && other.Status == model.JobStatusInProgress {
			return errors.New("another job is already in progress for this source")
		}
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Errorf("harvest job not found: %s", jobID)
	}
	if job.Status != model.JobStatusNew {
		return errors.Errorf("harvest job is %s, not new", job.Status)
	}
	job.Status = model.JobStatusInProgress
	return nil
}

func (s *MemStore) FinishHarvestJob(jobID string, status model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !status.IsTerminal() {
		return errors.Errorf("%s is not a terminal job status", status)
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Errorf("harvest job not found: %s", jobID)
	}
	if job.Status != model.JobStatusInProgress {
		return errors.Errorf("harvest job is %s, not in_progress", job.Status)
	}
	job.Status = status
	return nil
}

func (s *MemStore) LastJobDate(sourceID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for _, job := range s.jobs {
		if job.HarvestSourceId == sourceID && job.DateCreated.After(last) {
			last = job.DateCreated
		}
	}
	return last, nil
}

func (s *MemStore) AppendHarvestRecords(records []*model.HarvestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		if record.Id == "" {
			record.Id = uuid.New().String()
		}
		if record.DateCreated.IsZero() {
			record.DateCreated = time.Now().UTC()
		}
		s.seq++
		record.Seq = s.seq
		stored := *record
		s.records = append(s.records, &stored)
	}
	return nil
}

func (s *MemStore) AppendHarvestJobError(jobError *model.HarvestJobError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jobError.Id == "" {
		jobError.Id = uuid.New().String()
	}
	if jobError.DateCreated.IsZero() {
		jobError.DateCreated = time.Now().UTC()
	}
	s.jobErrors = append(s.jobErrors, *jobError)
	return nil
}

// LatestRecords derives the current state of a source: for every identifier,
// the record version with the maximum DateCreated, ties broken by append
// sequence (later wins).
func (s *MemStore) LatestRecords(sourceID string) (map[string]harvester.RecordSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]harvester.RecordSummary{}
	for _, record := range s.records {
		if record.HarvestSourceId != sourceID || record.Identifier == "" {
			continue
		}
		prior, ok := out[record.Identifier]
		if ok && record.DateCreated.Before(prior.DateCreated) {
			continue
		}
		out[record.Identifier] = harvester.RecordSummary{
			Identifier:  record.Identifier,
			DateCreated: record.DateCreated,
			Action:      record.Action,
			Hash:        record.SourceHash,
		}
	}
	return out, nil
}

func (s *MemStore) ListJobErrors(jobID string) ([]model.HarvestJobError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HarvestJobError
	for _, jobError := range s.jobErrors {
		if jobError.HarvestJobId == jobID {
			out = append(out, jobError)
		}
	}
	return out, nil
}

func (s *MemStore) ListJobRecords(jobID string) ([]model.HarvestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HarvestRecord
	for _, record := range s.records {
		if record.HarvestJobId == jobID {
			out = append(out, *record)
		}
	}
	return out, nil
}
