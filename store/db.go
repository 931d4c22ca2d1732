package store

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/model"
)

// GetDBConnection gets a connection to the database specified by env
func GetDBConnection() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASS"), os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// DatabaseSetupAndMigration migrates all catalog models.
func DatabaseSetupAndMigration(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Organization{},
		&model.HarvestSource{},
		&model.HarvestJob{},
		&model.HarvestJobError{},
		&model.HarvestRecord{},
		&model.HarvestRecordError{},
	)
}

// DB is the gorm backed Store implementation.
type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

func (s *DB) CreateOrganization(org *model.Organization) error {
	if org.Id == "" {
		org.Id = uuid.New().String()
	}
	return s.db.Create(org).Error
}

func (s *DB) CreateHarvestSource(source *model.HarvestSource) error {
	if source.Id == "" {
		source.Id = uuid.New().String()
	}
	return s.db.Create(source).Error
}

func (s *DB) GetHarvestSource(id string) (*model.HarvestSource, error) {
	var source model.HarvestSource
	if err := s.db.First(&source, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "harvest source not found: %s", id)
	}
	return &source, nil
}

func (s *DB) ListHarvestSources() ([]model.HarvestSource, error) {
	var sources []model.HarvestSource
	err := s.db.Order("id").Find(&sources).Error
	return sources, err
}

func (s *DB) CreateHarvestJob(job *model.HarvestJob) error {
	if job.Id == "" {
		job.Id = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusNew
	}
	if job.DateCreated.IsZero() {
		job.DateCreated = time.Now().UTC()
	}
	return s.db.Create(job).Error
}

func (s *DB) GetHarvestJob(id string) (*model.HarvestJob, error) {
	var job model.HarvestJob
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "harvest job not found: %s", id)
	}
	return &job, nil
}

// BeginHarvestJob acquires a job for processing: a compare-and-set from new
// to in_progress, rejected when any other job for the source is already
// in_progress.
func (s *DB) BeginHarvestJob(jobID, sourceID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&model.HarvestJob{}).
			Where("harvest_source_id = ? AND status = ?", sourceID, model.JobStatusInProgress).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return errors.New("another job is already in progress for this source")
		}
		res := tx.Model(&model.HarvestJob{}).
			Where("id = ? AND status = ?", jobID, model.JobStatusNew).
			Update("status", model.JobStatusInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("harvest job is not in status new")
		}
		return nil
	})
}

func (s *DB) FinishHarvestJob(jobID string, status model.JobStatus) error {
	if !status.IsTerminal() {
		return errors.Errorf("%s is not a terminal job status", status)
	}
	res := s.db.Model(&model.HarvestJob{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusInProgress).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("harvest job is not in progress")
	}
	return nil
}

func (s *DB) LastJobDate(sourceID string) (time.Time, error) {
	var job model.HarvestJob
	err := s.db.Where("harvest_source_id = ?", sourceID).
		Order("date_created desc").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	return job.DateCreated, err
}

// AppendHarvestRecords appends one record version (with its attached errors)
// per decision, all in one transaction so a failed job never leaves a partial
// reconcile pass behind.
func (s *DB) AppendHarvestRecords(records []*model.HarvestRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if record.Id == "" {
				record.Id = uuid.New().String()
			}
			if record.DateCreated.IsZero() {
				record.DateCreated = time.Now().UTC()
			}
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DB) AppendHarvestJobError(jobError *model.HarvestJobError) error {
	if jobError.Id == "" {
		jobError.Id = uuid.New().String()
	}
	if jobError.DateCreated.IsZero() {
		jobError.DateCreated = time.Now().UTC()
	}
	return s.db.Create(jobError).Error
}

// LatestRecords derives the current state of a source with one DISTINCT ON
// pass over the append log: per identifier the row with the maximum
// date_created, ties broken by the append sequence (later wins).
func (s *DB) LatestRecords(sourceID string) (map[string]harvester.RecordSummary, error) {
	var rows []model.HarvestRecord
	err := s.db.Raw(`
		SELECT DISTINCT ON (identifier) id, identifier, date_created, action, source_hash
		FROM harvest_records
		WHERE harvest_source_id = ? AND identifier <> '' AND deleted_at IS NULL
		ORDER BY identifier, date_created DESC, seq DESC`, sourceID).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "cannot resolve latest records")
	}
	out := make(map[string]harvester.RecordSummary, len(rows))
	for _, row := range rows {
		out[row.Identifier] = harvester.RecordSummary{
			Identifier:  row.Identifier,
			DateCreated: row.DateCreated,
			Action:      row.Action,
			Hash:        row.SourceHash,
		}
	}
	return out, nil
}

func (s *DB) ListJobErrors(jobID string) ([]model.HarvestJobError, error) {
	var out []model.HarvestJobError
	err := s.db.Where("harvest_job_id = ?", jobID).Order("date_created").Find(&out).Error
	return out, err
}

func (s *DB) ListJobRecords(jobID string) ([]model.HarvestRecord, error) {
	var out []model.HarvestRecord
	err := s.db.Preload("Errors").Where("harvest_job_id = ?", jobID).Order("seq").Find(&out).Error
	return out, err
}
