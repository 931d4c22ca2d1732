package model

import (
	"time"

	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a harvest job.
// Valid transitions: new -> in_progress -> {complete, error}.
// Terminal states never change again.
type JobStatus string

const (
	JobStatusNew        JobStatus = "new"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// IsTerminal returns true iff the status can never transition again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

/*

HarvestJob is a data model for one execution of a harvest source

Id: primary key, use to identify a job
DateCreated: time when the job was created
DeletedAt: time when entity is deleted

HarvestSourceId:
HarvestSource: source this job executed, "belongs-to" relation
Status: lifecycle state, see JobStatus. At most one job per source may be
        in_progress at any time; the harvester enforces this with a
        compare-and-set on this column, not with a storage lock.
Records: record versions appended during this run, "has-many" relation
Errors: run-level failures (unreachable feed etc.), "has-many" relation
*/

type HarvestJob struct {
	Id              string `gorm:"primaryKey"`
	DateCreated     time.Time
	DeletedAt       gorm.DeletedAt
	HarvestSourceId string        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	HarvestSource   HarvestSource `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Status          JobStatus
	Records         []HarvestRecord   `gorm:"foreignKey:HarvestJobId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Errors          []HarvestJobError `gorm:"foreignKey:HarvestJobId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

/*

HarvestJobError is a failure that aborts or degrades a whole harvest run

Example: unreachable feed url, feed body that fails to parse as a whole

HarvestJobId: job this error belongs to, "belongs-to" relation
Message: human readable description of the failure
Type: classifier string, for example "FetchException"
*/

type HarvestJobError struct {
	Id           string `gorm:"primaryKey"`
	DateCreated  time.Time
	HarvestJobId string `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Message      string
	Type         string
}
