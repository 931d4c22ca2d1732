package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordAction is the reconciliation decision for an identifier in one job.
// It is derived solely from identifier presence and hash equality across the
// identifier's history, never set arbitrarily.
type RecordAction string

const (
	ActionCreate RecordAction = "create"
	ActionUpdate RecordAction = "update"
	ActionDelete RecordAction = "delete"
)

// RecordStatus marks whether a record passed validation during its job.
type RecordStatus string

const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusError   RecordStatus = "error"
)

/*

HarvestRecord is one versioned observation of one external catalog entry as of one job

Records are append-only: a new job never mutates a prior job's records, it only
appends new ones. The current state of an identifier for a source is derived:
it is the record for that (source, identifier) pair with the maximum
DateCreated seen so far, ties broken by Seq (later append wins).

Id: primary key, use to identify a record version
DateCreated: time when the record version was appended
Seq: auto-increment append sequence, total order within the table

Identifier: publisher-assigned key, unique only within a source
HarvestJobId:
HarvestSourceId: owning job and source, "belongs-to" relations
Action: reconciliation decision, see RecordAction
Status: "success" or "error"; an invalid record is still stored with its
        action so the failure is auditable
SourceHash: sha256 digest of the canonicalized record content; empty and
            meaningless for delete records
SourceRaw: original payload for audit and debugging
Errors: validation failures attached to this record version
*/

type HarvestRecord struct {
	Id              string `gorm:"primaryKey"`
	DateCreated     time.Time
	DeletedAt       gorm.DeletedAt
	Seq             int64 `gorm:"autoIncrement"`
	Identifier      string
	HarvestJobId    string     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	HarvestJob      HarvestJob `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	HarvestSourceId string
	Action          RecordAction
	Status          RecordStatus
	SourceHash      string
	SourceRaw       datatypes.JSON
	Errors          []HarvestRecordError `gorm:"foreignKey:HarvestRecordId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

/*

HarvestRecordError is a validation failure scoped to one record version

HarvestRecordId: record this error belongs to, "belongs-to" relation
Message: human readable description of the failure
Type: classifier string, for example "ValidationException"
*/

type HarvestRecordError struct {
	Id              string `gorm:"primaryKey"`
	DateCreated     time.Time
	HarvestRecordId string `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Message         string
	Type            string
}
