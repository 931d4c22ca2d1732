// Package store implements the persistence contract of the harvest engine:
// durable storage of organizations, sources, jobs and append-only record
// history, plus the derived latest-record state read.
package store

import (
	"time"

	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/model"
)

// Store is the full persistence surface. It is a superset of
// harvester.Store: the extra methods serve the API server and the due-source
// loop, not the engine itself.
type Store interface {
	harvester.Store

	CreateOrganization(org *model.Organization) error
	CreateHarvestSource(source *model.HarvestSource) error
	ListHarvestSources() ([]model.HarvestSource, error)

	CreateHarvestJob(job *model.HarvestJob) error
	// LastJobDate returns the creation time of the most recent job for a
	// source, zero if the source has never run.
	LastJobDate(sourceID string) (time.Time, error)

	ListJobErrors(jobID string) ([]model.HarvestJobError, error)
	ListJobRecords(jobID string) ([]model.HarvestRecord, error)
}
