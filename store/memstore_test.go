package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/harvestmux/model"
)

const (
	sourceOne = "2f2652de-91df-4c63-8b53-bfced20b276b"
	sourceTwo = "3f2652de-91df-4c63-8b53-bfced20b276b"
	jobOne    = "392ac4b3-79a6-414b-a2b3-d6c607d3b8d4"
)

func seedRecord(t *testing.T, st *MemStore, sourceID, identifier, day string, action model.RecordAction, status model.RecordStatus, hash string) {
	t.Helper()
	date, err := time.Parse("2006-01-02", day)
	require.Nil(t, err)
	require.Nil(t, st.AppendHarvestRecords([]*model.HarvestRecord{{
		Identifier:      identifier,
		DateCreated:     date,
		HarvestJobId:    jobOne,
		HarvestSourceId: sourceID,
		Action:          action,
		Status:          status,
		SourceHash:      hash,
	}}))
}

// the dated history fixture: per identifier the max date_created record is
// the current state, regardless of the order rows were appended in
func TestLatestRecords(t *testing.T) {
	st := NewMemStore()

	// a: created then updated
	seedRecord(t, st, sourceOne, "a", "2024-01-01", model.ActionCreate, model.RecordStatusSuccess, "hash-a-1")
	seedRecord(t, st, sourceOne, "a", "2024-03-01", model.ActionUpdate, model.RecordStatusSuccess, "hash-a-2")
	// b: newest row appended before an older errored one
	seedRecord(t, st, sourceOne, "b", "2024-03-01", model.ActionCreate, model.RecordStatusSuccess, "hash-b-new")
	seedRecord(t, st, sourceOne, "b", "2022-05-01", model.ActionUpdate, model.RecordStatusError, "hash-b-old")
	// c: single create
	seedRecord(t, st, sourceOne, "c", "2024-05-01", model.ActionCreate, model.RecordStatusSuccess, "hash-c")
	// d: deleted after create (delete row appended first)
	seedRecord(t, st, sourceOne, "d", "2024-05-01", model.ActionDelete, model.RecordStatusSuccess, "")
	seedRecord(t, st, sourceOne, "d", "2024-04-01", model.ActionCreate, model.RecordStatusSuccess, "hash-d")
	// e: create, delete, create again
	seedRecord(t, st, sourceOne, "e", "2024-04-01", model.ActionCreate, model.RecordStatusSuccess, "hash-e")
	seedRecord(t, st, sourceOne, "e", "2024-04-02", model.ActionDelete, model.RecordStatusSuccess, "")
	seedRecord(t, st, sourceOne, "e", "2024-04-03", model.ActionCreate, model.RecordStatusSuccess, "hash-e")
	// f belongs to a different source
	seedRecord(t, st, sourceTwo, "f", "2024-04-03", model.ActionCreate, model.RecordStatusSuccess, "hash-f")

	latest, err := st.LatestRecords(sourceOne)
	require.Nil(t, err)
	require.Len(t, latest, 5)

	assert.Equal(t, model.ActionUpdate, latest["a"].Action)
	assert.Equal(t, "hash-a-2", latest["a"].Hash)
	assert.True(t, latest["a"].Present())

	assert.Equal(t, model.ActionCreate, latest["b"].Action)
	assert.Equal(t, "hash-b-new", latest["b"].Hash)

	assert.Equal(t, model.ActionDelete, latest["d"].Action)
	assert.False(t, latest["d"].Present())

	assert.Equal(t, model.ActionCreate, latest["e"].Action)
	assert.True(t, latest["e"].Present())

	// identifiers are scoped per source
	_, ok := latest["f"]
	assert.False(t, ok)

	other, err := st.LatestRecords(sourceTwo)
	require.Nil(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "hash-f", other["f"].Hash)
}

// identical timestamps: the later appended record wins
func TestLatestRecordsTieBreaksByAppendOrder(t *testing.T) {
	st := NewMemStore()
	seedRecord(t, st, sourceOne, "a", "2024-04-01", model.ActionCreate, model.RecordStatusSuccess, "hash-1")
	seedRecord(t, st, sourceOne, "a", "2024-04-01", model.ActionUpdate, model.RecordStatusSuccess, "hash-2")

	latest, err := st.LatestRecords(sourceOne)
	require.Nil(t, err)
	assert.Equal(t, "hash-2", latest["a"].Hash)
	assert.Equal(t, model.ActionUpdate, latest["a"].Action)
}

func TestBeginHarvestJobMutualExclusion(t *testing.T) {
	st := NewMemStore()
	require.Nil(t, st.CreateHarvestJob(&model.HarvestJob{Id: "job-1", HarvestSourceId: sourceOne, Status: model.JobStatusNew}))
	require.Nil(t, st.CreateHarvestJob(&model.HarvestJob{Id: "job-2", HarvestSourceId: sourceOne, Status: model.JobStatusNew}))
	require.Nil(t, st.CreateHarvestJob(&model.HarvestJob{Id: "job-3", HarvestSourceId: sourceTwo, Status: model.JobStatusNew}))

	require.Nil(t, st.BeginHarvestJob("job-1", sourceOne))
	// same source: rejected while job-1 is in progress
	assert.NotNil(t, st.BeginHarvestJob("job-2", sourceOne))
	// a different source is unaffected
	assert.Nil(t, st.BeginHarvestJob("job-3", sourceTwo))

	// after job-1 finishes, job-2 can acquire
	require.Nil(t, st.FinishHarvestJob("job-1", model.JobStatusComplete))
	assert.Nil(t, st.BeginHarvestJob("job-2", sourceOne))
}

func TestFinishHarvestJobRequiresInProgress(t *testing.T) {
	st := NewMemStore()
	require.Nil(t, st.CreateHarvestJob(&model.HarvestJob{Id: "job-1", HarvestSourceId: sourceOne, Status: model.JobStatusNew}))

	assert.NotNil(t, st.FinishHarvestJob("job-1", model.JobStatusComplete))
	assert.NotNil(t, st.FinishHarvestJob("job-1", model.JobStatusNew))

	require.Nil(t, st.BeginHarvestJob("job-1", sourceOne))
	require.Nil(t, st.FinishHarvestJob("job-1", model.JobStatusError))

	job, err := st.GetHarvestJob("job-1")
	require.Nil(t, err)
	assert.Equal(t, model.JobStatusError, job.Status)
}

func TestLastJobDate(t *testing.T) {
	st := NewMemStore()

	last, err := st.LastJobDate(sourceOne)
	require.Nil(t, err)
	assert.True(t, last.IsZero())

	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Nil(t, st.CreateHarvestJob(&model.HarvestJob{HarvestSourceId: sourceOne, DateCreated: late}))
	require.Nil(t, st.CreateHarvestJob(&model.HarvestJob{HarvestSourceId: sourceOne, DateCreated: early}))

	last, err = st.LastJobDate(sourceOne)
	require.Nil(t, err)
	assert.Equal(t, late, last)
}
