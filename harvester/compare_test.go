package harvester

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/harvestmux/fetcher"
	"github.com/openharvest/harvestmux/model"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	out, err := time.Parse("2006-01-02", s)
	require.Nil(t, err)
	return out
}

func summary(t *testing.T, identifier, day string, action model.RecordAction, hash string) RecordSummary {
	return RecordSummary{
		Identifier:  identifier,
		DateCreated: date(t, day),
		Action:      action,
		Hash:        hash,
	}
}

func rawRecord(t *testing.T, identifier string, dataset map[string]interface{}) fetcher.RawRecord {
	if dataset == nil {
		dataset = map[string]interface{}{"identifier": identifier, "title": identifier}
	}
	return fetcher.RawRecord{Identifier: identifier, Dataset: dataset}
}

func wafSource() *model.HarvestSource {
	return &model.HarvestSource{Id: "source-1", SourceType: model.SourceTypeWaf}
}

func actionsByIdentifier(decisions []RecordDecision) map[string]model.RecordAction {
	out := map[string]model.RecordAction{}
	for _, d := range decisions {
		out[d.Identifier] = d.Action
	}
	return out
}

// the dated-history fixture: latest record per identifier decides presence
func TestReconcileAgainstRecordHistory(t *testing.T) {
	source := wafSource()

	cDataset := map[string]interface{}{"identifier": "c", "title": "c"}
	cHash, err := HashDataset(cDataset)
	require.Nil(t, err)

	// a: create then update -> present; b: latest by date is create -> present
	// c: present with a hash equal to the fetched payload's
	// d: create then delete -> absent; e: create, delete, create -> present
	state := map[string]RecordSummary{
		"a": summary(t, "a", "2024-03-01", model.ActionUpdate, "hash-a-old"),
		"b": summary(t, "b", "2024-03-01", model.ActionCreate, "hash-b"),
		"c": summary(t, "c", "2024-05-01", model.ActionCreate, cHash),
		"d": summary(t, "d", "2024-05-01", model.ActionDelete, ""),
		"e": summary(t, "e", "2024-04-03", model.ActionCreate, "hash-e"),
	}

	fetched := []fetcher.RawRecord{
		rawRecord(t, "a", nil), // content differs from hash-a-old
		rawRecord(t, "c", cDataset),
		rawRecord(t, "f", nil), // never seen before
	}

	decisions := Reconcile(source, fetched, state)

	want := map[string]model.RecordAction{
		"a": model.ActionUpdate,
		"f": model.ActionCreate,
		"b": model.ActionDelete,
		"e": model.ActionDelete,
	}
	if diff := cmp.Diff(want, actionsByIdentifier(decisions)); diff != "" {
		t.Errorf("unexpected decisions (-want +got):\n%s", diff)
	}
	// c is unchanged, d is already absent: no decision for either
	assert.Len(t, decisions, 4)
}

func TestReconcileUnchangedContentEmitsNothing(t *testing.T) {
	source := wafSource()
	dataset := map[string]interface{}{"identifier": "a", "title": "a"}
	hash, err := HashDataset(dataset)
	require.Nil(t, err)

	state := map[string]RecordSummary{
		"a": summary(t, "a", "2024-01-01", model.ActionCreate, hash),
	}
	decisions := Reconcile(source, []fetcher.RawRecord{rawRecord(t, "a", dataset)}, state)
	assert.Empty(t, decisions)
}

func TestReconcileEverythingGoneIsAllDeletes(t *testing.T) {
	source := wafSource()
	state := map[string]RecordSummary{
		"b": summary(t, "b", "2024-01-01", model.ActionCreate, "hb"),
		"a": summary(t, "a", "2024-01-01", model.ActionCreate, "ha"),
	}

	decisions := Reconcile(source, nil, state)
	require.Len(t, decisions, 2)
	// deletes come out in deterministic identifier order with no payload
	assert.Equal(t, "a", decisions[0].Identifier)
	assert.Equal(t, "b", decisions[1].Identifier)
	for _, d := range decisions {
		assert.Equal(t, model.ActionDelete, d.Action)
		assert.Empty(t, d.Hash)
		assert.Nil(t, d.Dataset)
	}
}

func TestReconcileDeletedIdentifierCanBeRecreated(t *testing.T) {
	source := wafSource()
	state := map[string]RecordSummary{
		"e": summary(t, "e", "2024-04-02", model.ActionDelete, ""),
	}

	decisions := Reconcile(source, []fetcher.RawRecord{rawRecord(t, "e", nil)}, state)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.ActionCreate, decisions[0].Action)
}

// a record's action is identical whether or not it is valid; only the
// validation result differs
func TestReconcileValidityIndependence(t *testing.T) {
	source := &model.HarvestSource{Id: "source-1", SourceType: model.SourceTypeDcatUS}
	invalid := map[string]interface{}{"identifier": "x"}

	decisions := Reconcile(source, []fetcher.RawRecord{rawRecord(t, "x", invalid)}, nil)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.ActionCreate, decisions[0].Action)
	assert.False(t, decisions[0].Validation.Valid)
	assert.NotEmpty(t, decisions[0].Validation.Errors)
	assert.NotEmpty(t, decisions[0].Hash)

	state := map[string]RecordSummary{
		"x": summary(t, "x", "2024-01-01", model.ActionCreate, "other-hash"),
	}
	decisions = Reconcile(source, []fetcher.RawRecord{rawRecord(t, "x", invalid)}, state)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.ActionUpdate, decisions[0].Action)
	assert.False(t, decisions[0].Validation.Valid)
}

func TestReconcileDuplicateIdentifierLastWins(t *testing.T) {
	source := wafSource()
	first := map[string]interface{}{"identifier": "a", "title": "first"}
	second := map[string]interface{}{"identifier": "a", "title": "second"}

	decisions := Reconcile(source, []fetcher.RawRecord{
		rawRecord(t, "a", first),
		rawRecord(t, "a", second),
	}, nil)

	require.Len(t, decisions, 1)
	assert.Equal(t, "second", decisions[0].Dataset["title"])
}

func TestReconcileRecordWithoutIdentifier(t *testing.T) {
	source := wafSource()
	decisions := Reconcile(source, []fetcher.RawRecord{
		{Dataset: map[string]interface{}{"title": "orphan"}},
	}, nil)

	require.Len(t, decisions, 1)
	assert.Equal(t, model.ActionCreate, decisions[0].Action)
	assert.False(t, decisions[0].Validation.Valid)
}

func TestReconcileIsIdempotentAcrossRuns(t *testing.T) {
	source := wafSource()
	dataset := map[string]interface{}{"identifier": "a", "title": "a"}
	fetched := []fetcher.RawRecord{rawRecord(t, "a", dataset)}

	first := Reconcile(source, fetched, nil)
	require.Len(t, first, 1)

	// apply the first run's decision, rerun the same fetch
	state := map[string]RecordSummary{
		"a": {Identifier: "a", DateCreated: time.Now(), Action: first[0].Action, Hash: first[0].Hash},
	}
	second := Reconcile(source, fetched, state)
	assert.Empty(t, second)
}
