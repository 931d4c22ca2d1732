package harvester

import (
	"sort"
	"time"

	"github.com/openharvest/harvestmux/fetcher"
	"github.com/openharvest/harvestmux/model"
)

// RecordSummary is the derived current state of one identifier for a source:
// the (date, action, hash) triple of its most recent record version.
type RecordSummary struct {
	Identifier  string
	DateCreated time.Time
	Action      model.RecordAction
	Hash        string
}

// Present returns true iff the identifier currently exists in the catalog. A
// latest action of delete marks the identifier absent going forward. A latest
// record with error status still counts as present: invalid content is
// recorded as the new current state so subsequent runs diff against it
// consistently.
func (s RecordSummary) Present() bool {
	return s.Action != model.ActionDelete
}

// StateReader resolves the current record summary per identifier for a
// source, as understood from harvest history.
type StateReader interface {
	LatestRecords(sourceID string) (map[string]RecordSummary, error)
}

// RecordDecision is one reconciliation outcome for one identifier in one job.
// Delete decisions carry no dataset, raw payload or hash.
type RecordDecision struct {
	Identifier string
	Action     model.RecordAction
	Hash       string
	Dataset    map[string]interface{}
	Raw        []byte
	Validation ValidationResult
}

// Reconcile diffs a complete fetched snapshot against the current stored
// state of a source and emits one decision per changed identifier:
//
//   - identifier not currently present            -> create
//   - present, fetched hash differs               -> update
//   - present, fetched hash equal                 -> nothing (no-op)
//   - present but absent from the fetch           -> delete
//
// Every fetched record is canonicalized, hashed and validated; validity never
// changes the action, only the decision's ValidationResult. When a fetch
// contains the same identifier more than once the last occurrence wins.
func Reconcile(source *model.HarvestSource, fetched []fetcher.RawRecord, state map[string]RecordSummary) []RecordDecision {
	variant := VariantForSource(source)

	var decisions []RecordDecision
	index := map[string]int{}
	seen := map[string]bool{}

	for _, raw := range fetched {
		dataset, _ := Canonicalize(raw.Dataset).(map[string]interface{})
		if dataset == nil {
			dataset = map[string]interface{}{}
		}
		validation := Validate(dataset, variant)

		hash, err := HashDataset(dataset)
		if err != nil {
			// content we cannot canonicalize is a record-level failure, never
			// a job-level one
			validation.Valid = false
			validation.Errors = append(validation.Errors, ValidationError{
				Message: err.Error(),
				Type:    ValidationExceptionType,
			})
		}

		decision := RecordDecision{
			Identifier: raw.Identifier,
			Hash:       hash,
			Dataset:    dataset,
			Raw:        raw.Raw,
			Validation: validation,
		}

		if raw.Identifier == "" {
			// unkeyed records cannot be diffed against prior state, they are
			// recorded as failed creates for auditability
			decision.Action = model.ActionCreate
			decisions = append(decisions, decision)
			continue
		}

		seen[raw.Identifier] = true

		prior, known := state[raw.Identifier]
		switch {
		case !known || !prior.Present():
			decision.Action = model.ActionCreate
		case prior.Hash == hash:
			// content unchanged, nothing to record
			if i, dup := index[raw.Identifier]; dup {
				decisions = append(decisions[:i], decisions[i+1:]...)
				delete(index, raw.Identifier)
				for ident, j := range index {
					if j > i {
						index[ident] = j - 1
					}
				}
			}
			continue
		default:
			decision.Action = model.ActionUpdate
		}

		if i, dup := index[raw.Identifier]; dup {
			decisions[i] = decision
			continue
		}
		index[raw.Identifier] = len(decisions)
		decisions = append(decisions, decision)
	}

	// identifiers present in prior state but absent from this fetch are
	// deleted; sort for deterministic output across runs
	var gone []string
	for identifier, prior := range state {
		if prior.Present() && !seen[identifier] {
			gone = append(gone, identifier)
		}
	}
	sort.Strings(gone)
	for _, identifier := range gone {
		decisions = append(decisions, RecordDecision{
			Identifier: identifier,
			Action:     model.ActionDelete,
			Validation: ValidationResult{Valid: true},
		})
	}

	return decisions
}
