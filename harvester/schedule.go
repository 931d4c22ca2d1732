package harvester

import (
	"time"

	"github.com/openharvest/harvestmux/model"
)

// NextRunDate returns when a source is next due after a given run time. The
// second return value is false for manual (and unknown) frequencies, which
// are only harvested on explicit trigger.
func NextRunDate(frequency model.Frequency, from time.Time) (time.Time, bool) {
	switch frequency {
	case model.FrequencyDaily:
		return from.AddDate(0, 0, 1), true
	case model.FrequencyWeekly:
		return from.AddDate(0, 0, 7), true
	case model.FrequencyMonthly:
		return from.AddDate(0, 1, 0), true
	default:
		return time.Time{}, false
	}
}

// IsDue reports whether a source should be harvested now, given the creation
// time of its most recent job (zero if it has never run).
func IsDue(source *model.HarvestSource, lastJob time.Time, now time.Time) bool {
	if source.Frequency == model.FrequencyManual {
		return false
	}
	if lastJob.IsZero() {
		return true
	}
	next, ok := NextRunDate(source.Frequency, lastJob)
	if !ok {
		return false
	}
	return !next.After(now)
}
