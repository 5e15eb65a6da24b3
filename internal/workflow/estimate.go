package workflow

import (
	"context"
	"time"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/params"
	"github.com/roach88/qms/internal/store"
)

// estimate computes max(dayStart, createTime) + waiting minutes.
//
// Waiting minutes are processDuration+fluctuation (at least one minute), or
// waitingCount*processDuration when EstimateByWaitingCount is set.
func (s *Service) estimate(ctx context.Context, tx *store.Tx, r *params.Reader, queueID int64, day model.Day, createTime time.Time) (time.Time, error) {
	hour, minute := r.TimeOfDay(params.DayStartTime, params.DefaultDayStartTime)
	base := day.At(hour, minute, createTime.Location())
	if createTime.After(base) {
		base = createTime
	}

	process, err := processMinutes(ctx, tx, r, queueID)
	if err != nil {
		return time.Time{}, err
	}

	var wait int
	if r.Bool(params.EstimateByWaitingCount, false) {
		waiting, err := tx.CountByState(ctx, queueID, model.StateWait, day)
		if err != nil {
			return time.Time{}, err
		}
		wait = waiting * process
	} else {
		wait = max(process+r.Int(params.ProcessFluctuationMinutes, params.DefaultFluctuationMinutes), 1)
	}
	return base.Add(time.Duration(wait) * time.Minute), nil
}

// processMinutes is the service duration of the queue's first active counter,
// falling back to DefaultProcessMinutes.
func processMinutes(ctx context.Context, tx *store.Tx, r *params.Reader, queueID int64) (int, error) {
	def := r.Int(params.DefaultProcessMinutes, params.DefaultProcessMinutesVal)
	counters, err := tx.CountersByQueue(ctx, queueID)
	if err != nil {
		return 0, err
	}
	for _, c := range counters {
		if !c.Active {
			continue
		}
		if c.ProcessMinutes > 0 {
			return c.ProcessMinutes, nil
		}
		break
	}
	return def, nil
}
