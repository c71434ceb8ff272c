package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts the standard five-field form and descriptors like @hourly.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// GetTriggerInfo reports the triggers of cronExpr around refTime. Last is
// zero when no trigger happened in the year before refTime.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)

	// Step back an hour at a time until the schedule fires at or before refTime.
	for i := range 366 * 24 {
		candidate := schedule.Next(refTime.Add(-time.Minute - time.Duration(i)*time.Hour))
		if !candidate.After(refTime) {
			// Walk forward to the latest trigger not after refTime.
			for next := schedule.Next(candidate); !next.After(refTime); next = schedule.Next(next) {
				candidate = next
			}
			info.Last = candidate
			info.TimeSinceLast = refTime.Sub(candidate)
			break
		}
	}

	return info, nil
}
