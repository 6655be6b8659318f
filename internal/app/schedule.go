package app

import (
	"campusattend/internal/config"
	"campusattend/internal/schedule"
)

// LoadSchedule builds the scheduler from PERIOD_TABLE, or the default table
// when it is unset.
func LoadSchedule(cfg config.App) (*schedule.Scheduler, error) {
	table := schedule.DefaultTable()
	if cfg.PeriodTable != "" {
		t, err := schedule.ParseTable(cfg.PeriodTableVersion, cfg.PeriodTable)
		if err != nil {
			return nil, err
		}
		table = t
	}
	return schedule.New(table)
}
