package scheduler

import (
	"testing"

	"booksphere-backend/internal/config"
	"booksphere-backend/internal/jobs"

	"github.com/stretchr/testify/assert"
)

func TestNewScheduler_RegistersJobs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler = config.SchedulerConfig{
		NotifyOverdueRentals: "0 0 2 * * *",
		RecalculateLateFees:  "0 30 2 * * *",
		SendDueReminders:     "0 0 9 * * *",
		AuditInventory:       "0 0 4 * * *",
	}
	s := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	assert.Equal(t, 4, s.JobCount())
	assert.True(t, s.IsRunning())
}

func TestNewScheduler_SkipsBadSpec(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler = config.SchedulerConfig{
		NotifyOverdueRentals: "not a cron spec",
		RecalculateLateFees:  "0 30 2 * * *",
		SendDueReminders:     "0 0 9 * * *",
		AuditInventory:       "0 0 4 * * *",
	}
	s := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	assert.Equal(t, 3, s.JobCount())
}
