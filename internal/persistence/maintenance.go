package persistence

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cc-sentinel/sentinel/internal/slog"
)

// DefaultMaintenanceInterval is how often StartMaintenance runs a VACUUM,
// per spec §9's cadence-policy resolution: maintenance is periodic
// background work, not something triggered per-request.
const DefaultMaintenanceInterval = 24 * time.Hour

// StartMaintenance schedules a periodic VACUUM: write traffic is paused
// for its duration via MaintenanceMode so the single writer connection
// never contends with it, matching the teacher's retentionService.go
// "pause, sweep, resume" shape.
func (s *Store) StartMaintenance(interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runMaintenanceSweep),
	); err != nil {
		return err
	}
	sched.Start()
	s.maintenanceScheduler = sched
	return nil
}

func (s *Store) runMaintenanceSweep() {
	s.SetMaintenanceMode(true)
	defer s.SetMaintenanceMode(false)

	if _, err := s.db.Exec("VACUUM"); err != nil {
		slog.Warnf("persistence: maintenance vacuum failed: %v", err)
	}
}

// StopMaintenance shuts down the maintenance scheduler, if started.
func (s *Store) StopMaintenance() error {
	if s.maintenanceScheduler == nil {
		return nil
	}
	return s.maintenanceScheduler.Shutdown()
}
