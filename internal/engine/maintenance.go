package engine

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartMaintenance schedules the periodic jobs: long-term retention
// refresh and defensive tier snapshots. Jobs are wrapped so a run that
// overlaps its interval is skipped rather than stacked.
func (e *Engine) StartMaintenance() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(e.log.StandardLog())),
	))

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", e.cfg.Maintenance.Interval), e.maintainLongTerm); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", e.cfg.Backup.Interval), e.scheduledBackup); err != nil {
		return fmt.Errorf("schedule backups: %w", err)
	}

	c.Start()
	e.cron = c
	e.log.Info("maintenance started",
		"retention_interval", e.cfg.Maintenance.Interval,
		"backup_interval", e.cfg.Backup.Interval)
	return nil
}

// StopMaintenance halts the schedule and waits for a running job to end.
func (e *Engine) StopMaintenance() {
	e.mu.Lock()
	c := e.cron
	e.cron = nil
	e.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// maintainLongTerm recomputes and persists retention snapshots for the
// long-term tier, independent of read/write traffic.
func (e *Engine) maintainLongTerm() {
	e.long.RefreshRetention()
	e.log.Debug("long-term retention refreshed", "items", e.long.Len())
}

func (e *Engine) scheduledBackup() {
	e.mu.Lock()
	e.lastBackup = time.Now()
	e.mu.Unlock()
	e.snapshotAll()
}
