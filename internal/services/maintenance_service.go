package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"db-schema-keeper/internal/models"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// MaintenanceStatus is a snapshot of the scheduler and of the last outcome
// per table.
type MaintenanceStatus struct {
	IsRunning    bool                          `json:"isRunning"`
	CronSchedule string                        `json:"cronSchedule"`
	LastRun      string                        `json:"lastRun"`
	NextRun      string                        `json:"nextRun"`
	Tables       map[string]models.TableStatus `json:"tables"`
}

// MaintenanceService periodically alter-syncs the models declared with
// sync: alter.
type MaintenanceService struct {
	resetter    *SchemaResetter
	models      []models.Model
	logger      *zap.Logger
	mutex       sync.RWMutex
	passMu      sync.Mutex
	cron        *cron.Cron
	schedule    string
	isRunning   bool
	tableStatus map[string]*models.TableStatus
	lastRunTime time.Time
	nextRunTime time.Time
}

func NewMaintenanceService(resetter *SchemaResetter, ms []models.Model, schedule string, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		resetter:    resetter,
		models:      ms,
		logger:      logger,
		schedule:    schedule,
		tableStatus: make(map[string]*models.TableStatus),
	}
}

// alterModels returns the models a maintenance pass touches.
func (s *MaintenanceService) alterModels() []models.Model {
	var targets []models.Model
	for _, m := range s.models {
		if m.Sync == models.SyncAlter {
			targets = append(targets, m)
		}
	}
	return targets
}

// Start schedules maintenance passes and runs one immediately in the
// background.
func (s *MaintenanceService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return ErrMaintenanceRunning
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.logger.Named("cron")))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	entryID, err := c.AddFunc(s.schedule, func() {
		s.logger.Info("Maintenance triggered by schedule")
		if err := s.runPass(context.Background()); err != nil {
			s.logger.Warn("Maintenance pass finished with errors", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.cron = c
	s.isRunning = true
	s.nextRunTime = c.Entry(entryID).Next

	s.logger.Info("Maintenance started",
		zap.String("schedule", s.schedule),
		zap.Time("next_run", s.nextRunTime))

	go func() {
		s.logger.Info("Running initial maintenance pass")
		if err := s.runPass(context.Background()); err != nil {
			s.logger.Warn("Maintenance pass finished with errors", zap.Error(err))
		}
	}()

	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *MaintenanceService) Stop() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return ErrMaintenanceStopped
	}
	c := s.cron
	s.cron = nil
	s.isRunning = false
	s.nextRunTime = time.Time{}
	s.mutex.Unlock()

	<-c.Stop().Done()
	s.logger.Info("Maintenance stopped")
	return nil
}

func (s *MaintenanceService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isRunning
}

// UpdateConfig validates and applies a new cron schedule, restarting the
// scheduler when it is running.
func (s *MaintenanceService) UpdateConfig(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	s.mutex.Lock()
	changed := schedule != s.schedule
	s.schedule = schedule
	running := s.isRunning
	s.mutex.Unlock()

	s.logger.Info("Maintenance configuration updated", zap.String("schedule", schedule))

	if !changed || !running {
		return nil
	}
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start()
}

// TriggerReset runs one maintenance pass synchronously.
func (s *MaintenanceService) TriggerReset(ctx context.Context) error {
	s.logger.Info("Manual maintenance pass triggered")
	return s.runPass(ctx)
}

func (s *MaintenanceService) runPass(ctx context.Context) error {
	if !s.passMu.TryLock() {
		return ErrResetInProgress
	}
	defer s.passMu.Unlock()

	s.mutex.Lock()
	s.lastRunTime = time.Now()
	s.mutex.Unlock()
	defer s.refreshNextRun()

	targets := s.alterModels()
	if len(targets) == 0 {
		s.logger.Info("No models declared for alter sync")
		return nil
	}

	for _, m := range targets {
		s.updateTableStatus(m.TableName, "running", nil)
	}

	reported := make(map[string]bool, len(targets))
	err := s.resetter.ResetTablesWithReport(ctx, targets, func(m models.Model, err error) {
		reported[m.TableName] = true
		if err != nil {
			s.updateTableStatus(m.TableName, "error", err)
			return
		}
		s.updateTableStatus(m.TableName, "success", nil)
	})

	// tables never reached because the pass was aborted
	for _, m := range targets {
		if !reported[m.TableName] {
			s.updateTableStatus(m.TableName, "error", err)
		}
	}
	return err
}

func (s *MaintenanceService) refreshNextRun() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.cron == nil {
		return
	}
	if entries := s.cron.Entries(); len(entries) > 0 {
		s.nextRunTime = entries[0].Next
	}
}

func (s *MaintenanceService) updateTableStatus(tableName, status string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.tableStatus[tableName] == nil {
		s.tableStatus[tableName] = &models.TableStatus{TableName: tableName, Mode: models.SyncAlter}
	}

	s.tableStatus[tableName].Status = status
	s.tableStatus[tableName].LastRunTime = time.Now()
	s.tableStatus[tableName].ErrorMessage = ""
	if err != nil {
		s.tableStatus[tableName].ErrorMessage = err.Error()
	}
}

func (s *MaintenanceService) GetStatus() MaintenanceStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tables := make(map[string]models.TableStatus, len(s.tableStatus))
	for k, v := range s.tableStatus {
		if v != nil {
			tables[k] = *v
		}
	}

	status := MaintenanceStatus{
		IsRunning:    s.isRunning,
		CronSchedule: s.schedule,
		Tables:       tables,
	}
	if !s.lastRunTime.IsZero() {
		status.LastRun = s.lastRunTime.Format(statusTimeFormat)
	}
	if !s.nextRunTime.IsZero() {
		status.NextRun = s.nextRunTime.Format(statusTimeFormat)
	}
	return status
}
