package services

import "errors"

var (
	ErrInvalidSyncMode = errors.New("invalid sync mode")
	ErrResetInProgress = errors.New("schema reset already in progress")
	ErrUnknownTable    = errors.New("unknown table")

	ErrMaintenanceRunning = errors.New("maintenance already running")
	ErrMaintenanceStopped = errors.New("maintenance is not running")
)
