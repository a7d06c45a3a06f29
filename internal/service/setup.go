package service

import (
	"calendar-agent/internal/config"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/storage"
)

var (
	queryLogRepository *storage.QueryLogRepository
	actionRepository   *storage.ActionRepository
	globalConfig       *config.Config
)

// Initialize initializes the service with configuration
func Initialize(cfg *config.Config) {
	globalConfig = cfg
}

// InitRepositories initializes the repositories if database is enabled
func InitRepositories() {
	if storage.DB != nil {
		queryLogRepository = storage.NewQueryLogRepository(storage.DB)
		if err := queryLogRepository.MigrateTable(); err != nil {
			logger.Warningf("Error migrating QueryRecord table: %v", err)
		}
		actionRepository = storage.NewActionRepository(storage.DB)
		if err := actionRepository.MigrateTable(); err != nil {
			logger.Warningf("Error migrating ActionRecord table: %v", err)
		}
	}
}
