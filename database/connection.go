package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/finbot-backend/internal/config"
)

// Connect opens the database selected by cfg.DBDriver
func Connect(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsProduction() {
		level = gormlogger.Error
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	}

	if cfg.DBDriver == config.DriverSQLite {
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		logger.Info("✅ Database connected", zap.String("driver", config.DriverSQLite), zap.String("path", cfg.SQLitePath))
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DatabaseURL != "" {
		logger.Info("✅ Database connected", zap.String("source", "DATABASE_URL"))
	} else {
		logger.Info("✅ Database connected", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))
	}
	return db, nil
}
