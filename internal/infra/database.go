package infra

import (
	"fmt"
	"time"

	"communityos/internal/config"
	"communityos/internal/logger"
	"communityos/internal/tenantdb"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var globalDB *gorm.DB

// InitDatabase opens the primary database, installs the tenant plugin and
// keeps the handle for GetDB.
func InitDatabase(cfg *config.DatabaseConfig, plugin *tenantdb.Plugin) (*gorm.DB, error) {
	db, err := Open(cfg, plugin)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
	)
	globalDB = db
	return db, nil
}

// Open connects to the configured driver with the tenant plugin installed.
func Open(cfg *config.DatabaseConfig, plugin *tenantdb.Plugin) (*gorm.DB, error) {
	logLevel := gormLogger.Warn
	if cfg.Driver == "sqlite" {
		logLevel = gormLogger.Error
	}
	gormLog := &GormZapLogger{
		ZapLogger:                 logger.Get(),
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if plugin == nil {
		plugin = tenantdb.New(tenantdb.WithLogger(logger.Get()))
	}
	if err := db.Use(plugin); err != nil {
		return nil, fmt.Errorf("install tenant plugin: %w", err)
	}
	return db, nil
}

// GetDB returns the handle opened by InitDatabase.
func GetDB() *gorm.DB {
	if globalDB == nil {
		panic("database not initialised, call InitDatabase first")
	}
	return globalDB
}

// CloseDatabase closes the handle opened by InitDatabase.
func CloseDatabase() error {
	if globalDB != nil {
		sqlDB, err := globalDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// HealthCheck pings the database.
func HealthCheck() error {
	if globalDB == nil {
		return fmt.Errorf("database not initialised")
	}
	sqlDB, err := globalDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
