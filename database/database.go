package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cart-recovery-service/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var DB *gorm.DB

// Config selects the audit log backend. DSN wins over the discrete postgres
// fields when set.
type Config struct {
	Driver   string
	DSN      string
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string

	Attempts int
	Backoff  time.Duration
}

func (c Config) dsn() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverSQLite:
		return "cart-recovery.db", nil
	case DriverPostgres:
		if c.User == "" || c.Password == "" || c.Name == "" {
			return "", fmt.Errorf("postgres credentials incomplete")
		}
		host, port := c.Host, c.Port
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "5432"
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		tz := c.TimeZone
		if tz == "" {
			tz = "America/Sao_Paulo"
		}
		return fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, c.User, c.Password, c.Name, port, sslMode, tz,
		), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open connects with linear backoff and migrates the given models.
func Open(cfg Config, logger *zap.Logger, autoMigrateModels ...interface{}) (*gorm.DB, error) {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}

	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	dial, err := dialector(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for i := 0; i < cfg.Attempts; i++ {
		db, err = gorm.Open(dial, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
		if err == nil {
			if sqlDB, poolErr := db.DB(); poolErr == nil {
				if cfg.Driver == DriverSQLite {
					sqlDB.SetMaxOpenConns(1)
				} else {
					sqlDB.SetMaxOpenConns(25)
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetConnMaxLifetime(5 * time.Minute)
				}
			}

			logger.Info("Connected to database", zap.String("driver", cfg.Driver))

			if len(autoMigrateModels) > 0 {
				if err := db.AutoMigrate(autoMigrateModels...); err != nil {
					return nil, fmt.Errorf("AutoMigrate failed: %w", err)
				}
			}
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		if i < cfg.Attempts-1 {
			time.Sleep(time.Duration(i+1) * cfg.Backoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to %s after retries: %w", cfg.Driver, err)
}

// Connect opens the audit log database into DB.
func Connect(cfg Config, logger *zap.Logger) error {
	var err error
	DB, err = Open(cfg, logger, &models.NotificationLog{})
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

func ensureSQLiteDirectory(dsn string) error {
	path := dsn
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite db dir: %w", err)
	}
	return nil
}
