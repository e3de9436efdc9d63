package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sensorhub/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config mirrors config.Config.DB.
type Config struct {
	Driver      string
	URL         string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

const createdAtIndex = "idx_sensor_data_created_at"

// DSN returns DATABASE_URL when set, otherwise a driver specific DSN built from the parts.
// MySQL URLs get parseTime=true appended when they lack it, since created_at scans into time.Time.
func DSN(config Config) (string, error) {
	if config.URL != "" {
		if config.Driver == "mysql" {
			return withParseTime(config.URL), nil
		}
		return config.URL, nil
	}
	switch config.Driver {
	case "", "postgres":
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
		), nil
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			config.User, config.Password, config.Host, config.Port, config.DBName,
		), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

func dialector(config Config) (gorm.Dialector, error) {
	dsn, err := DSN(config)
	if err != nil {
		return nil, err
	}
	if config.Driver == "mysql" {
		return mysql.Open(dsn), nil
	}
	return postgres.Open(dsn), nil
}

func Connect(config Config, debug bool) (*gorm.DB, error) {
	dial, err := dialector(config)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates sensor_data and its created_at index if missing.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SensorData{}); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Reset drops sensor_data and recreates it empty. Must not run alongside live traffic.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&models.SensorData{}); err != nil {
		return fmt.Errorf("failed to drop sensor_data: %w", err)
	}
	return Migrate(db)
}

func createIndexes(db *gorm.DB) error {
	m := db.Migrator()
	if m.HasIndex(&models.SensorData{}, createdAtIndex) {
		return nil
	}
	return db.Exec(fmt.Sprintf("CREATE INDEX %s ON sensor_data (created_at)", createdAtIndex)).Error
}

// Ping checks the underlying connection pool.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
