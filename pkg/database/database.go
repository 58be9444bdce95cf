package database

import (
	"fmt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string `yaml:"DB_DRIVER" env:"DB_DRIVER" env-default:"sqlite"`
	DSN    string `yaml:"DB_DSN"    env:"DB_DSN"    env-default:"polls.db"`
}

// New opens the database and migrates the given models.
func New(config Config, models ...interface{}) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(config.DSN)
	case DriverPostgres:
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("database: unknown driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", config.Driver, err)
	}

	if config.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		// sqlite has a single writer; one connection keeps concurrent
		// updates from failing with "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}

	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
