package config

import (
	"context"
	"fmt"
	"io"
	"log"
	"solar-workflow-api/store"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects to the SQL database selected by STORE_BACKEND.
func OpenDB(cfg *Config, logWriter io.Writer) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.StoreBackend {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DB.Username,
			cfg.DB.Password,
			cfg.DB.Host,
			cfg.DB.Port,
			cfg.DB.Database,
		)
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DB.Host,
			cfg.DB.Port,
			cfg.DB.Username,
			cfg.DB.Password,
			cfg.DB.Database,
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.SQLitePath)
	default:
		return nil, fmt.Errorf("store backend %q is not a SQL database", cfg.StoreBackend)
	}

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if cfg.IsProduction() && !cfg.DB.DebugSQL {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			log.New(logWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel, SlowThreshold: 500 * time.Millisecond},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpen)
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdle)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Backend is an opened store with the handles needed to shut it down.
type Backend struct {
	Store *store.Store
	// DB is nil for the Firestore backend.
	DB    *gorm.DB
	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenStore opens the record store selected by STORE_BACKEND.
func OpenStore(ctx context.Context, cfg *Config, logWriter io.Writer) (*Backend, error) {
	if cfg.StoreBackend == "firestore" {
		client, err := store.NewFirestoreClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: store.NewFirestoreStore(client), close: client.Close}, nil
	}
	db, err := OpenDB(cfg, logWriter)
	if err != nil {
		return nil, err
	}
	b := &Backend{Store: store.NewGormStore(db), DB: db}
	b.close = func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return b, nil
}
