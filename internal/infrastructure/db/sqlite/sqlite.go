package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config captures the settings for opening the SQLite database.
type Config struct {
	// Path is a file path, or a full "file:" DSN for in-memory databases.
	Path string
	// MaxOpenConns limits the pool; zero keeps the driver default.
	MaxOpenConns int
	Debug        bool
}

// Open connects to SQLite, verifies the connection and migrates the schema.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	dsn, err := buildDSN(cfg.Path)
	if err != nil {
		return nil, err
	}

	gormLogger := logger.Discard
	if cfg.Debug {
		gormLogger = logger.Default
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&roleRecord{}, &userRecord{}, &authEventRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Pinger adapts a gorm handle to the readiness probe.
type Pinger struct {
	db *gorm.DB
}

func NewPinger(db *gorm.DB) *Pinger {
	return &Pinger{db: db}
}

func (p *Pinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func buildDSN(path string) (string, error) {
	const params = "_foreign_keys=on&_busy_timeout=5000"
	if path == "" {
		return "", fmt.Errorf("sqlite: empty database path")
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("sqlite: create data dir: %w", err)
	}
	return path + "?_journal_mode=WAL&" + params, nil
}
