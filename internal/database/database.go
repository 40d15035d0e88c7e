package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xo/dburl"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appLog "churchsite/internal/log"
	"churchsite/internal/model"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("already exists")
)

// DB owns the process-wide connection pool. It is opened once in main and
// handed to every repository.
type DB struct {
	Gorm    *gorm.DB
	Dialect string
}

// New opens the database named by rawURL. Supported schemes are postgres
// ("postgres://", "pg://") and sqlite ("sqlite:", "file:").
func New(ctx context.Context, rawURL string) (*DB, error) {
	u, err := dburl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var dialector gorm.Dialector
	switch u.Driver {
	case "postgres":
		dialector = postgres.Open(u.DSN)
	case "sqlite3":
		if err := ensureSQLiteDir(u.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(u.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", u.Driver)
	}

	db, err := Open(dialector, logger.Warn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		return nil, err
	}
	if u.Driver == "sqlite3" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	appLog.Info("database connected", "driver", u.Driver, "host", u.Host)
	return db, nil
}

// Open wraps an already-configured dialector.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*DB, error) {
	g, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(appLog.Std("gorm"), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{Gorm: g, Dialect: dialector.Name()}, nil
}

// Migrate creates or updates every table.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.Gorm.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureSQLiteDir(dsn string) error {
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o700)
}

// Translate maps gorm sentinel errors onto package errors.
func Translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
