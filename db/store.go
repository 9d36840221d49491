package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rollcall-server/apperr"
	"rollcall-server/internal/logger"
	"rollcall-server/models"
)

// Store is the relational persistence layer. Every method that touches
// classes, groups, students or roll-call records takes the caller's user id
// and only sees rows whose class is owned by that user.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Options selects the backing database. DatabaseURL (PostgreSQL) wins over DBFile (SQLite).
type Options struct {
	DBFile      string
	DatabaseURL string
	Logger      *slog.Logger
}

func Open(opts Options) (*Store, error) {
	log := logger.Resolve(opts.Logger)
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var (
		gdb *gorm.DB
		err error
	)
	if dsn := strings.TrimSpace(opts.DatabaseURL); dsn != "" {
		gdb, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open gorm postgres: %w", err)
		}
		log.Info("using postgres database")
	} else {
		file := strings.TrimSpace(opts.DBFile)
		if file == "" {
			return nil, errors.New("database file is required when DATABASE_URL is unset")
		}
		if dir := filepath.Dir(file); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
		gdb, err = gorm.Open(sqlite.Open(sqliteDSN(file)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open gorm sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY under load.
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		log.Info("using sqlite database", "file", file)
	}

	store := &Store{db: gdb, logger: log}
	if err := store.Ping(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// OpenMemory opens a private in-memory SQLite store. name must be unique per
// store that should not share data.
func OpenMemory(name string) (*Store, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	store, err := Open(Options{DBFile: "file:" + name + "?mode=memory&cache=shared"})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func sqliteDSN(file string) string {
	sep := "?"
	if strings.Contains(file, "?") {
		sep = "&"
	}
	return file + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Migrate creates or updates the tables. Foreign keys are declared with
// ON DELETE CASCADE.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.Group{},
		&models.Student{},
		&models.RollCallRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("resolve sql db handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// transaction runs fn in one storage transaction; any error rolls it back.
func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func notFoundAs(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(message)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
