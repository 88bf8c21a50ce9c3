// Package sqlstore implements the relational repositories on gorm.
// SQLite serializes writers; every transaction is opened with BEGIN IMMEDIATE
// so a read-then-write sequence inside it cannot interleave with another writer.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config configures the SQLite connection.
type Config struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
	LogQueries   bool
}

// Store owns the database handle shared by every repository.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the database file at cfg.Path and applies pragmas.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlstore: database path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	logLevel := gormlogger.Silent
	if cfg.LogQueries {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &Store{db: db, logger: logger}, nil
}

func dsn(cfg Config) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeout.Milliseconds()))
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	if !strings.Contains(cfg.Path, "mode=memory") {
		q.Set("_journal_mode", "WAL")
	}

	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	path := cfg.Path
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + q.Encode()
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&userRecord{},
		&memoryRecord{},
		&tagRecord{},
		&memoryTagRecord{},
		&conversationRecord{},
		&messageRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying handle for maintenance tasks and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{db: s.db} }

// Memories returns the memory repository.
func (s *Store) Memories() *MemoryRepository { return &MemoryRepository{db: s.db} }

// Statuses returns the processing status store.
func (s *Store) Statuses() *StatusStore { return &StatusStore{db: s.db} }

// Tags returns the tag repository.
func (s *Store) Tags() *TagRepository { return &TagRepository{db: s.db} }

// Conversations returns the conversation repository.
func (s *Store) Conversations() *ConversationRepository {
	return &ConversationRepository{db: s.db}
}

// Merges returns the merge transaction runner.
func (s *Store) Merges() *MergeStore { return &MergeStore{db: s.db, logger: s.logger} }

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isConflict reports lock contention that a retried transaction may clear.
func isConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isDomainError(err error) bool {
	return errors.Is(err, memory.ErrAlreadyInFlight) ||
		errors.Is(err, memory.ErrTerminal) ||
		errors.Is(err, memory.ErrStaleRun) ||
		errors.Is(err, conversation.ErrLimitReached)
}

// translate maps driver errors onto the application error taxonomy.
func translate(op, resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case appErrors.IsAppError(err), isDomainError(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return appErrors.NewNotFoundError(resource)
	case isUniqueViolation(err):
		return appErrors.NewConflictError(fmt.Sprintf("%s already exists", resource)).WithCause(err)
	default:
		return appErrors.NewDatabaseError(op, err)
	}
}
