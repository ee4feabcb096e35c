package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reqflow/internal/domain"
	"reqflow/internal/logging"
	"reqflow/internal/ports"
)

// SQLiteRepository implements ports.WorkflowRepository using GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.WorkflowRepository = (*SQLiteRepository)(nil)

// gormLogger wraps the reqflow logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("REQFLOW_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// NewSQLiteRepository creates a new SQLiteRepository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for concurrent access
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(
		&SessionModel{},
		&RequirementModel{},
		&TestCaseModel{},
		&FeedbackEventModel{},
		&QualityScoreModel{},
		&HistoryEntryModel{},
	); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetSession implements SessionReader.GetSession
func (r *SQLiteRepository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var model SessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
		}
		return nil, wrapPersistence(err)
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// ListSessions implements SessionReader.ListSessions. An empty userID lists
// every session.
func (r *SQLiteRepository) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	var models []SessionModel

	err := withRetry(func() error {
		query := r.db.WithContext(ctx).Order("updated_at DESC")
		if userID != "" {
			query = query.Where("user_id = ?", userID)
		}
		return query.Find(&models).Error
	}, 3)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	sessions := make([]domain.Session, 0, len(models))
	for _, m := range models {
		sessions = append(sessions, sessionModelToDomain(m))
	}
	return sessions, nil
}

// RequirementsBySession implements RequirementReader.RequirementsBySession
func (r *SQLiteRepository) RequirementsBySession(ctx context.Context, sessionID string) ([]domain.Requirement, error) {
	var models []RequirementModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("updated_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	reqs := make([]domain.Requirement, 0, len(models))
	for _, m := range models {
		reqs = append(reqs, requirementModelToDomain(m))
	}
	return reqs, nil
}

// TestCasesBySession implements TestCaseReader.TestCasesBySession
func (r *SQLiteRepository) TestCasesBySession(ctx context.Context, sessionID string) ([]domain.TestCase, error) {
	var models []TestCaseModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("iteration ASC, test_id ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	cases := make([]domain.TestCase, 0, len(models))
	for _, m := range models {
		cases = append(cases, testCaseModelToDomain(m))
	}
	return cases, nil
}

// FeedbackBySession implements FeedbackReader.FeedbackBySession
func (r *SQLiteRepository) FeedbackBySession(ctx context.Context, sessionID string) ([]domain.FeedbackEvent, error) {
	var models []FeedbackEventModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("id ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	events := make([]domain.FeedbackEvent, 0, len(models))
	for _, m := range models {
		events = append(events, feedbackModelToDomain(m))
	}
	return events, nil
}

// ScoresBySession implements FeedbackReader.ScoresBySession
func (r *SQLiteRepository) ScoresBySession(ctx context.Context, sessionID string) ([]domain.QualityScore, error) {
	var models []QualityScoreModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("id ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	scores := make([]domain.QualityScore, 0, len(models))
	for _, m := range models {
		scores = append(scores, scoreModelToDomain(m))
	}
	return scores, nil
}

// AppendHistory implements HistoryAppender.AppendHistory
func (r *SQLiteRepository) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	model := domainToHistoryModel(entry)

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
	if err != nil {
		return wrapPersistence(err)
	}
	return nil
}

// HistoryBySession implements HistoryAppender.HistoryBySession. Entries come
// back in insertion order, oldest first.
func (r *SQLiteRepository) HistoryBySession(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	var models []HistoryEntryModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("id ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	entries := make([]domain.HistoryEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, historyModelToDomain(m))
	}
	return entries, nil
}

// Commit implements WorkflowWriter.Commit. All writes of one transition go
// through a single transaction so readers see either the previous state or
// the complete new one.
func (r *SQLiteRepository) Commit(ctx context.Context, rec ports.CommitRecord) error {
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			session := domainToSessionModel(rec.Session)
			if err := tx.Save(&session).Error; err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			if rec.NewRequirement != nil {
				req := domainToRequirementModel(*rec.NewRequirement)
				if err := tx.Create(&req).Error; err != nil {
					return fmt.Errorf("failed to create requirement: %w", err)
				}
			}

			if rec.UpdatedRequirement != nil {
				req := domainToRequirementModel(*rec.UpdatedRequirement)
				if err := tx.Save(&req).Error; err != nil {
					return fmt.Errorf("failed to update requirement: %w", err)
				}
			}

			if rec.Event != nil {
				event := domainToFeedbackModel(*rec.Event)
				if err := tx.Create(&event).Error; err != nil {
					return fmt.Errorf("failed to record feedback: %w", err)
				}
			}

			if rec.Score != nil {
				score := domainToScoreModel(*rec.Score)
				if err := tx.Create(&score).Error; err != nil {
					return fmt.Errorf("failed to record score: %w", err)
				}
			}

			if len(rec.TestCases) > 0 {
				// Replace any prior attempt for the same iteration so a
				// retried generation does not duplicate rows.
				iteration := rec.TestCases[0].Iteration
				if err := tx.Where("session_id = ? AND iteration = ?",
					rec.Session.SessionID, iteration).
					Delete(&TestCaseModel{}).Error; err != nil {
					return fmt.Errorf("failed to clear prior test cases: %w", err)
				}
				for _, tc := range rec.TestCases {
					model := domainToTestCaseModel(tc)
					if err := tx.Create(&model).Error; err != nil {
						return fmt.Errorf("failed to create test case: %w", err)
					}
				}
			}

			if rec.History != nil {
				entry := domainToHistoryModel(*rec.History)
				if err := tx.Create(&entry).Error; err != nil {
					return fmt.Errorf("failed to record history: %w", err)
				}
			}

			return nil
		})
	}, 3)
	if err != nil {
		return wrapPersistence(err)
	}
	return nil
}

// PurgeSession implements WorkflowWriter.PurgeSession
func (r *SQLiteRepository) PurgeSession(ctx context.Context, sessionID string) error {
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Where("session_id = ?", sessionID).Delete(&SessionModel{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}

			for _, model := range []any{
				&RequirementModel{},
				&TestCaseModel{},
				&FeedbackEventModel{},
				&QualityScoreModel{},
				&HistoryEntryModel{},
			} {
				if err := tx.Where("session_id = ?", sessionID).Delete(model).Error; err != nil {
					return err
				}
			}
			return nil
		})
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
		}
		return wrapPersistence(err)
	}
	return nil
}

// wrapPersistence tags unexpected storage errors so callers can detect an
// unavailable store with errors.Is without matching driver error strings.
func wrapPersistence(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
}

// withRetry retries a function on SQLITE_BUSY errors with exponential backoff
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
