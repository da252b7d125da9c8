// Package store persists reminders, medicines and dose history in SQLite
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gmsas95/medremind/internal/config"
	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/medicine"
	"github.com/gmsas95/medremind/internal/reminder"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultDBName = "medremind.db"

// Store provides access to the SQLite database. Times are written in UTC
// and handed back in the store's location.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	loc    *time.Location
	logger *zap.Logger
}

// New opens the database described by cfg
func New(cfg config.StorageConfig, loc *time.Location, log *zap.Logger) (*Store, error) {
	path := cfg.SQLitePath
	if path == "" {
		if cfg.DataDir == "" {
			return nil, apperrors.New(apperrors.ErrConfigInvalid.Code, "storage.data_dir or storage.sqlite_path is required")
		}
		path = filepath.Join(cfg.DataDir, defaultDBName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return Open(path, loc, log)
}

// Open opens (or creates) the SQLite file at path. ":memory:" gives a
// private in-memory database.
func Open(path string, loc *time.Location, log *zap.Logger) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to open sqlite")
	}

	// Configure connection pool
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		sqliteDB.SetMaxOpenConns(1)
	} else {
		sqliteDB.SetMaxOpenConns(4)
		sqliteDB.SetMaxIdleConns(2)
		sqliteDB.SetConnMaxLifetime(time.Hour)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		sqliteDB.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to open sqlite")
	}

	s, err := NewWithDB(db, loc, log)
	if err != nil {
		sqliteDB.Close()
		return nil, err
	}
	s.sqlDB = sqliteDB
	return s, nil
}

// NewWithDB wraps an existing gorm handle and migrates the schema
func NewWithDB(db *gorm.DB, loc *time.Location, log *zap.Logger) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := db.AutoMigrate(
		&reminder.Reminder{},
		&reminder.DoseHistory{},
		&medicine.Medicine{},
		&medicine.Entry{},
		&Setting{},
	); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to migrate")
	}

	return &Store{db: db, loc: loc, logger: log}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.sqlDB != nil {
		return s.sqlDB.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Location returns the zone times are returned in
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) local(t time.Time) time.Time {
	return t.In(s.loc)
}

func storeErr(msg string, err error) error {
	return apperrors.Wrap(err, apperrors.ErrStore.Code, msg)
}

// ==================== Reminder Methods ====================

// LoadReminders returns every stored reminder
func (s *Store) LoadReminders() ([]reminder.Reminder, error) {
	var rems []reminder.Reminder
	if err := s.db.Order("id ASC").Find(&rems).Error; err != nil {
		return nil, storeErr("failed to load reminders", err)
	}
	for i := range rems {
		rems[i].ScheduledTime = s.local(rems[i].ScheduledTime)
	}
	return rems, nil
}

// SaveReminder inserts or updates r by id
func (s *Store) SaveReminder(r *reminder.Reminder) error {
	row := *r
	row.ScheduledTime = row.ScheduledTime.UTC()
	if err := s.db.Save(&row).Error; err != nil {
		return storeErr("failed to save reminder", err)
	}
	return nil
}

// DeleteReminder removes a reminder; unknown ids are not an error.
// The id is kept as the high-water mark when it is the largest seen, so
// it is not handed out again after a restart.
func (s *Store) DeleteReminder(id int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&reminder.Reminder{}, id)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		last, err := lastReminderID(tx)
		if err != nil || id <= last {
			return err
		}
		return tx.Save(&Setting{Key: SettingLastReminderID, Value: strconv.FormatInt(id, 10)}).Error
	})
	if err != nil {
		return storeErr("failed to delete reminder", err)
	}
	return nil
}

// LastReminderID returns the largest id of a deleted reminder, 0 if none
func (s *Store) LastReminderID() (int64, error) {
	id, err := lastReminderID(s.db)
	if err != nil {
		return 0, storeErr("failed to read reminder id mark", err)
	}
	return id, nil
}

func lastReminderID(db *gorm.DB) (int64, error) {
	var st Setting
	err := db.Where(&Setting{Key: SettingLastReminderID}).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && st.Value == "") {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(st.Value, 10, 64)
}

// ==================== Setting Methods ====================

// SetSetting stores a value under key
func (s *Store) SetSetting(key, value string) error {
	return s.db.Save(&Setting{Key: key, Value: value}).Error
}

// GetSetting returns the value for key, "" when unset
func (s *Store) GetSetting(key string) (string, error) {
	var st Setting
	err := s.db.Where(&Setting{Key: key}).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return st.Value, err
}
