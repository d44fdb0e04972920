// Package incidents keeps a durable record of upstream failures (transcriber,
// extractor, question generation) for operators.
package incidents

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Incident struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:64;index" json:"session_id"`
	Source    string    `gorm:"size:32;index" json:"source"`
	FieldName string    `gorm:"size:128" json:"field_name,omitempty"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Open connects to the incident database. Supported drivers are sqlite and
// postgres.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&Incident{}); err != nil {
		return nil, fmt.Errorf("migrate incidents: %w", err)
	}
	return &Store{db: db, logger: log.With(zap.String("component", "incidents"))}, nil
}

// RecordIncident never fails the caller; a write error is only logged.
func (s *Store) RecordIncident(ctx context.Context, sessionID, source, field string, err error) {
	if err == nil {
		return
	}
	metricIncidents.WithLabelValues(source).Inc()
	row := Incident{SessionID: sessionID, Source: source, FieldName: field, Message: err.Error()}
	// The session context may already be gone when a disconnect races a failure.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if werr := s.db.WithContext(wctx).Create(&row).Error; werr != nil {
		s.logger.Warn("record incident", zap.String("source", source), zap.Error(werr))
	}
}

// Recent returns the newest incidents first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Incident, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []Incident
	err := s.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}

func (s *Store) ForSession(ctx context.Context, sessionID string) ([]Incident, error) {
	var out []Incident
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id asc").Find(&out).Error
	return out, err
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
