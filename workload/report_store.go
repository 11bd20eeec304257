package workload

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/benz9527/xset/lib/infra"
	"github.com/benz9527/xset/xlog"
)

type RunRecord struct {
	ID          uint             `gorm:"primaryKey"`
	RunID       string           `gorm:"uniqueIndex;size:32;not null"`
	StartedAt   time.Time        `gorm:"not null"`
	ElapsedMs   int64            `gorm:"not null"`
	Pattern     string           `gorm:"size:16;not null"`
	Keys        int              `gorm:"not null"`
	Ops         int              `gorm:"not null"`
	Workers     int              `gorm:"not null"`
	Seed        int64            `gorm:"not null"`
	RSSBytes    int64            `gorm:"not null"`
	Env         string           `gorm:"size:16;not null;default:host"`
	ContainerID string           `gorm:"size:64"`
	Strategies  []StrategyRecord `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

func (RunRecord) TableName() string {
	return "xset_runs"
}

type StrategyRecord struct {
	ID          uint    `gorm:"primaryKey"`
	RunID       string  `gorm:"index;size:32;not null"`
	Strategy    string  `gorm:"size:8;not null"`
	Workers     int     `gorm:"not null"`
	Ops         int64   `gorm:"not null"`
	Adds        int64   `gorm:"not null"`
	Removes     int64   `gorm:"not null"`
	Contains    int64   `gorm:"not null"`
	Hits        int64   `gorm:"not null"`
	Validations int64   `gorm:"not null"`
	Rotations   int64   `gorm:"not null"`
	FinalSize   int     `gorm:"not null"`
	ElapsedMs   int64   `gorm:"not null"`
	OpsPerSec   float64 `gorm:"not null"`
	Failures    int     `gorm:"not null"`
}

func (StrategyRecord) TableName() string {
	return "xset_run_strategies"
}

// SQLite stores the signed 64 bits integer only, the seed keeps its bits.
func newRunRecord(report *Report) *RunRecord {
	rec := &RunRecord{
		RunID:       report.RunID,
		StartedAt:   report.StartedAt.UTC(),
		ElapsedMs:   report.Elapsed.Milliseconds(),
		Pattern:     string(report.Pattern),
		Keys:        report.Keys,
		Ops:         report.Ops,
		Workers:     report.Workers,
		Seed:        int64(report.Seed),
		RSSBytes:    int64(report.RSSBytes),
		Env:         report.Env,
		ContainerID: report.ContainerID,
		Strategies:  make([]StrategyRecord, 0, len(report.Strategies)),
	}
	for _, s := range report.Strategies {
		rec.Strategies = append(rec.Strategies, StrategyRecord{
			RunID:       report.RunID,
			Strategy:    s.Strategy,
			Workers:     s.Workers,
			Ops:         s.Ops,
			Adds:        s.Adds,
			Removes:     s.Removes,
			Contains:    s.Contains,
			Hits:        s.Hits,
			Validations: s.Validations,
			Rotations:   s.Rotations,
			FinalSize:   s.FinalSize,
			ElapsedMs:   s.Elapsed.Milliseconds(),
			OpsPerSec:   s.OpsPerSec,
			Failures:    s.Failures,
		})
	}
	return rec
}

func (rec *RunRecord) report() *Report {
	report := &Report{
		RunID:       rec.RunID,
		StartedAt:   rec.StartedAt,
		Elapsed:     time.Duration(rec.ElapsedMs) * time.Millisecond,
		Pattern:     Pattern(rec.Pattern),
		Keys:        rec.Keys,
		Ops:         rec.Ops,
		Workers:     rec.Workers,
		Seed:        uint64(rec.Seed),
		RSSBytes:    uint64(rec.RSSBytes),
		Env:         rec.Env,
		ContainerID: rec.ContainerID,
		Strategies:  make([]StrategySummary, 0, len(rec.Strategies)),
	}
	for _, s := range rec.Strategies {
		report.Strategies = append(report.Strategies, StrategySummary{
			Strategy:    s.Strategy,
			Workers:     s.Workers,
			Ops:         s.Ops,
			Adds:        s.Adds,
			Removes:     s.Removes,
			Contains:    s.Contains,
			Hits:        s.Hits,
			Validations: s.Validations,
			Rotations:   s.Rotations,
			FinalSize:   s.FinalSize,
			Elapsed:     time.Duration(s.ElapsedMs) * time.Millisecond,
			OpsPerSec:   s.OpsPerSec,
			Failures:    s.Failures,
		})
	}
	return report
}

// ReportStore persists the run reports by gorm.
type ReportStore struct {
	db *gorm.DB
}

// OpenReportStore opens the SQLite database by dsn and migrates the
// tables. The ":memory:" dsn keeps the reports in process.
func OpenReportStore(dsn string, logger xlog.XLogger) (*ReportStore, error) {
	cfg := &gorm.Config{}
	if logger != nil {
		cfg.Logger = xlog.NewGormXLogger(logger,
			xlog.WithGormXLoggerLogLevel(glogger.Warn),
			xlog.WithGormXLoggerIgnoreRecord404Err(),
		)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] open report store "+dsn)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] report store connection")
	}
	// Single writer, and every connection of ":memory:" is a new database.
	sqlDB.SetMaxOpenConns(1)
	store := NewReportStore(db)
	if err = store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&RunRecord{}, &StrategyRecord{}); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[workload] migrate report store")
	}
	return nil
}

// Save stores the run and its strategy summaries in one transaction.
func (s *ReportStore) Save(ctx context.Context, report *Report) error {
	if report == nil {
		return infra.NewErrorStack("[workload] nil report")
	}
	rec := newRunRecord(report)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return infra.WrapErrorStackWithMessage(err, "[workload] save report "+report.RunID)
	}
	return nil
}

func (s *ReportStore) Load(ctx context.Context, runID string) (*Report, error) {
	rec := &RunRecord{}
	err := s.db.WithContext(ctx).
		Preload("Strategies", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Where("run_id = ?", runID).
		First(rec).Error
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] load report "+runID)
	}
	return rec.report(), nil
}

// List returns the latest reports first.
func (s *ReportStore) List(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 10
	}
	recs := make([]*RunRecord, 0, limit)
	err := s.db.WithContext(ctx).
		Preload("Strategies", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Order("id desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] list reports")
	}
	reports := make([]*Report, 0, len(recs))
	for _, rec := range recs {
		reports = append(reports, rec.report())
	}
	return reports, nil
}

func (s *ReportStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
