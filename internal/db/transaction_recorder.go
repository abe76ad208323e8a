// Package db is a telemetry-only trace recorder: it records how long a
// simulation trace took and how many users it touched, never the
// authoritative UserPosition/ReserveIndex state, which lives in
// internal/brain's in-memory cache and is rebuilt from chain on restart.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TraceRecord is one completed Brain simulation trace, adapted from the
// teacher's AssetSnapshotRecord pattern (one row per observed event, plain
// scalar columns, no foreign keys).
type TraceRecord struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp         time.Time `gorm:"index;not null"`
	TraceID           string    `gorm:"type:varchar(32);index;not null;comment:hex-encoded 8-byte trace id"`
	ForwarderAddress  string    `gorm:"type:varchar(42)"`
	BucketCount       int       `gorm:"not null"`
	AffectedUserCount int       `gorm:"not null"`
	UnderwaterCount   int       `gorm:"not null"`
	OverloadedForks   int       `gorm:"not null;comment:buckets that returned ErrOverloadedFork"`
	DurationMillis    int64     `gorm:"not null"`
	Preempted         bool      `gorm:"not null;comment:trace carried a RawTx to replay"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (TraceRecord) TableName() string {
	return "brain_traces"
}

// TraceRecorder persists TraceRecords as an operational side-channel
// (latency dashboards, underwater-rate alerts); nothing in Brain's hot path
// reads from it.
type TraceRecorder struct {
	db *gorm.DB
}

// NewTraceRecorder opens dsn and migrates the schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewTraceRecorder(dsn string) (*TraceRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect mysql: %w", err)
	}
	if err := db.AutoMigrate(&TraceRecord{}); err != nil {
		return nil, fmt.Errorf("db: migrate schema: %w", err)
	}
	return &TraceRecorder{db: db}, nil
}

// NewTraceRecorderWithDB wraps an already-open GORM handle and migrates the
// TraceRecord schema on it.
func NewTraceRecorderWithDB(db *gorm.DB) (*TraceRecorder, error) {
	if err := db.AutoMigrate(&TraceRecord{}); err != nil {
		return nil, fmt.Errorf("db: migrate schema: %w", err)
	}
	return &TraceRecorder{db: db}, nil
}

// RecordTrace inserts one completed-trace row.
func (r *TraceRecorder) RecordTrace(rec TraceRecord) error {
	rec.Timestamp = time.Now()
	if result := r.db.Create(&rec); result.Error != nil {
		return fmt.Errorf("db: record trace: %w", result.Error)
	}
	return nil
}

// GetDB returns the underlying GORM handle for ad-hoc dashboard queries.
func (r *TraceRecorder) GetDB() *gorm.DB {
	return r.db
}

// Close closes the underlying connection pool.
func (r *TraceRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("db: underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// CountTraces returns the total number of recorded traces.
func (r *TraceRecorder) CountTraces() (int64, error) {
	var count int64
	if result := r.db.Model(&TraceRecord{}).Count(&count); result.Error != nil {
		return 0, fmt.Errorf("db: count traces: %w", result.Error)
	}
	return count, nil
}

// TracesSince returns every trace recorded at or after since, oldest first.
func (r *TraceRecorder) TracesSince(since time.Time) ([]TraceRecord, error) {
	var records []TraceRecord
	result := r.db.Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("db: traces since %s: %w", since, result.Error)
	}
	return records, nil
}
