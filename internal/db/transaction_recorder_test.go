package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestTraceRecorder_RecordTrace(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `brain_traces`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recorder := &TraceRecorder{db: gormDB}

	err = recorder.RecordTrace(TraceRecord{
		TraceID:           "0102030405060708",
		ForwarderAddress:  "0x0000000000000000000000000000000000000001",
		BucketCount:       64,
		AffectedUserCount: 1200,
		UnderwaterCount:   3,
		DurationMillis:    840,
		Preempted:         true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTraceRecord_TableName(t *testing.T) {
	assert.Equal(t, "brain_traces", TraceRecord{}.TableName())
}

func TestTracesSince(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	recorder := &TraceRecorder{db: gormDB}
	since := time.Now().Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"id", "timestamp", "trace_id", "bucket_count", "affected_user_count", "underwater_count", "overloaded_forks", "duration_millis", "preempted", "created_at"})
	mock.ExpectQuery("SELECT \\* FROM `brain_traces`").WillReturnRows(rows)

	traces, err := recorder.TracesSince(since)
	assert.NoError(t, err)
	assert.Empty(t, traces)
	assert.NoError(t, mock.ExpectationsWereMet())
}
