package xlog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	mock "github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

func genDBMock(logger glogger.Interface) (*gorm.DB, mock.Sqlmock, error) {
	db, mock, err := mock.New()
	if err != nil {
		return nil, nil, err
	}
	// Mock SQLite3 DB connection, the sqlite version query is essential for go-sqlite driver.
	mock.ExpectQuery(`select sqlite_version()`).
		WithArgs().
		WillReturnRows(mock.NewRows([]string{"sqlite_version()"}).
			AddRow("3.38.0"))
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: sqlite.DriverName,
		Conn:       db, // DSN is free. IP, port, username and password is free too.
	}, &gorm.Config{
		Logger: logger,
	})
	if err != nil {
		return nil, nil, err
	}
	// gdb is gorm db connection to the sql mock.
	return gdb, mock, nil
}

func TestGormXLogger_Sqlite3(t *testing.T) {
	parentLogger, out := newTestXLogger(t, LogLevelDebug)
	logger := NewGormXLogger(parentLogger,
		WithGormXLoggerIgnoreRecord404Err(),
		WithGormXLoggerLogLevel(glogger.Info),
		WithGormXLoggerSlowThreshold(200*time.Millisecond),
	)

	db, mock, err := genDBMock(logger)
	require.NoError(t, err)

	type fields struct {
		client *gorm.DB
	}
	type args struct {
	}
	testcases := []struct {
		name   string
		fields fields
		args   args
		invoke func(args)
		exec   func(*testing.T, args, *gorm.DB)
	}{
		{
			name: "create tbl",
			fields: fields{
				client: db,
			},
			args: args{},
			invoke: func(args args) {
				// Mock the SQL by pattern string with dynamic value to match gorm SQL request to be executed really.
				// Mock the db transaction start.
				mock.ExpectBegin().WillReturnError(nil)
				mock.ExpectExec(`SAVEPOINT create-obj`).WithArgs().WillReturnResult(driver.ResultNoRows)
				// Mock the db transaction commit without error.
				mock.ExpectCommit().WillReturnError(nil)
			},
			exec: func(tt *testing.T, args args, client *gorm.DB) {
				sp := "create-obj"
				tx := client.Begin(&sql.TxOptions{
					Isolation: sql.LevelDefault,
					ReadOnly:  false,
				}).SavePoint(sp)
				err := tx.Commit().Error
				require.NoError(tt, err)
			},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			tc.invoke(tc.args)
			tc.exec(tt, tc.args, tc.fields.client)
			require.NoError(tt, mock.ExpectationsWereMet())
		})
	}
	require.NoError(t, parentLogger.Sync())
	require.Contains(t, out.String(), "Gorm")
}

func TestGormXLogger_AllAPIs(t *testing.T) {
	parentLogger, out := newTestXLogger(t, LogLevelDebug)
	logger := NewGormXLogger(parentLogger,
		WithGormXLoggerIgnoreRecord404Err(),
		WithGormXLoggerLogLevel(glogger.Info),
	)

	require.Equal(t, zap.ErrorLevel, gormToZapLevel(glogger.Error))
	require.Equal(t, zap.WarnLevel, gormToZapLevel(glogger.Warn))
	require.Equal(t, zap.InfoLevel, gormToZapLevel(glogger.Info))
	require.Equal(t, zap.DebugLevel, gormToZapLevel(glogger.Silent))

	logger.Info(context.TODO(), "sql %s", "insert into abc values(1,2,3)")
	logger.Warn(context.TODO(), "sql %s", "insert into abc values(1,2,3)")
	logger.Error(context.TODO(), "sql %s", "insert into abc values(1,2,3)")
	require.Len(t, out.lines(t), 3)

	out.Reset()
	logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
		return "insert into abc values(1,2,3)", -1
	}, nil)
	logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
		return "insert into abc values(1,2,3)", 1
	}, errors.New("insert error"))
	logger.Trace(context.TODO(), time.Now().Add(-600*time.Millisecond), func() (string, int64) {
		return "insert into abc values(1,2,3)", 1
	}, nil)
	lines := out.lines(t)
	require.Len(t, lines, 3)
	require.Equal(t, "sql", lines[0]["msg"])
	require.Equal(t, "-", lines[0]["rows"])
	require.Equal(t, "sql failed", lines[1]["msg"])
	require.Equal(t, "insert error", lines[1]["error"])
	require.Equal(t, "1", lines[1]["rows"])
	require.Equal(t, "slow sql", lines[2]["msg"])
	require.EqualValues(t, 500, lines[2]["thresholdMs"])
	require.Equal(t, "Gorm", lines[2]["component"])

	out.Reset()
	logger.LogMode(glogger.Silent).Trace(context.TODO(), time.Now().Add(-600*time.Millisecond), func() (string, int64) {
		return "insert into abc values(1,2,3)", 1
	}, nil)
	require.NoError(t, parentLogger.Sync())
	require.Empty(t, out.String())
}

func TestGormXLogger_RecordNotFound(t *testing.T) {
	testcases := []struct {
		name   string
		opts   []GormXLoggerOption
		logged bool
	}{
		{
			name:   "logged by default",
			logged: true,
		},
		{
			name:   "ignored",
			opts:   []GormXLoggerOption{WithGormXLoggerIgnoreRecord404Err()},
			logged: false,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			parentLogger, out := newTestXLogger(tt, LogLevelDebug)
			logger := NewGormXLogger(parentLogger, tc.opts...)
			logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
				return "SELECT * FROM `xset_runs` WHERE run_id = \"absent\"", 0
			}, fmt.Errorf("load run: %w", glogger.ErrRecordNotFound))
			// Other errors are never ignored.
			logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
				return "SELECT * FROM `xset_runs`", -1
			}, errors.New("disk I/O error"))
			require.NoError(tt, parentLogger.Sync())

			lines := out.lines(tt)
			if tc.logged {
				require.Len(tt, lines, 2)
				require.Equal(tt, "sql failed", lines[0]["msg"])
				require.Contains(tt, lines[0]["error"], "record not found")
				require.Equal(tt, "disk I/O error", lines[1]["error"])
				return
			}
			require.Len(tt, lines, 1)
			require.Equal(tt, "disk I/O error", lines[0]["error"])
		})
	}
}
