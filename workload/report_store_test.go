package workload

import (
	"context"
	"errors"
	"testing"
	"time"

	mock "github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/benz9527/xset/lib/tree"
)

func testReport(runID string, startedAt time.Time) *Report {
	return &Report{
		RunID:       runID,
		StartedAt:   startedAt,
		Elapsed:     1500 * time.Millisecond,
		Pattern:     PatternRandom,
		Keys:        100,
		Ops:         1000,
		Workers:     2,
		Seed:        ^uint64(0),
		RSSBytes:    64 << 20,
		Env:         "docker",
		ContainerID: "3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a",
		Strategies: []StrategySummary{
			{
				Strategy:    tree.AVL.String(),
				Workers:     2,
				Ops:         2000,
				Adds:        700,
				Removes:     600,
				Contains:    400,
				Hits:        150,
				Validations: 4,
				Rotations:   321,
				FinalSize:   100,
				Elapsed:     1200 * time.Millisecond,
				OpsPerSec:   1666.5,
			},
			{
				Strategy:    tree.RedBlack.String(),
				Workers:     2,
				Ops:         2000,
				Adds:        700,
				Removes:     600,
				Contains:    400,
				Hits:        150,
				Validations: 4,
				Rotations:   123,
				FinalSize:   100,
				Elapsed:     1100 * time.Millisecond,
				OpsPerSec:   1818.25,
				Failures:    1,
			},
		},
	}
}

func TestReportStore_SQLite(t *testing.T) {
	store, err := OpenReportStore(":memory:", newTestLogger())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	ctx := context.Background()
	startedAt := time.Date(2024, 4, 1, 8, 30, 0, 0, time.UTC)
	first := testReport("run-first", startedAt)
	second := testReport("run-second", startedAt.Add(time.Minute))
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	// Unique run id.
	require.Error(t, store.Save(ctx, first))
	require.Error(t, store.Save(ctx, nil))

	loaded, err := store.Load(ctx, "run-first")
	require.NoError(t, err)
	require.Equal(t, first.RunID, loaded.RunID)
	require.True(t, first.StartedAt.Equal(loaded.StartedAt))
	require.Equal(t, first.Elapsed, loaded.Elapsed)
	require.Equal(t, first.Pattern, loaded.Pattern)
	require.Equal(t, first.Keys, loaded.Keys)
	require.Equal(t, first.Ops, loaded.Ops)
	require.Equal(t, first.Workers, loaded.Workers)
	require.Equal(t, first.Seed, loaded.Seed)
	require.Equal(t, first.RSSBytes, loaded.RSSBytes)
	require.Equal(t, first.Env, loaded.Env)
	require.Equal(t, first.ContainerID, loaded.ContainerID)
	require.Equal(t, first.Strategies, loaded.Strategies)

	_, err = store.Load(ctx, "run-absent")
	require.Error(t, err)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	reports, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, "run-second", reports[0].RunID)
	require.Equal(t, "run-first", reports[1].RunID)
	require.Len(t, reports[0].Strategies, 2)

	reports, err = store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
}

func TestReportStore_RunnerReport(t *testing.T) {
	store, err := OpenReportStore(":memory:", nil)
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	cfg := DefaultConfig()
	cfg.Keys = 64
	cfg.Ops = 512
	cfg.Workers = 2
	runner, err := NewRunner(cfg, newTestLogger())
	require.NoError(t, err)
	defer runner.Release()

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), report))

	loaded, err := store.Load(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, loaded.Strategies, 2)
	for i := range report.Strategies {
		require.Equal(t, report.Strategies[i].Strategy, loaded.Strategies[i].Strategy)
		require.Equal(t, report.Strategies[i].FinalSize, loaded.Strategies[i].FinalSize)
		require.Equal(t, report.Strategies[i].Rotations, loaded.Strategies[i].Rotations)
	}
}

func genDBMock(t *testing.T) (*gorm.DB, mock.Sqlmock) {
	db, sqlMock, err := mock.New()
	require.NoError(t, err)
	// The sqlite version query is essential for go-sqlite driver.
	sqlMock.ExpectQuery(`select sqlite_version()`).
		WithArgs().
		WillReturnRows(sqlMock.NewRows([]string{"sqlite_version()"}).
			AddRow("3.38.0"))
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: sqlite.DriverName,
		Conn:       db,
	}, &gorm.Config{
		Logger: glogger.Discard,
	})
	require.NoError(t, err)
	return gdb, sqlMock
}

func TestReportStore_Mock(t *testing.T) {
	gdb, sqlMock := genDBMock(t)
	store := NewReportStore(gdb)
	ctx := context.Background()

	sqlMock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	err := store.Save(ctx, testReport("run-locked", time.Now()))
	require.Error(t, err)
	require.Contains(t, err.Error(), "database is locked")

	sqlMock.ExpectQuery("SELECT (.+) FROM `xset_runs`").
		WillReturnRows(sqlMock.NewRows([]string{"id", "run_id"}))
	_, err = store.Load(ctx, "run-absent")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	sqlMock.ExpectQuery("SELECT (.+) FROM `xset_runs`").
		WillReturnError(errors.New("no such table: xset_runs"))
	_, err = store.List(ctx, 5)
	require.Error(t, err)

	require.NoError(t, sqlMock.ExpectationsWereMet())
}
