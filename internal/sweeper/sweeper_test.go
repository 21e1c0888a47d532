package sweeper

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/config"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		RetryLimit:             3,
		SweepInterval:          time.Hour,
		CompletedRetention:     24 * time.Hour,
		FailedPendingRetention: time.Hour,
	}
}

func TestSweepOnce_DeletesFinishedAndStalled(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM commands\s+WHERE state IN \('completed', 'failed'\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM commands\s+WHERE state = 'pending'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db, testQueueConfig(), zap.NewNop())
	require.NoError(t, s.sweepOnce(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM commands\s+WHERE state IN \('completed', 'failed'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM commands\s+WHERE state = 'pending'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cfg := testQueueConfig()
	cfg.SweepInterval = time.Millisecond
	s := New(db, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
}
