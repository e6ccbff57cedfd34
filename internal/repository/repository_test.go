package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"TeamPulse/internal/compliance"
	apperrors "TeamPulse/pkg/errors"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func testKey() compliance.LedgerKey {
	return compliance.LedgerKey{UserID: 7, OrganizationID: 1, WeekID: "2025-10-06", Channel: "slack"}
}

func TestReminderLedger_TryMark(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewReminderLedger(db)
	ctx := context.Background()
	at := time.Date(2025, 10, 9, 14, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "reminder_ledger_entries" .* ON CONFLICT DO NOTHING`).
		WithArgs(int64(7), "2025-10-06", "slack", int64(1), int64(42), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := ledger.TryMark(ctx, testKey(), at, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	// 第二次写入冲突，影响行数为 0
	mock.ExpectExec(`INSERT INTO "reminder_ledger_entries" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = ledger.TryMark(ctx, testKey(), at, 43)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderLedger_TryMarkError(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewReminderLedger(db)

	mock.ExpectExec(`INSERT INTO "reminder_ledger_entries"`).
		WillReturnError(errors.New("connection reset"))

	ok, err := ledger.TryMark(context.Background(), testKey(), time.Now(), 1)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderLedger_ShouldSend(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewReminderLedger(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "reminder_ledger_entries" WHERE`).
		WithArgs(int64(7), "2025-10-06", "slack").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	send, err := ledger.ShouldSend(ctx, testKey())
	require.NoError(t, err)
	assert.True(t, send)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "reminder_ledger_entries" WHERE`).
		WithArgs(int64(7), "2025-10-06", "slack").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	send, err = ledger.ShouldSend(ctx, testKey())
	require.NoError(t, err)
	assert.False(t, send)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderLedger_Unmark(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewReminderLedger(db)

	mock.ExpectExec(`DELETE FROM "reminder_ledger_entries" WHERE`).
		WithArgs(int64(7), "2025-10-06", "slack").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.Unmark(context.Background(), testKey()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplianceStore_OrganizationNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewComplianceStore(db)

	mock.ExpectQuery(`SELECT \* FROM "organizations" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	org, err := store.GetOrganizationSchedule(context.Background(), 99)
	assert.Nil(t, org)
	assert.ErrorIs(t, err, apperrors.OrganizationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplianceStore_ListReviewsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewComplianceStore(db)

	reviews, err := store.ListReviews(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplianceStore_ListUsers(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewComplianceStore(db)
	team := int64(3)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE organization_id = \$1 AND team_id = \$2 AND active = \$3`).
		WithArgs(int64(1), int64(3), true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "team_id", "active"}).
			AddRow(int64(10), int64(1), int64(3), true).
			AddRow(int64(11), int64(1), int64(3), true))

	users, err := store.ListUsers(context.Background(), 1, compliance.UserFilter{TeamID: &team})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(10), users[0].ID)
	assert.Equal(t, int64(3), *users[1].TeamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketRepository_ReplaceRangeEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBucketRepository(db)
	from := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "compliance_daily_buckets" WHERE`).
		WithArgs(int64(1), from, to).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceRange(context.Background(), 1, from, to, nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketRepository_ReplaceRangeKeepsUsers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBucketRepository(db)
	from := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "compliance_daily_buckets" WHERE .* AND user_id NOT IN \(\$4,\$5\)`).
		WithArgs(int64(1), from, to, int64(3), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceRange(context.Background(), 1, from, to, []int64{3, 7}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketRepository_ReplaceRangeRollback(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBucketRepository(db)
	from := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "compliance_daily_buckets"`).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	err := repo.ReplaceRange(context.Background(), 1, from, from, nil, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketRepository_Watermark(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBucketRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "compliance_watermarks" WHERE organization_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "last_processed_at"}))

	_, ok, err := repo.GetWatermark(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2025, 10, 10, 0, 10, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO "compliance_watermarks" .* ON CONFLICT \("organization_id"\) DO UPDATE SET "last_processed_at"="excluded"."last_processed_at"`).
		WithArgs(int64(1), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetWatermark(ctx, 1, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
