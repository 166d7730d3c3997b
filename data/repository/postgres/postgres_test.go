package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgres(sqlx.NewDb(db, "sqlmock")), mock
}

var purchaseRowColumns = []string{
	"purchase_id", "user_id", "option_id", "trade_title", "initial_investment", "current_value",
	"profit_loss", "win_rate", "approved_by", "approved_at", "end_date", "status", "created_at", "updated_at",
}

func purchaseRow(rows *sqlmock.Rows, id int64, status string) *sqlmock.Rows {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, int64(7), int64(1), "BTC scalper", "500", "500", "0", "61.5", nil, nil, nil, status, now, now)
}

func TestWithinTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM copytrade_purchases").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := p.WithinTransaction(ctx, func(ctx context.Context) error {
			return p.DeletePurchase(ctx, 1)
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := p.WithinTransaction(ctx, func(ctx context.Context) error {
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM copytrade_purchases").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := p.WithinTransaction(ctx, func(ctx context.Context) error {
			return p.WithinTransaction(ctx, func(ctx context.Context) error {
				return p.DeletePurchase(ctx, 2)
			})
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeductFromEntry(t *testing.T) {
	ctx := context.Background()
	query := `WHERE entry_id = \$2\s+AND value >= \$1`

	t.Run("returns remaining value", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs(sqlmock.AnyArg(), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("10"))

		value, err := p.DeductFromEntry(ctx, 1, decimal.NewFromInt(40))

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(10).Equal(value))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard rejects overdraw", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs(sqlmock.AnyArg(), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		_, err := p.DeductFromEntry(ctx, 1, decimal.NewFromInt(40))

		assert.ErrorIs(t, err, repository.ErrEntryValueTooLow)
	})

	t.Run("check constraint violation", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs(sqlmock.AnyArg(), int64(1)).
			WillReturnError(&pgconn.PgError{Code: "23514"})

		_, err := p.DeductFromEntry(ctx, 1, decimal.NewFromInt(40))

		assert.ErrorIs(t, err, repository.ErrEntryValueTooLow)
	})
}

func TestGetPortfolioEntriesForUpdate(t *testing.T) {
	p, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`ORDER BY entry_id\s+FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "user_id", "symbol", "value", "created_at"}).
			AddRow(int64(1), int64(7), "BTC", "30", now).
			AddRow(int64(2), int64(7), "ETH", "50", now))

	entries, err := p.GetPortfolioEntriesForUpdate(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.True(t, decimal.NewFromInt(50).Equal(entries[1].Value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPurchaseStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("active purchase is locked", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("AND status <> 'active'")).
			WithArgs("rejected", nil, nil, int64(3)).
			WillReturnRows(sqlmock.NewRows(purchaseRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := p.SetPurchaseStatus(ctx, 3, model.PurchaseStatusRejected, nil)

		assert.ErrorIs(t, err, repository.ErrStatusLocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing purchase is not reported as locked", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("AND status <> 'active'")).
			WithArgs("active", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(404)).
			WillReturnRows(sqlmock.NewRows(purchaseRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := p.SetPurchaseStatus(ctx, 404, model.PurchaseStatusActive, &model.ApprovalMeta{ApprovedBy: 1, ApprovedAt: time.Now()})

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("writes approval meta", func(t *testing.T) {
		p, mock := newMock(t)
		approvedAt := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(regexp.QuoteMeta("AND status <> 'active'")).
			WithArgs("active", int64(99), approvedAt, int64(3)).
			WillReturnRows(purchaseRow(sqlmock.NewRows(purchaseRowColumns), 3, "active"))

		purchase, err := p.SetPurchaseStatus(ctx, 3, model.PurchaseStatusActive, &model.ApprovalMeta{ApprovedBy: 99, ApprovedAt: approvedAt})

		require.NoError(t, err)
		assert.Equal(t, model.PurchaseStatusActive, purchase.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetPurchaseNotFound(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectQuery("FROM copytrade_purchases").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(purchaseRowColumns))

	_, err := p.GetPurchase(context.Background(), 5)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetPurchases(t *testing.T) {
	p, mock := newMock(t)
	userID := int64(7)
	status := model.PurchaseStatusPending

	rows := sqlmock.NewRows(purchaseRowColumns)
	purchaseRow(rows, 3, "pending")
	purchaseRow(rows, 2, "pending")
	purchaseRow(rows, 1, "pending")

	mock.ExpectQuery(`WHERE user_id = \$1 AND status = \$2\s+ORDER BY purchase_id DESC\s+LIMIT \$3\s+OFFSET \$4`).
		WithArgs(userID, "pending", 3, 0).
		WillReturnRows(rows)

	purchases, hasNext, err := p.GetPurchases(context.Background(), model.PurchaseFilter{UserID: &userID, Status: &status}, 2, 0)

	require.NoError(t, err)
	assert.True(t, hasNext)
	require.Len(t, purchases, 2)
	assert.Equal(t, int64(3), purchases[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePurchaseNotFound(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectExec("DELETE FROM copytrade_purchases").
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.DeletePurchase(context.Background(), 4)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertPurchaseUnknownUser(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO copytrade_purchases").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := p.InsertPurchase(context.Background(), model.Purchase{UserID: 404, OptionID: 1, Status: model.PurchaseStatusPending})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertAuditLog(t *testing.T) {
	t.Run("replayed entry is ignored", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectExec(`(?s)INSERT INTO audit_logs.*ON CONFLICT \(idempotency_key\) DO NOTHING`).
			WithArgs(int64(1), int64(7), "purchase_created", "copytrade_purchase", int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "purchase_created:copytrade_purchase:3:rq-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := p.InsertAuditLog(context.Background(), model.AuditEntry{
			ActorID:        1,
			UserID:         7,
			Action:         "purchase_created",
			ResourceType:   "copytrade_purchase",
			ResourceID:     3,
			Metadata:       map[string]any{"status": "pending"},
			IdempotencyKey: "purchase_created:copytrade_purchase:3:rq-1",
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no key stores null", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(int64(1), int64(7), "purchase_deleted", "copytrade_purchase", int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := p.InsertAuditLog(context.Background(), model.AuditEntry{
			ActorID:      1,
			UserID:       7,
			Action:       "purchase_deleted",
			ResourceType: "copytrade_purchase",
			ResourceID:   3,
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePurchaseMetrics(t *testing.T) {
	ctx := context.Background()
	updateQuery := `AND \(status <> 'active' OR \$4::timestamptz IS NULL\)`
	existsQuery := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM copytrade_purchases WHERE purchase_id = $1)")
	endDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("end date of active purchase is frozen", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(updateQuery).
			WithArgs(nil, nil, nil, endDate, int64(3)).
			WillReturnRows(sqlmock.NewRows(purchaseRowColumns))
		mock.ExpectQuery(existsQuery).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := p.UpdatePurchaseMetrics(ctx, 3, model.PurchaseChanges{EndDate: &endDate})

		assert.ErrorIs(t, err, repository.ErrStatusLocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing purchase", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery(updateQuery).
			WithArgs(nil, nil, nil, endDate, int64(9)).
			WillReturnRows(sqlmock.NewRows(purchaseRowColumns))
		mock.ExpectQuery(existsQuery).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := p.UpdatePurchaseMetrics(ctx, 9, model.PurchaseChanges{EndDate: &endDate})

		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
