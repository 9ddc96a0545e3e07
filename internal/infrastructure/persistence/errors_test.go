package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestClassifyError(t *testing.T) {
	plain := errors.New("syntax error")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, invoicing.ErrStorageConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, invoicing.ErrStorageConflict},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, invoicing.ErrStorageConflict},
		{"connection failure", &pgconn.PgError{Code: "08006"}, shared.ErrUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, shared.ErrUnavailable},
		{"bad connection", driver.ErrBadConn, shared.ErrUnavailable},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, shared.ErrUnavailable},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, invoicing.ErrStorageConflict},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, invoicing.ErrStorageConflict},
		{"locked message", errors.New("database is locked"), invoicing.ErrStorageConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "cause must stay reachable")
		})
	}

	t.Run("passthrough", func(t *testing.T) {
		assert.Nil(t, classifyError(nil))
		assert.Same(t, plain, classifyError(plain))
		assert.Equal(t, context.Canceled, classifyError(context.Canceled))
		assert.Equal(t, error(invoicing.ErrInvoiceNotFound), classifyError(invoicing.ErrInvoiceNotFound))

		unique := &pgconn.PgError{Code: "23505"}
		assert.Same(t, unique, classifyError(unique))
	})
}

// newMockLedgerStore creates a GormLedgerStore over a mocked postgres connection
func newMockLedgerStore(t *testing.T) (*GormLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	return NewGormLedgerStore(gormDB), mock
}

func TestGormLedgerStore_Postgres(t *testing.T) {
	ctx := context.Background()

	t.Run("locks the invoice row and maps lock timeouts to conflicts", func(t *testing.T) {
		store, mock := newMockLedgerStore(t)
		p, err := invoicing.NewPayment(uuid.New(), decimal.NewFromInt(10), invoicing.PaymentMethodStripe, invoicing.Succeeded("tx_1"))
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WillReturnError(&pgconn.PgError{Code: "55P03"})
		mock.ExpectRollback()

		out, err := store.ApplyPayment(ctx, p)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, invoicing.ErrStorageConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("find invoice maps not found", func(t *testing.T) {
		store, mock := newMockLedgerStore(t)
		id := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		inv, err := store.FindInvoice(ctx, id)
		assert.Nil(t, inv)
		assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overdue query joins clients and filters unpaid past due", func(t *testing.T) {
		store, mock := newMockLedgerStore(t)
		id := uuid.New()

		mock.ExpectQuery(`SELECT invoices.id AS invoice_id, .* FROM "invoices" JOIN clients ON clients.id = invoices.client_id WHERE invoices.paid = \$1 AND invoices.due_date < \$2 ORDER BY invoices.due_date ASC`).
			WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "amount", "due_date", "client_name", "client_email"}).
				AddRow(id.String(), "99.50", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "Jane", "jane@example.com"))

		rows, err := store.FindOverdue(ctx, time.Now())
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, id, rows[0].InvoiceID)
		assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("99.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overdue query failure surfaces unavailable", func(t *testing.T) {
		store, mock := newMockLedgerStore(t)
		mock.ExpectQuery(`SELECT invoices.id`).
			WillReturnError(&pgconn.PgError{Code: "08006"})

		_, err := store.FindOverdue(ctx, time.Now())
		assert.ErrorIs(t, err, shared.ErrUnavailable)
	})
}
