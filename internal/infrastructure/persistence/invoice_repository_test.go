package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormInvoiceRepository_List(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	jane := f.createClient(t, "Jane", "jane@example.com")
	bob := f.createClient(t, "Bob", "bob@example.com")

	f.createInvoice(t, jane.ID, "100", now.Add(-24*time.Hour))
	paid := f.createInvoice(t, jane.ID, "50", now.Add(-24*time.Hour))
	f.createInvoice(t, bob.ID, "75", now.Add(24*time.Hour))

	_, err := f.store.ApplyPayment(ctx, newTestPayment(t, paid.ID, "50", invoicing.PaymentMethodStripe, invoicing.Succeeded("tx_p")))
	require.NoError(t, err)

	t.Run("by client", func(t *testing.T) {
		invoices, total, err := f.invoices.List(ctx, invoicing.InvoiceFilter{ClientID: &jane.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, invoices, 2)
	})

	t.Run("by paid flag", func(t *testing.T) {
		yes := true
		invoices, total, err := f.invoices.List(ctx, invoicing.InvoiceFilter{Paid: &yes})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, paid.ID, invoices[0].ID)
	})

	t.Run("overdue", func(t *testing.T) {
		invoices, total, err := f.invoices.List(ctx, invoicing.InvoiceFilter{OverdueAt: &now})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.True(t, invoices[0].Amount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("ordered by amount", func(t *testing.T) {
		invoices, _, err := f.invoices.List(ctx, invoicing.InvoiceFilter{Filter: shared.Filter{OrderBy: "amount", OrderDir: "asc"}})
		require.NoError(t, err)
		require.Len(t, invoices, 3)
		assert.True(t, invoices[0].Amount.Equal(decimal.NewFromInt(50)))
		assert.True(t, invoices[2].Amount.Equal(decimal.NewFromInt(100)))
	})
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	c := f.createClient(t, "Jane", "jane@example.com")
	inv := f.createInvoice(t, c.ID, "100", time.Now().Add(time.Hour))

	t.Run("amount edit re-derives paid", func(t *testing.T) {
		_, err := f.store.ApplyPayment(ctx, newTestPayment(t, inv.ID, "60", invoicing.PaymentMethodStripe, invoicing.Succeeded("tx_60")))
		require.NoError(t, err)

		current, err := f.invoices.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		total, err := f.invoices.ConfirmedTotal(ctx, inv.ID)
		require.NoError(t, err)

		amount := decimal.NewFromInt(60)
		require.NoError(t, current.Apply(invoicing.InvoiceUpdate{Amount: &amount}, total, time.Now()))
		require.NoError(t, f.invoices.SaveWithLock(ctx, current))

		stored, err := f.invoices.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, stored.Paid)
		assert.Equal(t, current.Version, stored.Version)
	})

	t.Run("edit computed before a payment landed loses", func(t *testing.T) {
		other := f.createInvoice(t, c.ID, "100", time.Now().Add(time.Hour))

		snapshot, err := f.invoices.FindByID(ctx, other.ID)
		require.NoError(t, err)

		_, err = f.store.ApplyPayment(ctx, newTestPayment(t, other.ID, "100", invoicing.PaymentMethodStripe, invoicing.Succeeded("tx_race")))
		require.NoError(t, err)

		desc := "late edit"
		require.NoError(t, snapshot.Apply(invoicing.InvoiceUpdate{Description: &desc}, decimal.Zero, time.Now()))
		assert.ErrorIs(t, f.invoices.SaveWithLock(ctx, snapshot), shared.ErrConcurrencyConflict)

		stored, err := f.invoices.FindByID(ctx, other.ID)
		require.NoError(t, err)
		assert.True(t, stored.Paid)
	})
}

func TestGormInvoiceRepository_Delete(t *testing.T) {
	ctx := context.Background()
	due := time.Now().UTC().Add(-time.Hour)

	t.Run("invoice without payments is removed with its reminder log", func(t *testing.T) {
		f := newLedgerFixture(t)
		c := f.createClient(t, "Jane", "jane@example.com")
		inv := f.createInvoice(t, c.ID, "10", due)
		reserved, err := NewGormReminderLog(f.db).Reserve(ctx, inv.ID, time.Now())
		require.NoError(t, err)
		require.True(t, reserved)

		require.NoError(t, f.invoices.Delete(ctx, inv.ID))

		_, err = f.invoices.FindByID(ctx, inv.ID)
		assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)
		var logs int64
		require.NoError(t, f.db.Table("reminder_logs").Where("invoice_id = ?", inv.ID).Count(&logs).Error)
		assert.Zero(t, logs)
	})

	t.Run("any recorded payment blocks the delete", func(t *testing.T) {
		f := newLedgerFixture(t)
		c := f.createClient(t, "Jane", "jane@example.com")
		inv := f.createInvoice(t, c.ID, "10", due)
		_, err := f.store.ApplyPayment(ctx, newTestPayment(t, inv.ID, "10", invoicing.PaymentMethodStripe, invoicing.Failed("ch_1", "declined")))
		require.NoError(t, err)

		err = f.invoices.Delete(ctx, inv.ID)
		assert.ErrorIs(t, err, invoicing.ErrInvoiceHasPayments)
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = f.invoices.FindByID(ctx, inv.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), countPayments(t, f.db, inv.ID))
	})

	t.Run("unknown invoice", func(t *testing.T) {
		f := newLedgerFixture(t)
		err := f.invoices.Delete(ctx, uuid.New())
		assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)
	})
}

func TestGormReminderLog(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	log := NewGormReminderLog(f.db)

	c := f.createClient(t, "Jane", "jane@example.com")
	inv := f.createInvoice(t, c.ID, "10", time.Now().Add(-time.Hour))
	morning := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	ok, err := log.Reserve(ctx, inv.ID, morning)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.Reserve(ctx, inv.ID, morning.Add(10*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "same calendar day is already reserved")

	ok, err = log.Reserve(ctx, inv.ID, morning.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok, "next day is a fresh key")

	require.NoError(t, log.Release(ctx, inv.ID, morning))
	ok, err = log.Reserve(ctx, inv.ID, morning)
	require.NoError(t, err)
	assert.True(t, ok, "released reservation can be taken again")
}
