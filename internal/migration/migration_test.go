package migration_test

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/billbook/internal/migration"
	"github.com/smallbiznis/billbook/internal/migration/migrationtest"
	"github.com/smallbiznis/billbook/internal/seed"
	"github.com/smallbiznis/billbook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn := migrationtest.NewDB(t)

	for _, table := range []string{"products", "customers", "invoices", "invoice_items", "invoice_sequences", "ledger_entries", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("invoices", "ux_invoices_invoice_number"))
	assert.True(t, conn.Migrator().HasIndex("customers", "ux_customers_email"))

	// idempotent
	require.NoError(t, migration.AutoMigrate(conn))
}

func TestEnsureInvoiceSequenceIsIdempotent(t *testing.T) {
	conn := migrationtest.NewDB(t)

	require.NoError(t, seed.EnsureInvoiceSequence(conn, "invoice"))
	require.NoError(t, seed.EnsureInvoiceSequence(conn, "invoice"))

	var count int64
	require.NoError(t, conn.Raw(`SELECT COUNT(1) FROM invoice_sequences WHERE name = ?`, "invoice").Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureSampleDataRunsOnce(t *testing.T) {
	conn := migrationtest.NewDB(t)

	require.NoError(t, seed.EnsureSampleData(conn, 1))
	require.NoError(t, seed.EnsureSampleData(conn, 1))

	var products int64
	require.NoError(t, conn.Raw(`SELECT COUNT(1) FROM products`).Scan(&products).Error)
	assert.EqualValues(t, 3, products)
}

func TestRunRejectsNilHandle(t *testing.T) {
	assert.Error(t, migration.Run(nil, db.Config{Type: "sqlite"}))
	assert.Error(t, migration.RunMigrations(nil))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := fs.Glob(migration.Files(), "migrations/*.up.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}
