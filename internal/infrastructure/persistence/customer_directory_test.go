package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

func newMockCustomerDirectory(t *testing.T) (*GormCustomerDirectory, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockDB(t)
	return NewGormCustomerDirectory(gormDB), mock, mockDB
}

func TestGormCustomerDirectory_FindByEmail(t *testing.T) {
	t.Run("matches case-insensitively", func(t *testing.T) {
		directory, mock, mockDB := newMockCustomerDirectory(t)
		defer mockDB.Close()

		rows := sqlmock.NewRows([]string{"id", "name", "email", "phone", "status", "tier", "source"}).
			AddRow(77, "Ada Lovelace", "ada@example.com", "", "active", "standard", "etsy")

		mock.ExpectQuery(`SELECT \* FROM "customers" WHERE LOWER\(email\) = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("ada@example.com", 1).
			WillReturnRows(rows)

		customer, err := directory.FindByEmail(context.Background(), "Ada@Example.com")

		require.NoError(t, err)
		assert.Equal(t, int64(77), customer.ID)
		assert.Equal(t, "ada@example.com", customer.Email)
		assert.Equal(t, sales.CustomerStatusActive, customer.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing row to ErrCustomerNotFound", func(t *testing.T) {
		directory, mock, mockDB := newMockCustomerDirectory(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "customers"`).
			WillReturnError(gorm.ErrRecordNotFound)

		customer, err := directory.FindByEmail(context.Background(), "nobody@example.com")

		assert.Nil(t, customer)
		assert.ErrorIs(t, err, integration.ErrCustomerNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty email never hits the database", func(t *testing.T) {
		directory, mock, mockDB := newMockCustomerDirectory(t)
		defer mockDB.Close()

		_, err := directory.FindByEmail(context.Background(), "")
		assert.ErrorIs(t, err, integration.ErrCustomerNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCustomerDirectory_Create(t *testing.T) {
	t.Run("assigns id and defaults", func(t *testing.T) {
		directory, mock, mockDB := newMockCustomerDirectory(t)
		defer mockDB.Close()

		mock.ExpectQuery(`INSERT INTO "customers" .*`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1001))

		created, err := directory.Create(context.Background(), &sales.Customer{
			Name:   "Jane Smith",
			Email:  "jane@example.com",
			Source: "shopify",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1001), created.ID)
		assert.Equal(t, sales.CustomerStatusActive, created.Status)
		assert.Equal(t, sales.CustomerTierStandard, created.Tier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates insert failure", func(t *testing.T) {
		directory, mock, mockDB := newMockCustomerDirectory(t)
		defer mockDB.Close()

		mock.ExpectQuery(`INSERT INTO "customers" .*`).
			WillReturnError(sql.ErrConnDone)

		created, err := directory.Create(context.Background(), &sales.Customer{Name: "Jane"})

		assert.Nil(t, created)
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
