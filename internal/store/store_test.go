package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsre/poeledger/internal/listing"
)

func testStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "clickhouse")
	return newWithDB(sqlxDB, DefaultConfig("test")), mock
}

func TestCreateBatchInsertsAndCommits(t *testing.T) {
	s, mock := testStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.CreateBatch(context.Background(), []listing.Listing{{
		ItemID: "i1",
		Name:   "Headhunter",
		League: "Standard",
		Price: listing.Price{
			ListedPrice:    50,
			ListedCurrency: listing.CurrencyExalted,
		},
		CreatedAt: time.Now(),
	}})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchEmptyIsNoOp(t *testing.T) {
	s, mock := testStore(t)

	err := s.CreateBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchRollsBackOnInsertFailure(t *testing.T) {
	s, mock := testStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings").WillReturnError(assertErr)
	mock.ExpectRollback()

	err := s.CreateBatch(context.Background(), []listing.Listing{{ItemID: "i1", League: "Standard"}})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var assertErr = &insertErr{"boom"}

type insertErr struct{ msg string }

func (e *insertErr) Error() string { return e.msg }
