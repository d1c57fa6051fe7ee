package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func testSink(t *testing.T) (*Sink, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	return newWithDB(sqlxDB, time.Second), mock
}

func TestRecordInsertsEvent(t *testing.T) {
	sink, mock := testSink(t)

	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))

	sink.Record(context.Background(), Event{
		Type:    EventQuarantine,
		Source:  "stash-processor",
		Message: "undecodable stash change",
	}, time.Unix(0, 0))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSwallowsInsertFailure(t *testing.T) {
	sink, mock := testSink(t)

	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(assertErr)

	sink.Record(context.Background(), Event{Type: EventPoison, Source: "river-crawler", Message: "boom"}, time.Unix(0, 0))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilDBSinkIsNoOp(t *testing.T) {
	sink := &Sink{}
	sink.Record(context.Background(), Event{Type: EventRestart, Source: "history-api", Message: "restarted"}, time.Unix(0, 0))
}

var assertErr = &insertError{"boom"}

type insertError struct{ msg string }

func (e *insertError) Error() string { return e.msg }
