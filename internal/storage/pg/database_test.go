package pg

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecTx_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users").
		WithArgs(userID, int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(int64(2)))
	mock.ExpectCommit()

	store := NewDatabase(db).Store()
	var remaining int64
	err = store.ExecTx(context.Background(), func(q pgdb.Querier) error {
		var err error
		remaining, err = q.DebitUserCredits(context.Background(), pgdb.DebitUserCreditsParams{ID: userID, Amount: 10})
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewDatabase(db).ExecTx(context.Background(), func(q pgdb.Querier) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTx_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	called := false
	err = NewDatabase(db).ExecTx(context.Background(), func(q pgdb.Querier) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	check := &pq.Error{Code: "23514"}

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, IsUniqueViolation(check))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.True(t, IsCheckViolation(check))
}
