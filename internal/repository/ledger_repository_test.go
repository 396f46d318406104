package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeem_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM users WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(7)).WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(150))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_rewards")).
		WithArgs(uint64(7), uint64(3)).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM rewards WHERE id = ?")).
		WithArgs(uint64(3)).WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(100))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET points = points - ?")).
		WithArgs(int64(100), uint64(7), int64(100)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_rewards")).
		WithArgs(uint64(7), uint64(3)).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_transactions")).
		WithArgs(uint64(7), int64(-100), "reward_redeemed", uint64(3)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	got, err := repo.Redeem(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.UserReward.ID)
	assert.Equal(t, int64(100), got.Cost)
	assert.Equal(t, int64(50), got.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeem_AlreadyClaimedRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(500))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	_, err = NewLedgerRepo(db).Redeem(context.Background(), 7, 3)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(99))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(100))
	mock.ExpectRollback()

	_, err = NewLedgerRepo(db).Redeem(context.Background(), 7, 3)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeem_UnknownReward(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(99))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}))
	mock.ExpectRollback()

	_, err = NewLedgerRepo(db).Redeem(context.Background(), 7, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeem_UniqueKeyRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(100))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM rewards")).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(100))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET points = points - ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_rewards")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-3'"})
	mock.ExpectRollback()

	_, err = NewLedgerRepo(db).Redeem(context.Background(), 7, 3)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two redemptions of the same reward serialize on the user row lock.  The
// claim check must run after the lock so the second caller sees the first
// caller's committed claim and never debits.  sqlmock matches in order, so
// a claim check issued before the lock fails these expectations.
func TestRedeem_LocksUserBeforeClaimCheck(t *testing.T) {
	t.Run("second caller sees claim after lock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM users WHERE id = ? FOR UPDATE")).
			WithArgs(uint64(7)).WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(50))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_rewards WHERE user_id = ? AND reward_id = ?")).
			WithArgs(uint64(7), uint64(3)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		mock.ExpectRollback()

		_, err = NewLedgerRepo(db).Redeem(context.Background(), 7, 3)
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock failure stops before claim check", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		lockTimeout := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT points FROM users WHERE id = ? FOR UPDATE")).
			WithArgs(uint64(7)).WillReturnError(lockTimeout)
		mock.ExpectRollback()

		_, err = NewLedgerRepo(db).Redeem(context.Background(), 7, 3)
		assert.ErrorIs(t, err, lockTimeout)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCloseCard_CreditsOwnerOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, status FROM cards WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow(9, "open"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cards SET status = 'closed'")).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET points = points + ?")).
		WithArgs(int64(150), uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_transactions")).
		WithArgs(uint64(9), int64(150), "card_closed", uint64(5)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.CloseCard(context.Background(), 5, 150))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, status FROM cards WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow(9, "closed"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cards SET status = 'closed'")).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.CloseCard(context.Background(), 5, 150), ErrAlreadyClosed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseCard_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}))
	mock.ExpectRollback()
	assert.ErrorIs(t, NewLedgerRepo(db).CloseCard(context.Background(), 5, 150), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
