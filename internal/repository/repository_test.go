package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/garbage-collector/internal/model"
)

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	_, err = NewUserRepo(db).Create(context.Background(), model.User{Email: "A@B.io", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateLowercasesEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash := "abc"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Ada", "Lovelace", "123", "ada@example.com", "h", "user", "abc").
		WillReturnResult(sqlmock.NewResult(42, 1))
	id, err := NewUserRepo(db).Create(context.Background(), model.User{
		FirstName: "Ada", LastName: "Lovelace", IDNumber: "123", Email: "Ada@Example.com",
		PasswordHash: "h", Role: model.RoleUser, VerificationTokenHash: &hash,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmailScansNullables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "first_name", "last_name", "id_number", "email", "password_hash", "role", "is_activated",
		"verification_token_hash", "reset_token_hash", "reset_token_expires", "points", "status", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "Ada", "L", "1", "ada@example.com", "h", "admin", true,
			nil, "r", now, 300, "active", now, now))

	u, err := NewUserRepo(db).GetByEmail(context.Background(), "  ADA@example.com ")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
	assert.Nil(t, u.VerificationTokenHash)
	require.NotNil(t, u.ResetTokenHash)
	assert.Equal(t, "r", *u.ResetTokenHash)
	assert.Equal(t, int64(300), u.Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = NewUserRepo(db).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_ActivateIsConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND is_activated = 0")).
		WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND is_activated = 0")).
		WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Activate(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Activate(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_ResetPasswordStaleToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND reset_token_hash = ? AND reset_token_expires > ?")).
		WithArgs("newhash", uint64(3), "tok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := NewUserRepo(db).ResetPassword(context.Background(), 3, "tok", "newhash", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRepo_SetStatusMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status = ?")).
		WithArgs("disabled", uint64(8)).WillReturnResult(sqlmock.NewResult(0, 0))
	err = NewUserRepo(db).SetStatus(context.Background(), 8, model.AccountDisabled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepo_WasConsumed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM consumed_tokens")).
		WithArgs("h1", PurposeVerify).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM consumed_tokens")).
		WithArgs("h2", PurposeVerify).WillReturnRows(sqlmock.NewRows([]string{"1"}))

	ok, err := repo.WasConsumed(context.Background(), "h1", PurposeVerify)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.WasConsumed(context.Background(), "h2", PurposeVerify)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_CreateSlugCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cards")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_cards_slug'"})
	c := &model.Card{Slug: "broken-streetlight-1a2b3c4d", Title: "Broken Streetlight"}
	assert.ErrorIs(t, NewCardRepo(db).Create(context.Background(), c), ErrDuplicate)
}

func TestCardRepo_UpdateKeepsImageUnlessReplaced(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCardRepo(db)

	mock.ExpectExec(`UPDATE cards SET full_name = \?, .* description = \?\s+WHERE id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), model.Card{ID: 1, Title: "t"}, false))

	mock.ExpectExec(regexp.QuoteMeta("description = ?, image = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), model.Card{ID: 1, Title: "t", Image: []byte{1}}, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardStatusRepo_ListInsertionOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id ASC")).
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_id", "status_text", "status_date"}).
			AddRow(1, 4, "received", now).
			AddRow(2, 4, "crew dispatched", now))
	got, err := NewCardStatusRepo(db).List(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "received", got[0].StatusText)
	assert.Equal(t, "crew dispatched", got[1].StatusText)
}

func TestRewardRepo_DeleteRedeemedIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRewardRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rewards")).
		WithArgs(uint64(2)).
		WillReturnError(&mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"})
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rewards")).
		WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 3), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
