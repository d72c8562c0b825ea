package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"toyshop/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepo_CreateWithRoleInTx(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (username, password, email, enabled) VALUES ($1, $2, $3, $4) RETURNING id")).
		WithArgs("alice", "hash", "a@example.com", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles (user_id, role) VALUES ($1, $2)")).
		WithArgs(int64(3), domain.RoleUser).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r := NewUserRepo(db)
	tx, err := db.Begin()
	require.NoError(t, err)
	u := &domain.User{Username: "alice", PasswordHash: "hash", Email: "a@example.com", Enabled: true}
	require.NoError(t, r.CreateUser(context.Background(), tx, u))
	require.NoError(t, r.AddRole(context.Background(), tx, u.ID, domain.RoleUser))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(3), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindRoles(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles WHERE user_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("ROLE_ADMIN").AddRow("ROLE_USER"))

	roles, err := NewUserRepo(db).FindRoles(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, roles)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(errors.Join(errors.New("insert"), &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
