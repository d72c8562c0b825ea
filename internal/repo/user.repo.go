package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toyshop/internal/domain"
)

type UserRepo interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindRoles(ctx context.Context, userID int64) ([]string, error)
	CreateUser(ctx context.Context, tx *sql.Tx, user *domain.User) error
	AddRole(ctx context.Context, tx *sql.Tx, userID int64, role string) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, password, email, enabled FROM users WHERE username = $1",
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) FindRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role", userID)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *userRepo) CreateUser(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	err := conn(r.db, tx).QueryRowContext(ctx,
		"INSERT INTO users (username, password, email, enabled) VALUES ($1, $2, $3, $4) RETURNING id",
		u.Username, u.PasswordHash, u.Email, u.Enabled,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) AddRole(ctx context.Context, tx *sql.Tx, userID int64, role string) error {
	_, err := conn(r.db, tx).ExecContext(ctx, "INSERT INTO user_roles (user_id, role) VALUES ($1, $2)", userID, role)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}
