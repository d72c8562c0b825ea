package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"toyshop/internal/domain"
	"toyshop/internal/repo"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	Register(ctx context.Context, username, password, email string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.UserWithRoles, error)
	FindByUsernameWithRoles(ctx context.Context, username string) (*domain.UserWithRoles, error)
}

type userService struct {
	db       *sql.DB
	userRepo repo.UserRepo
	logger   logrus.FieldLogger
}

func NewUserService(db *sql.DB, userRepo repo.UserRepo, logger logrus.FieldLogger) UserService {
	return &userService{db: db, userRepo: userRepo, logger: logger}
}

func (s *userService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Username: username, PasswordHash: string(hash), Email: email, Enabled: true}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if err := s.userRepo.AddRole(ctx, tx, user.ID, domain.RoleUser); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithField("username", username).Info("user registered")
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.UserWithRoles, error) {
	u, err := s.FindByUsernameWithRoles(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.User.Enabled {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.User.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *userService) FindByUsernameWithRoles(ctx context.Context, username string) (*domain.UserWithRoles, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil || user == nil {
		return nil, err
	}
	roles, err := s.userRepo.FindRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.UserWithRoles{User: *user, Roles: roles}, nil
}
