package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/auth"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// User search paging. A Limit of 0 means "no limit".
const (
	DefaultUserLimit = 20
	MaxUserLimit     = 50
)

// CreateUserInput is a sign-up request.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateUserInput is a partial user update. A non-empty Password rotates
// the credentials.
type UpdateUserInput struct {
	Name     model.Optional[string]
	Password model.Optional[string]
	Active   model.Optional[bool]
}

// UserService handles accounts and login.
//
//	UserHandler (HTTP) → UserService → UserRepository (DB)
//	                                 ↘ PasswordService (PBKDF2)
//	                                 ↘ TokenService (JWT)
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates a UserService with all required dependencies.
func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Login exchanges an email and password for a session token.
//
//	unknown email   → BadCredentials
//	inactive user   → Forbidden("User is not active")
//	wrong password  → BadCredentials
//
// The inactive check runs before the password check, so it answers for any
// password and reveals that the account exists.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	creds, err := s.users.GetCredentialsByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.BadCredentials()
		}
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	if !creds.Active {
		return "", apperror.Forbidden("User is not active")
	}

	if !s.passwords.CheckPassword(password, creds.Salt, creds.Hash) {
		s.logger.Info("login rejected", slog.String("userId", creds.UserID))
		return "", apperror.BadCredentials()
	}

	token, err := s.tokens.CreateSessionToken(creds.UserID)
	if err != nil {
		return "", fmt.Errorf("creating session token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userId", creds.UserID))
	return token, nil
}

// CreateUser validates a sign-up and stores the new, active account. The
// email is lower-cased; a taken email is a conflict.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	email := strings.ToLower(in.Email)

	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if err := checkName(in.Name); err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	// The unique index still catches a concurrent sign-up with the same email.
	_, err := s.users.GetCredentialsByEmail(ctx, email)
	if err == nil {
		return nil, apperror.Conflict("User with this email already exists")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	salt, hash, err := s.passwords.GenerateSaltAndHash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{Name: in.Name, Email: email, Active: true}
	if err := s.users.CreateUser(ctx, user, hash, salt); err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", slog.String("id", user.ID))
	return user, nil
}

// GetUserByID returns the public part of an account.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// UpdateUser applies in to the account id on behalf of callerID. Callers may
// only change their own account.
func (s *UserService) UpdateUser(ctx context.Context, callerID, id string, in UpdateUserInput) (*model.User, error) {
	if callerID != id {
		return nil, apperror.Forbidden("You can only update your own account")
	}

	if err := notNull("name", in.Name); err != nil {
		return nil, err
	}
	if err := notNull("active", in.Active); err != nil {
		return nil, err
	}
	if in.Name.HasValue() {
		if err := checkName(in.Name.Value); err != nil {
			return nil, err
		}
	}

	upd := repository.UserUpdate{Name: in.Name, Active: in.Active}

	if in.Password.HasValue() && in.Password.Value != "" {
		if err := checkPassword(in.Password.Value); err != nil {
			return nil, err
		}
		salt, hash, err := s.passwords.GenerateSaltAndHash(in.Password.Value)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		upd.Hash = model.Some(hash)
		upd.Salt = model.Some(salt)
	}

	user, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}

	s.logger.Info("user updated",
		slog.String("id", id),
		slog.Bool("passwordChanged", upd.Hash.Set),
	)
	return user, nil
}

// SearchUsers validates paging and lists accounts. A negative Limit is
// rejected; zero means no limit.
func (s *UserService) SearchUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error) {
	if filter.Limit < 0 || filter.Limit > MaxUserLimit {
		return nil, apperror.ValidationFailed("limit",
			fmt.Sprintf("limit must be between 0 and %d", MaxUserLimit))
	}
	if filter.Offset < 0 {
		return nil, apperror.ValidationFailed("offset", "offset must not be less than 0")
	}

	users, err := s.users.SearchUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}

// isAppError reports whether err already carries a domain error that the
// handler can map to a status.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
