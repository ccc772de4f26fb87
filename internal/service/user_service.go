package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/config"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type userAdminStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// CreateUserInput is the validated boundary for account provisioning.
type CreateUserInput struct {
	Username string          `json:"username" validate:"required,min=3,max=50"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	FullName string          `json:"full_name" validate:"required,min=1,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
}

// UserService provisions accounts. Admins create users through the API;
// the bootstrap path seeds the first admin on an empty database.
type UserService struct {
	users     userAdminStore
	bootstrap config.BootstrapConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(users userAdminStore, bootstrap config.BootstrapConfig, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, bootstrap: bootstrap, validator: validate, logger: logger}
}

// CreateUser hashes the password and stores an active account. A taken
// username surfaces as CONFLICT from the store's unique constraint.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*models.UserInfo, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: string(hash),
		FullName:     input.FullName,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)
	return &models.UserInfo{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
	}, nil
}

// EnsureBootstrapAdmin creates the configured initial admin when no account
// with that username exists yet. An empty username disables seeding; an
// existing account is left untouched.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context) error {
	if s.bootstrap.AdminUsername == "" {
		return nil
	}
	if s.bootstrap.AdminPassword == "" {
		return appErrors.Clone(appErrors.ErrValidation, "bootstrap admin password must not be empty")
	}

	_, err := s.users.FindByUsername(ctx, s.bootstrap.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up bootstrap admin")
	}

	info, err := s.CreateUser(ctx, CreateUserInput{
		Username: s.bootstrap.AdminUsername,
		Password: s.bootstrap.AdminPassword,
		FullName: s.bootstrap.AdminFullName,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", zap.String("user_id", info.ID), zap.String("username", info.Username))
	return nil
}
