package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/config"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type userAdminStoreStub struct {
	byUsername map[string]*models.User
	created    []*models.User
}

func newUserAdminStoreStub() *userAdminStoreStub {
	return &userAdminStoreStub{byUsername: make(map[string]*models.User)}
}

func (s *userAdminStoreStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := s.byUsername[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *userAdminStoreStub) Create(ctx context.Context, user *models.User) error {
	if _, taken := s.byUsername[user.Username]; taken {
		return appErrors.Clone(appErrors.ErrConflict, "username already taken")
	}
	user.ID = "user-" + user.Username
	s.byUsername[user.Username] = user
	s.created = append(s.created, user)
	return nil
}

func TestUserServiceCreateUserHashesPassword(t *testing.T) {
	store := newUserAdminStoreStub()
	svc := NewUserService(store, config.BootstrapConfig{}, nil, nil)

	info, err := svc.CreateUser(context.Background(), CreateUserInput{
		Username: "dlee",
		Password: "correct horse",
		FullName: "Dana Lee",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	require.Equal(t, "dlee", info.Username)
	require.Equal(t, models.RoleStudent, info.Role)

	require.Len(t, store.created, 1)
	created := store.created[0]
	require.True(t, created.Active)
	require.NotEqual(t, "correct horse", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")))
}

func TestUserServiceCreateUserValidation(t *testing.T) {
	svc := NewUserService(newUserAdminStoreStub(), config.BootstrapConfig{}, nil, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Username: "dlee",
		Password: "short",
		FullName: "Dana Lee",
		Role:     models.RoleStudent,
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateUser(context.Background(), CreateUserInput{
		Username: "dlee",
		Password: "long enough",
		FullName: "Dana Lee",
		Role:     "PRINCIPAL",
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateUserDuplicate(t *testing.T) {
	store := newUserAdminStoreStub()
	svc := NewUserService(store, config.BootstrapConfig{}, nil, nil)

	input := CreateUserInput{Username: "dlee", Password: "long enough", FullName: "Dana Lee", Role: models.RoleStudent}
	_, err := svc.CreateUser(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), input)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceEnsureBootstrapAdmin(t *testing.T) {
	store := newUserAdminStoreStub()
	svc := NewUserService(store, config.BootstrapConfig{
		AdminUsername: "root",
		AdminPassword: "first password",
		AdminFullName: "School Admin",
	}, nil, nil)

	require.NoError(t, svc.EnsureBootstrapAdmin(context.Background()))
	require.Len(t, store.created, 1)
	require.Equal(t, models.RoleAdmin, store.created[0].Role)

	// A second boot finds the account and seeds nothing.
	require.NoError(t, svc.EnsureBootstrapAdmin(context.Background()))
	require.Len(t, store.created, 1)
}

func TestUserServiceEnsureBootstrapAdminDisabled(t *testing.T) {
	store := newUserAdminStoreStub()
	svc := NewUserService(store, config.BootstrapConfig{}, nil, nil)

	require.NoError(t, svc.EnsureBootstrapAdmin(context.Background()))
	require.Empty(t, store.created)
}
