package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type classStoreStub struct {
	classes   map[string]*models.ClassDetail
	booked    map[string]bool
	created   *models.ClassOffering
	deleteErr error
	deletedID string
}

func newClassStoreStub() *classStoreStub {
	return &classStoreStub{
		classes: make(map[string]*models.ClassDetail),
		booked:  make(map[string]bool),
	}
}

func (s *classStoreStub) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	result := make([]models.ClassDetail, 0, len(s.classes))
	for _, class := range s.classes {
		result = append(result, *class)
	}
	return result, len(result), nil
}

func (s *classStoreStub) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, ok := s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *class
	return &copy, nil
}

func (s *classStoreStub) ExistsTeacherPeriod(ctx context.Context, teacherID string, period int) (bool, error) {
	return s.booked[teacherID], nil
}

func (s *classStoreStub) Create(ctx context.Context, class *models.ClassOffering) error {
	class.ID = "class-new"
	class.SeatsAvailable = class.TotalCapacity
	s.created = class
	return nil
}

func (s *classStoreStub) DeleteIfUnused(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.classes[id]; !ok {
		return sql.ErrNoRows
	}
	s.deletedID = id
	return nil
}

type rolesStub map[string]models.UserRole

func (r rolesStub) ResolveRole(ctx context.Context, id string) (models.UserRole, error) {
	role, ok := r[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return role, nil
}

func TestClassServiceCreate(t *testing.T) {
	store := newClassStoreStub()
	roles := rolesStub{"teacher-1": models.RoleTeacher}
	svc := NewClassService(store, roles, nil, 6, nil, nil)

	class, err := svc.Create(context.Background(), CreateClassInput{
		Name:          "Algebra I",
		TeacherID:     "teacher-1",
		Period:        2,
		TotalCapacity: 25,
	})
	require.NoError(t, err)
	require.Equal(t, 25, class.SeatsAvailable)
	require.NotNil(t, store.created)
}

func TestClassServiceCreatePeriodOutOfRange(t *testing.T) {
	svc := NewClassService(newClassStoreStub(), rolesStub{"teacher-1": models.RoleTeacher}, nil, 6, nil, nil)

	_, err := svc.Create(context.Background(), CreateClassInput{
		Name:      "Algebra I",
		TeacherID: "teacher-1",
		Period:    7,
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassServiceCreateRejectsNonTeacher(t *testing.T) {
	roles := rolesStub{"student-1": models.RoleStudent}
	svc := NewClassService(newClassStoreStub(), roles, nil, 6, nil, nil)

	_, err := svc.Create(context.Background(), CreateClassInput{
		Name:      "Algebra I",
		TeacherID: "student-1",
		Period:    2,
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateClassInput{
		Name:      "Algebra I",
		TeacherID: "missing",
		Period:    2,
	})
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassServiceCreateTeacherBooked(t *testing.T) {
	store := newClassStoreStub()
	store.booked["teacher-1"] = true
	svc := NewClassService(store, rolesStub{"teacher-1": models.RoleTeacher}, nil, 6, nil, nil)

	_, err := svc.Create(context.Background(), CreateClassInput{
		Name:      "Algebra I",
		TeacherID: "teacher-1",
		Period:    2,
	})
	require.ErrorIs(t, err, appErrors.ErrTeacherBooked)
}

func TestClassServiceDelete(t *testing.T) {
	store := newClassStoreStub()
	store.classes["class-1"] = &models.ClassDetail{ClassOffering: models.ClassOffering{ID: "class-1"}}
	cache := newCacheStub()
	svc := NewClassService(store, rolesStub{}, cache, 6, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "class-1"))
	require.Equal(t, "class-1", store.deletedID)
	require.Equal(t, 1, cache.invalidated)
}

func TestClassServiceDeleteInUse(t *testing.T) {
	store := newClassStoreStub()
	store.deleteErr = appErrors.ErrClassInUse
	svc := NewClassService(store, rolesStub{}, nil, 6, nil, nil)

	err := svc.Delete(context.Background(), "class-1")
	require.ErrorIs(t, err, appErrors.ErrClassInUse)
}

func TestClassServiceDeleteMissing(t *testing.T) {
	svc := NewClassService(newClassStoreStub(), rolesStub{}, nil, 6, nil, nil)

	err := svc.Delete(context.Background(), "ghost")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassServiceGetMissing(t *testing.T) {
	svc := NewClassService(newClassStoreStub(), rolesStub{}, nil, 6, nil, nil)

	_, err := svc.Get(context.Background(), "ghost")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
