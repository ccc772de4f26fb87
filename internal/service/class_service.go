package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type classStore interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsTeacherPeriod(ctx context.Context, teacherID string, period int) (bool, error)
	Create(ctx context.Context, class *models.ClassOffering) error
	DeleteIfUnused(ctx context.Context, id string) error
}

type roleResolver interface {
	ResolveRole(ctx context.Context, id string) (models.UserRole, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CreateClassInput is the validated boundary for class creation.
type CreateClassInput struct {
	Name          string `json:"name" validate:"required,min=1,max=200"`
	Description   string `json:"description" validate:"max=2000"`
	TeacherID     string `json:"teacher_id" validate:"required"`
	Period        int    `json:"period" validate:"required,min=1"`
	TotalCapacity int    `json:"total_capacity" validate:"min=0"`
}

// ClassService manages the class catalog: admin creation and removal plus
// the public listing surface.
type ClassService struct {
	classes    classStore
	users      roleResolver
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	maxPeriods int
}

// NewClassService constructs the catalog service. The cache may be nil.
func NewClassService(classes classStore, users roleResolver, cache cacheInvalidator, maxPeriods int, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPeriods < 1 {
		maxPeriods = 6
	}
	return &ClassService{
		classes:    classes,
		users:      users,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		maxPeriods: maxPeriods,
	}
}

// List returns class offerings matching the filter.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Get returns one class offering with teacher info.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	detail, err := s.classes.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Create registers a new offering with every seat open. The teacher must
// exist, hold the TEACHER role, and be free in the requested period; the
// unique (teacher_id, period) constraint backs the pre-check.
func (s *ClassService) Create(ctx context.Context, input CreateClassInput) (*models.ClassOffering, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if input.Period > s.maxPeriods {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period is outside the school schedule")
	}

	role, err := s.users.ResolveRole(ctx, input.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher")
	}
	if role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id does not refer to a teacher")
	}

	booked, err := s.classes.ExistsTeacherPeriod(ctx, input.TeacherID, input.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher schedule")
	}
	if booked {
		return nil, appErrors.ErrTeacherBooked
	}

	class := &models.ClassOffering{
		Name:          input.Name,
		Description:   input.Description,
		TeacherID:     input.TeacherID,
		Period:        input.Period,
		TotalCapacity: input.TotalCapacity,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.Info("class created",
		zap.String("class_id", class.ID),
		zap.String("teacher_id", class.TeacherID),
		zap.Int("period", class.Period),
		zap.Int("capacity", class.TotalCapacity),
	)
	return class, nil
}

// Delete removes an offering that has no enrollments and no pending
// requests. Anything still attached surfaces as CLASS_IN_USE.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := s.classes.DeleteIfUnused(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return err
	}
	s.invalidate(ctx)

	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}

func (s *ClassService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
