package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// Authorizer resolves the role of an acting user. The registrar calls it
// exactly once per operation, before any transaction is opened.
type Authorizer interface {
	ResolveRole(ctx context.Context, id string) (models.UserRole, error)
}

type registrarStore interface {
	SubmitAdd(ctx context.Context, classID, studentID string) (*models.EnrollmentRequest, error)
	SubmitDrop(ctx context.Context, classID, studentID string) (*models.EnrollmentRequest, error)
	Accept(ctx context.Context, requestID string) (*repository.AcceptOutcome, error)
	Decline(ctx context.Context, requestID string) (*models.EnrollmentRequest, error)
}

type pendingLister interface {
	ListPending(ctx context.Context, kind models.RequestKind) ([]models.RequestDetail, error)
}

type scheduleReader interface {
	StudentPeriods(ctx context.Context, studentID string) ([]int, error)
}

type openClassLister interface {
	ListOpenForStudent(ctx context.Context, studentID string) ([]models.ClassDetail, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type decisionRecorder interface {
	RecordDecision(kind, outcome string)
	RecordCacheOperation(operation, result string)
}

// SubmitRequestInput is the validated boundary for student submissions.
type SubmitRequestInput struct {
	Kind    models.RequestKind `json:"kind" validate:"required,oneof=ADD DROP"`
	ClassID string             `json:"class_id" validate:"required"`
}

// RegistrarService is the enrollment consistency engine. It orchestrates
// the request store, enrollment store and capacity ledger through the
// registrar repository's transactions, and never retries contention.
type RegistrarService struct {
	store      registrarStore
	pending    pendingLister
	schedule   scheduleReader
	catalog    openClassLister
	cache      catalogCache
	authorizer Authorizer
	metrics    decisionRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	maxPeriods int
	cacheTTL   time.Duration
}

// RegistrarServiceOption configures optional collaborators.
type RegistrarServiceOption func(*RegistrarService)

// WithCatalogCache enables the advisory open-classes cache.
func WithCatalogCache(cache catalogCache, ttl time.Duration) RegistrarServiceOption {
	return func(s *RegistrarService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithDecisionRecorder wires decision metrics.
func WithDecisionRecorder(metrics decisionRecorder) RegistrarServiceOption {
	return func(s *RegistrarService) {
		s.metrics = metrics
	}
}

// NewRegistrarService constructs the engine.
func NewRegistrarService(store registrarStore, pending pendingLister, schedule scheduleReader, catalog openClassLister, authorizer Authorizer, maxPeriods int, validate *validator.Validate, logger *zap.Logger, opts ...RegistrarServiceOption) *RegistrarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPeriods < 1 {
		maxPeriods = 6
	}
	svc := &RegistrarService{
		store:      store,
		pending:    pending,
		schedule:   schedule,
		catalog:    catalog,
		authorizer: authorizer,
		validator:  validate,
		logger:     logger,
		maxPeriods: maxPeriods,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// MaxPeriods exposes the configured schedule length.
func (s *RegistrarService) MaxPeriods() int {
	return s.maxPeriods
}

func (s *RegistrarService) requireRole(ctx context.Context, userID string, role models.UserRole) error {
	resolved, err := s.authorizer.ResolveRole(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrForbidden
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve role")
	}
	if resolved != role {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *RegistrarService) record(kind models.RequestKind, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordDecision(string(kind), outcome)
	}
}

func (s *RegistrarService) recordCache(operation, result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(operation, result)
	}
}

func (s *RegistrarService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

// SubmitRequest stores a pending add or drop intent for the student.
// Validation order for add: class exists, seats available (advisory),
// period free, no duplicate pending add. For drop: class exists, student
// enrolled, no duplicate pending drop.
func (s *RegistrarService) SubmitRequest(ctx context.Context, input SubmitRequestInput, studentID string) (*models.EnrollmentRequest, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if err := s.requireRole(ctx, studentID, models.RoleStudent); err != nil {
		return nil, err
	}

	var (
		request *models.EnrollmentRequest
		err     error
	)
	switch input.Kind {
	case models.RequestKindAdd:
		request, err = s.store.SubmitAdd(ctx, input.ClassID, studentID)
	case models.RequestKindDrop:
		request, err = s.store.SubmitDrop(ctx, input.ClassID, studentID)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be ADD or DROP")
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("request submitted",
		zap.String("request_id", request.ID),
		zap.String("kind", string(request.Kind)),
		zap.String("class_id", request.ClassID),
		zap.String("student_id", request.StudentID),
	)
	return request, nil
}

// ListPendingRequests returns pending requests of a kind for adjudication.
func (s *RegistrarService) ListPendingRequests(ctx context.Context, kind models.RequestKind, adminID string) ([]models.RequestDetail, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be ADD or DROP")
	}
	if err := s.requireRole(ctx, adminID, models.RoleAdmin); err != nil {
		return nil, err
	}
	requests, err := s.pending.ListPending(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return requests, nil
}

// AcceptRequest settles a pending request. The role check happens before
// the transaction opens; the transition itself is all-or-nothing. Accepting
// an already-settled request yields NOT_FOUND, never a double effect.
func (s *RegistrarService) AcceptRequest(ctx context.Context, requestID, adminID string) (*models.EnrollmentRequest, error) {
	if err := s.requireRole(ctx, adminID, models.RoleAdmin); err != nil {
		return nil, err
	}

	outcome, err := s.store.Accept(ctx, requestID)
	if err != nil {
		s.record("", decisionOutcome(err))
		return nil, err
	}
	s.record(outcome.Request.Kind, "accepted")
	s.invalidateCatalog(ctx)

	s.logger.Info("request accepted",
		zap.String("request_id", outcome.Request.ID),
		zap.String("kind", string(outcome.Request.Kind)),
		zap.String("class_id", outcome.Request.ClassID),
		zap.String("student_id", outcome.Request.StudentID),
		zap.String("admin_id", adminID),
	)
	request := outcome.Request
	return &request, nil
}

// DeclineRequest removes a pending request with no other side effect.
func (s *RegistrarService) DeclineRequest(ctx context.Context, requestID, adminID string) (*models.EnrollmentRequest, error) {
	if err := s.requireRole(ctx, adminID, models.RoleAdmin); err != nil {
		return nil, err
	}

	request, err := s.store.Decline(ctx, requestID)
	if err != nil {
		s.record("", decisionOutcome(err))
		return nil, err
	}
	s.record(request.Kind, "declined")

	s.logger.Info("request declined",
		zap.String("request_id", request.ID),
		zap.String("kind", string(request.Kind)),
		zap.String("admin_id", adminID),
	)
	return request, nil
}

// MissingPeriods returns the periods the student is free in: the full
// schedule minus the periods of their confirmed enrollments.
func (s *RegistrarService) MissingPeriods(ctx context.Context, studentID string) ([]int, error) {
	if err := s.requireRole(ctx, studentID, models.RoleStudent); err != nil {
		return nil, err
	}

	enrolled, err := s.schedule.StudentPeriods(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read enrolled periods")
	}

	taken := make(map[int]bool, len(enrolled))
	for _, period := range enrolled {
		taken[period] = true
	}

	missing := make([]int, 0, s.maxPeriods)
	for period := 1; period <= s.maxPeriods; period++ {
		if !taken[period] {
			missing = append(missing, period)
		}
	}
	return missing, nil
}

// ListAvailableClasses returns offerings with open seats in the student's
// free periods. Reads go through the advisory catalog cache when enabled.
func (s *RegistrarService) ListAvailableClasses(ctx context.Context, studentID string) ([]models.ClassDetail, error) {
	if err := s.requireRole(ctx, studentID, models.RoleStudent); err != nil {
		return nil, err
	}

	key := repository.OpenClassesKey(studentID)
	if s.cache != nil {
		var cached []models.ClassDetail
		switch err := s.cache.Get(ctx, key, &cached); {
		case err == nil:
			s.recordCache("get", "hit")
			return cached, nil
		case errors.Is(err, appErrors.ErrCacheMiss):
			s.recordCache("get", "miss")
		default:
			s.recordCache("get", "error")
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	classes, err := s.catalog.ListOpenForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open classes")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, classes, s.cacheTTL); err != nil {
			s.recordCache("set", "error")
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		} else {
			s.recordCache("set", "ok")
		}
	}
	return classes, nil
}

func decisionOutcome(err error) string {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrNoCapacity.Code:
		return "no_capacity"
	case appErrors.ErrNotFound.Code:
		return "not_found"
	case appErrors.ErrContention.Code:
		return "contention"
	case appErrors.ErrAlreadyEnrolled.Code, appErrors.ErrNotEnrolled.Code, appErrors.ErrPeriodConflict.Code:
		return "conflict"
	default:
		return "error"
	}
}
