package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type registrarServiceMock struct {
	submitResp  *models.EnrollmentRequest
	submitErr   error
	lastInput   service.SubmitRequestInput
	lastActor   string
	pendingResp []models.RequestDetail
	lastKind    models.RequestKind
	acceptResp  *models.EnrollmentRequest
	acceptErr   error
	declineResp *models.EnrollmentRequest
	declineErr  error
	classesResp []models.ClassDetail
	periodsResp []int
	maxPeriods  int
}

func (m *registrarServiceMock) SubmitRequest(ctx context.Context, input service.SubmitRequestInput, studentID string) (*models.EnrollmentRequest, error) {
	m.lastInput = input
	m.lastActor = studentID
	return m.submitResp, m.submitErr
}

func (m *registrarServiceMock) ListPendingRequests(ctx context.Context, kind models.RequestKind, adminID string) ([]models.RequestDetail, error) {
	m.lastKind = kind
	m.lastActor = adminID
	return m.pendingResp, nil
}

func (m *registrarServiceMock) AcceptRequest(ctx context.Context, requestID, adminID string) (*models.EnrollmentRequest, error) {
	m.lastActor = adminID
	return m.acceptResp, m.acceptErr
}

func (m *registrarServiceMock) DeclineRequest(ctx context.Context, requestID, adminID string) (*models.EnrollmentRequest, error) {
	m.lastActor = adminID
	return m.declineResp, m.declineErr
}

func (m *registrarServiceMock) ListAvailableClasses(ctx context.Context, studentID string) ([]models.ClassDetail, error) {
	m.lastActor = studentID
	return m.classesResp, nil
}

func (m *registrarServiceMock) MissingPeriods(ctx context.Context, studentID string) ([]int, error) {
	m.lastActor = studentID
	return m.periodsResp, nil
}

func (m *registrarServiceMock) MaxPeriods() int {
	if m.maxPeriods == 0 {
		return 6
	}
	return m.maxPeriods
}

func testContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != nil {
		reader = bytes.NewBuffer(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestRegistrationHandlerSubmit(t *testing.T) {
	mockSvc := &registrarServiceMock{
		submitResp: &models.EnrollmentRequest{ID: "req-1", Kind: models.RequestKindAdd, ClassID: "class-1", StudentID: "student-1"},
	}
	handler := NewRegistrationHandler(mockSvc)

	body, _ := json.Marshal(map[string]string{"kind": "ADD", "class_id": "class-1"})
	c, w := testContext(t, http.MethodPost, "/registrations", body, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastActor)
	assert.Equal(t, models.RequestKindAdd, mockSvc.lastInput.Kind)
}

func TestRegistrationHandlerSubmitInvalidBody(t *testing.T) {
	handler := NewRegistrationHandler(&registrarServiceMock{})

	c, w := testContext(t, http.MethodPost, "/registrations", []byte(`{"kind":`), &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerSubmitMissingClaims(t *testing.T) {
	handler := NewRegistrationHandler(&registrarServiceMock{})

	body, _ := json.Marshal(map[string]string{"kind": "ADD", "class_id": "class-1"})
	c, w := testContext(t, http.MethodPost, "/registrations", body, nil)

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationHandlerSubmitConflict(t *testing.T) {
	mockSvc := &registrarServiceMock{submitErr: appErrors.ErrDuplicateRequest}
	handler := NewRegistrationHandler(mockSvc)

	body, _ := json.Marshal(map[string]string{"kind": "ADD", "class_id": "class-1"})
	c, w := testContext(t, http.MethodPost, "/registrations", body, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "DUPLICATE_REQUEST", envelope.Error.Code)
}

func TestRegistrationHandlerListPending(t *testing.T) {
	mockSvc := &registrarServiceMock{
		pendingResp: []models.RequestDetail{{
			EnrollmentRequest: models.EnrollmentRequest{ID: "req-1", Kind: models.RequestKindAdd},
			StudentName:       "Dana Lee",
			ClassName:         "Algebra I",
			Period:            2,
		}},
	}
	handler := NewRegistrationHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/registrations?kind=ADD", nil, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.ListPending(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestKindAdd, mockSvc.lastKind)
}

func TestRegistrationHandlerAccept(t *testing.T) {
	mockSvc := &registrarServiceMock{
		acceptResp: &models.EnrollmentRequest{ID: "req-1", Kind: models.RequestKindAdd},
	}
	handler := NewRegistrationHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/registrations/req-1/accept", nil, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Accept(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", mockSvc.lastActor)
}

func TestRegistrationHandlerAcceptContention(t *testing.T) {
	mockSvc := &registrarServiceMock{acceptErr: appErrors.ErrContention}
	handler := NewRegistrationHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/registrations/req-1/accept", nil, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Accept(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "CONTENTION", envelope.Error.Code)
}

func TestRegistrationHandlerDeclineSettled(t *testing.T) {
	mockSvc := &registrarServiceMock{declineErr: appErrors.Clone(appErrors.ErrNotFound, "request not found")}
	handler := NewRegistrationHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/registrations/req-1/decline", nil, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Decline(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistrationHandlerMissingPeriods(t *testing.T) {
	mockSvc := &registrarServiceMock{periodsResp: []int{2, 4}, maxPeriods: 8}
	handler := NewRegistrationHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/students/me/periods", nil, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.MissingPeriods(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []int                  `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, []int{2, 4}, envelope.Data)
	assert.Equal(t, float64(8), envelope.Meta["max_periods"])
}

func TestRegistrationHandlerAvailableClasses(t *testing.T) {
	mockSvc := &registrarServiceMock{classesResp: []models.ClassDetail{{
		ClassOffering: models.ClassOffering{ID: "class-1", Name: "Algebra I", Period: 1, SeatsAvailable: 3},
	}}}
	handler := NewRegistrationHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/classes/available", nil, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.AvailableClasses(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastActor)
}
