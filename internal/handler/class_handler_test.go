package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type classServiceMock struct {
	listResp   []models.ClassDetail
	listTotal  int
	lastFilter models.ClassFilter
	getResp    *models.ClassDetail
	getErr     error
	createResp *models.ClassOffering
	createErr  error
	deleteErr  error
	deletedID  string
}

func (m *classServiceMock) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	m.lastFilter = filter
	return m.listResp, m.listTotal, nil
}

func (m *classServiceMock) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	return m.getResp, m.getErr
}

func (m *classServiceMock) Create(ctx context.Context, input service.CreateClassInput) (*models.ClassOffering, error) {
	return m.createResp, m.createErr
}

func (m *classServiceMock) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return m.deleteErr
}

type rosterServiceMock struct {
	resp *service.RosterExport
	err  error
}

func (m *rosterServiceMock) Export(ctx context.Context, classID string, format service.RosterFormat) (*service.RosterExport, error) {
	return m.resp, m.err
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestClassHandlerList(t *testing.T) {
	mockSvc := &classServiceMock{
		listResp:  []models.ClassDetail{{ClassOffering: models.ClassOffering{ID: "class-1"}}},
		listTotal: 1,
	}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	c, w := testContext(t, http.MethodGet, "/classes?period=2&page=3", nil, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mockSvc.lastFilter.Period)
	assert.Equal(t, 3, mockSvc.lastFilter.Page)

	var envelope struct {
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestClassHandlerCreate(t *testing.T) {
	mockSvc := &classServiceMock{
		createResp: &models.ClassOffering{ID: "class-new", Name: "Algebra I", Period: 2, TotalCapacity: 25, SeatsAvailable: 25},
	}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	body, _ := json.Marshal(map[string]interface{}{
		"name":           "Algebra I",
		"teacher_id":     "teacher-1",
		"period":         2,
		"total_capacity": 25,
	})
	c, w := testContext(t, http.MethodPost, "/classes", body, adminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestClassHandlerCreateConflict(t *testing.T) {
	mockSvc := &classServiceMock{createErr: appErrors.ErrTeacherBooked}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	body, _ := json.Marshal(map[string]interface{}{
		"name":       "Algebra I",
		"teacher_id": "teacher-1",
		"period":     2,
	})
	c, w := testContext(t, http.MethodPost, "/classes", body, adminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestClassHandlerDeleteInUse(t *testing.T) {
	mockSvc := &classServiceMock{deleteErr: appErrors.ErrClassInUse}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	c, w := testContext(t, http.MethodDelete, "/classes/class-1", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Delete(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestClassHandlerDelete(t *testing.T) {
	mockSvc := &classServiceMock{}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	c, w := testContext(t, http.MethodDelete, "/classes/class-1", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "class-1", mockSvc.deletedID)
}

func TestClassHandlerExportRoster(t *testing.T) {
	roster := &rosterServiceMock{resp: &service.RosterExport{
		Content:     []byte("Student,Username,Enrolled At\n"),
		ContentType: "text/csv",
		Filename:    "roster_class-1_20260901.csv",
	}}
	handler := NewClassHandler(&classServiceMock{}, roster)

	c, w := testContext(t, http.MethodGet, "/classes/class-1/roster?format=csv", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.ExportRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster_class-1")
}
