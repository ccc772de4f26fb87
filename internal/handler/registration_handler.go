package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type registrarService interface {
	SubmitRequest(ctx context.Context, input service.SubmitRequestInput, studentID string) (*models.EnrollmentRequest, error)
	ListPendingRequests(ctx context.Context, kind models.RequestKind, adminID string) ([]models.RequestDetail, error)
	AcceptRequest(ctx context.Context, requestID, adminID string) (*models.EnrollmentRequest, error)
	DeclineRequest(ctx context.Context, requestID, adminID string) (*models.EnrollmentRequest, error)
	ListAvailableClasses(ctx context.Context, studentID string) ([]models.ClassDetail, error)
	MissingPeriods(ctx context.Context, studentID string) ([]int, error)
	MaxPeriods() int
}

// RegistrationHandler exposes the enrollment workflow endpoints.
type RegistrationHandler struct {
	registrar registrarService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(registrar registrarService) *RegistrationHandler {
	return &RegistrationHandler{registrar: registrar}
}

// Submit godoc
// @Summary      Submit an add or drop request
// @Description  Student only. Stores a pending intent for admin adjudication.
// @Tags         registrations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitRequestInput  true  "Request"
// @Success      201      {object}  response.Envelope{data=models.EnrollmentRequest}
// @Failure      409      {object}  response.Envelope
// @Router       /registrations [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input service.SubmitRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	request, err := h.registrar.SubmitRequest(c.Request.Context(), input, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ListPending godoc
// @Summary      List pending requests
// @Description  Admin only. Pending requests of one kind in submission order.
// @Tags         registrations
// @Produce      json
// @Security     BearerAuth
// @Param        kind  query     string  true  "ADD or DROP"
// @Success      200   {object}  response.Envelope{data=[]models.RequestDetail}
// @Router       /registrations [get]
func (h *RegistrationHandler) ListPending(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	kind := models.RequestKind(c.Query("kind"))
	requests, err := h.registrar.ListPendingRequests(c.Request.Context(), kind, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Accept godoc
// @Summary      Accept a pending request
// @Description  Admin only. Applies the enrollment change atomically. A CONTENTION response is safe to retry.
// @Tags         registrations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Envelope{data=models.EnrollmentRequest}
// @Failure      404  {object}  response.Envelope
// @Failure      409  {object}  response.Envelope
// @Router       /registrations/{id}/accept [post]
func (h *RegistrationHandler) Accept(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.registrar.AcceptRequest(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Decline godoc
// @Summary      Decline a pending request
// @Description  Admin only. Removes the request with no enrollment change.
// @Tags         registrations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Envelope{data=models.EnrollmentRequest}
// @Failure      404  {object}  response.Envelope
// @Router       /registrations/{id}/decline [post]
func (h *RegistrationHandler) Decline(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.registrar.DeclineRequest(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// AvailableClasses godoc
// @Summary      List classes open to the student
// @Description  Student only. Offerings with free seats in the student's free periods.
// @Tags         registrations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=[]models.ClassDetail}
// @Router       /classes/available [get]
func (h *RegistrationHandler) AvailableClasses(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	classes, err := h.registrar.ListAvailableClasses(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// MissingPeriods godoc
// @Summary      List the student's free periods
// @Description  Student only. Schedule slots without a confirmed enrollment.
// @Tags         registrations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=[]int}
// @Router       /students/me/periods [get]
func (h *RegistrationHandler) MissingPeriods(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	periods, err := h.registrar.MissingPeriods(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil, map[string]interface{}{
		"max_periods": h.registrar.MaxPeriods(),
	})
}
