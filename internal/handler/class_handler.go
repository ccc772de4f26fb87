package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type classService interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	Get(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, input service.CreateClassInput) (*models.ClassOffering, error)
	Delete(ctx context.Context, id string) error
}

type rosterService interface {
	Export(ctx context.Context, classID string, format service.RosterFormat) (*service.RosterExport, error)
}

// ClassHandler exposes the class catalog endpoints.
type ClassHandler struct {
	classes classService
	rosters rosterService
}

// NewClassHandler constructs the handler.
func NewClassHandler(classes classService, rosters rosterService) *ClassHandler {
	return &ClassHandler{classes: classes, rosters: rosters}
}

// List godoc
// @Summary      List class offerings
// @Tags         classes
// @Produce      json
// @Security     BearerAuth
// @Param        period      query     int     false  "Filter by period"
// @Param        teacher_id  query     string  false  "Filter by teacher"
// @Param        search      query     string  false  "Name search"
// @Param        page        query     int     false  "Page number"
// @Param        page_size   query     int     false  "Page size"
// @Success      200  {object}  response.Envelope{data=[]models.ClassDetail}
// @Router       /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	filter := models.ClassFilter{
		TeacherID: c.Query("teacher_id"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Period, _ = strconv.Atoi(c.Query("period"))
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	classes, total, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary      Get a class offering
// @Tags         classes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Class ID"
// @Success      200  {object}  response.Envelope{data=models.ClassDetail}
// @Failure      404  {object}  response.Envelope
// @Router       /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	detail, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary      Create a class offering
// @Description  Admin only. Every seat starts open; the teacher must be free in the period.
// @Tags         classes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateClassInput  true  "Class"
// @Success      201      {object}  response.Envelope{data=models.ClassOffering}
// @Failure      409      {object}  response.Envelope
// @Router       /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var input service.CreateClassInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	class, err := h.classes.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Delete godoc
// @Summary      Delete a class offering
// @Description  Admin only. Fails with CLASS_IN_USE while enrollments or pending requests remain.
// @Tags         classes
// @Security     BearerAuth
// @Param        id  path  string  true  "Class ID"
// @Success      204
// @Failure      409  {object}  response.Envelope
// @Router       /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRoster godoc
// @Summary      Export a class roster
// @Description  Streams the enrolled students as CSV or PDF.
// @Tags         classes
// @Produce      text/csv
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id      path   string  true   "Class ID"
// @Param        format  query  string  false  "csv or pdf"  default(csv)
// @Success      200
// @Failure      404  {object}  response.Envelope
// @Router       /classes/{id}/roster [get]
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	format := service.RosterFormat(c.DefaultQuery("format", "csv"))
	result, err := h.rosters.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
