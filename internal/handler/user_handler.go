package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type userService interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*models.UserInfo, error)
}

// UserHandler exposes account provisioning endpoints.
type UserHandler struct {
	users userService
}

// NewUserHandler constructs the handler.
func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

// Create godoc
// @Summary      Create a user account
// @Description  Admin only. Provisions an active account with the given role.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserInput  true  "Account"
// @Success      201      {object}  response.Envelope{data=models.UserInfo}
// @Failure      409      {object}  response.Envelope
// @Router       /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var input service.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	info, err := h.users.CreateUser(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, info)
}
