package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Identity(ctx context.Context, userID string) (*models.UserInfo, error)
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth authService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary      Authenticate a user
// @Description  Verifies credentials and issues a bearer token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      models.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Envelope{data=models.LoginResponse}
// @Failure      401      {object}  response.Envelope
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Me godoc
// @Summary      Current account
// @Description  Returns the profile behind the presented token.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=models.UserInfo}
// @Failure      401  {object}  response.Envelope
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.auth.Identity(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}
