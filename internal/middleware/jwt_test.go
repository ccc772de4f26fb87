package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func newJWTRouter(stub *validatorStub, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(stub)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := ClaimsFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestJWTMissingHeader(t *testing.T) {
	r := newJWTRouter(&validatorStub{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMalformedHeader(t *testing.T) {
	r := newJWTRouter(&validatorStub{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTInvalidToken(t *testing.T) {
	r := newJWTRouter(&validatorStub{err: appErrors.ErrUnauthorized})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTStoresClaims(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}}
	r := newJWTRouter(stub)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-1")
}

func TestRequireRolesForbidden(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}}
	r := newJWTRouter(stub, RequireRoles(models.RoleAdmin))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAllowed(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}}
	r := newJWTRouter(stub, RequireRoles(models.RoleAdmin, models.RoleTeacher))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
