package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/service"
	"alcyxob/fitness-sync/internal/session"
)

type AuthHandler struct {
	authService service.AuthService
	sessions    *session.Manager
}

func NewAuthHandler(authService service.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type UserResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	WeeklyTarget int       `json:"weeklyTarget"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// authStatus maps auth service errors to a status and a client-safe message.
func authStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrAuthenticationFailed):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Could not complete the request"
	}
}

// Register godoc
// @Summary Create an account
// @Description The account's weekly workout target starts at the server default.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Name, email and password"
// @Success 201 {object} UserResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 409 {object} gin.H "Email already registered"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		status, msg := authStatus(err)
		if status == http.StatusInternalServerError {
			logging.Error().Err(err).Msg("registration failed")
		}
		abortWithError(c, status, msg)
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// Login godoc
// @Summary Sign in
// @Description Returns a bearer token. The first authenticated request opens the sync session.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Email and password"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} gin.H "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status, msg := authStatus(err)
		if status == http.StatusInternalServerError {
			logging.Error().Err(err).Msg("login failed")
		}
		abortWithError(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: MapUserToResponse(user)})
}

// Logout godoc
// @Summary End the sync session
// @Description Closes the caller's sync session and its event streams. Unsynced actions are kept for the next session.
// @Tags Auth
// @Security BearerAuth
// @Success 204 "Session closed"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	h.sessions.End(userID)
	c.Status(http.StatusNoContent)
}

// MapUserToResponse never copies the password hash.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		WeeklyTarget: user.Target(),
		CreatedAt:    user.CreatedAt,
	}
}
