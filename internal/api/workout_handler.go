package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/repository"
	"alcyxob/fitness-sync/internal/service"
	"alcyxob/fitness-sync/internal/syncengine"
)

type WorkoutHandler struct {
	workoutRepo repository.WorkoutRepository
}

func NewWorkoutHandler(workoutRepo repository.WorkoutRepository) *WorkoutHandler {
	return &WorkoutHandler{workoutRepo: workoutRepo}
}

// --- DTOs ---

type CreateWorkoutRequest struct {
	Name      string `json:"name" binding:"required"`
	DayOfWeek *int   `json:"dayOfWeek,omitempty" binding:"omitempty,min=1,max=7"`
	Notes     string `json:"notes"`
}

type CompleteWorkoutRequest struct {
	DurationMinutes int    `json:"durationMinutes" binding:"min=0"`
	Notes           string `json:"notes"`
}

// CompleteWorkoutResponse returns the recorded action and the aggregate as the
// client should display it right away.
type CompleteWorkoutResponse struct {
	Action    domain.PendingAction   `json:"action"`
	Dashboard *domain.AggregateState `json:"dashboard,omitempty"`
}

// CreateWorkout godoc
// @Summary Create a workout
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body CreateWorkoutRequest true "Workout details"
// @Success 201 {object} domain.Workout
// @Failure 400 {object} gin.H "Invalid input"
// @Router /workouts [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	workout := &domain.Workout{OwnerID: userID, Name: req.Name, DayOfWeek: req.DayOfWeek, Notes: req.Notes}
	if _, err := h.workoutRepo.Create(c.Request.Context(), workout); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		logging.Error().Err(err).Str("owner_id", userID).Msg("create workout failed")
		abortWithError(c, http.StatusInternalServerError, "Failed to create workout")
		return
	}
	c.JSON(http.StatusCreated, workout)
}

// GetWorkouts godoc
// @Summary List the caller's workouts
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Workout
// @Router /workouts [get]
func (h *WorkoutHandler) GetWorkouts(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	workouts, err := h.workoutRepo.GetByOwnerID(c.Request.Context(), userID)
	if err != nil {
		logging.Error().Err(err).Str("owner_id", userID).Msg("list workouts failed")
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve workouts")
		return
	}
	c.JSON(http.StatusOK, workouts)
}

// DeleteWorkout godoc
// @Summary Delete a workout
// @Tags Workouts
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Success 204
// @Failure 404 {object} gin.H "Workout not found"
// @Router /workouts/{workoutId} [delete]
func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	if err := h.workoutRepo.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "Workout not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to delete workout")
		return
	}
	c.Status(http.StatusNoContent)
}

// CompleteWorkout godoc
// @Summary Mark a workout as completed
// @Description Records the completion locally and syncs it in the background. The
// @Description returned dashboard already counts the completion.
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Param completion body CompleteWorkoutRequest false "Completion details"
// @Success 202 {object} CompleteWorkoutResponse
// @Failure 404 {object} gin.H "Workout not found"
// @Router /workouts/{workoutId}/complete [post]
func (h *WorkoutHandler) CompleteWorkout(c *gin.Context) {
	var req CompleteWorkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	workoutID := c.Param("id")

	// A workout owned by someone else is rejected. When the remote store cannot be
	// reached the completion is still recorded.
	w, err := h.workoutRepo.GetByID(c.Request.Context(), workoutID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Workout not found")
		return
	case err == nil && w.OwnerID != s.OwnerID:
		abortWithError(c, http.StatusNotFound, "Workout not found")
		return
	case err != nil:
		logging.Warn().Err(err).Str("workout_id", workoutID).Msg("workout lookup failed, recording completion anyway")
	}

	action, err := s.Dashboard.CompleteWorkout(c.Request.Context(), workoutID, domain.WorkoutCompletion{
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp := CompleteWorkoutResponse{Action: action}
	if stats, ok := s.Dashboard.Stats(); ok {
		resp.Dashboard = &stats
	}
	c.JSON(http.StatusAccepted, resp)
}

// handleServiceError maps the sync services' sentinel errors to status codes.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnsupportedContentType),
		errors.Is(err, service.ErrObjectKeyMismatch):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrOccurrenceNotFound),
		errors.Is(err, service.ErrPhotoNotFound),
		errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOccurrenceClosed):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, syncengine.ErrClosed):
		abortWithError(c, http.StatusServiceUnavailable, "Sync session closed, retry the request")
	default:
		logging.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
