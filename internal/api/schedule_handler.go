package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/fitness-sync/internal/domain"
)

type ScheduleHandler struct{}

func NewScheduleHandler() *ScheduleHandler { return &ScheduleHandler{} }

// --- DTOs ---

type ScheduleWorkoutRequest struct {
	WorkoutID             string            `json:"workoutId" binding:"required"`
	StartAt               time.Time         `json:"startAt" binding:"required"`
	Recurrence            domain.Recurrence `json:"recurrence" binding:"omitempty,oneof=none daily weekly custom"`
	CustomDays            []string          `json:"customDays"`
	ReminderOffsetMinutes int               `json:"reminderOffsetMinutes" binding:"min=0"`
}

// SlotRequest names a date (YYYY-MM-DD) and a wall-clock time (HH:MM).
type SlotRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

// ScheduleWorkout godoc
// @Summary Schedule a workout, optionally recurring
// @Description Expands the recurrence into occurrences and records them locally.
// @Description Overlaps with existing workouts are reported but do not block.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param schedule body ScheduleWorkoutRequest true "Schedule intent"
// @Success 202 {object} service.ScheduleResult
// @Failure 400 {object} gin.H "Invalid input"
// @Router /schedules [post]
func (h *ScheduleHandler) ScheduleWorkout(c *gin.Context) {
	var req ScheduleWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}

	res, err := s.Schedules.Schedule(c.Request.Context(), domain.ScheduleIntent{
		SubjectID:             req.WorkoutID,
		AnchorDateTime:        req.StartAt,
		Recurrence:            req.Recurrence,
		CustomDays:            req.CustomDays,
		ReminderOffsetMinutes: req.ReminderOffsetMinutes,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// GetSchedules godoc
// @Summary Upcoming scheduled workouts
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.ScheduleState
// @Router /schedules [get]
func (h *ScheduleHandler) GetSchedules(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	st, ok := s.Schedules.Upcoming()
	if !ok {
		// Nothing cached yet; try the remote store once.
		var err error
		if st, err = s.Schedules.Refresh(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, domain.ScheduleState{Occurrences: []domain.ScheduledOccurrence{}})
			return
		}
	}
	c.JSON(http.StatusOK, st)
}

// CheckConflicts godoc
// @Summary Check a slot for overlapping workouts
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slot body SlotRequest true "Date and time"
// @Success 200 {object} service.ConflictCheck
// @Router /schedules/conflicts [post]
func (h *ScheduleHandler) CheckConflicts(c *gin.Context) {
	var req SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	res, err := s.Schedules.CheckConflict(c.Request.Context(), req.Date, req.Time)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reschedule godoc
// @Summary Move one occurrence
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param occurrenceId path string true "Occurrence ID"
// @Param slot body SlotRequest true "New date and time"
// @Success 202 {object} service.RescheduleResult
// @Failure 404 {object} gin.H "Occurrence not found"
// @Failure 409 {object} gin.H "Occurrence already completed or cancelled"
// @Router /schedules/{occurrenceId} [patch]
func (h *ScheduleHandler) Reschedule(c *gin.Context) {
	var req SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	res, err := s.Schedules.Reschedule(c.Request.Context(), c.Param("id"), req.Date, req.Time)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// CheckIn godoc
// @Summary Mark an occurrence as done
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param occurrenceId path string true "Occurrence ID"
// @Success 202 {object} domain.PendingAction
// @Router /schedules/{occurrenceId}/check-in [post]
func (h *ScheduleHandler) CheckIn(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	action, err := s.Schedules.CheckIn(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, action)
}

// Cancel godoc
// @Summary Cancel an occurrence
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param occurrenceId path string true "Occurrence ID"
// @Success 202 {object} domain.PendingAction
// @Router /schedules/{occurrenceId} [delete]
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	action, err := s.Schedules.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, action)
}
