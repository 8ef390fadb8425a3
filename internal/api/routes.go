package api

import (
	"alcyxob/fitness-sync/internal/metrics"
	"alcyxob/fitness-sync/internal/repository"
	"alcyxob/fitness-sync/internal/service"
	"alcyxob/fitness-sync/internal/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies groups what the HTTP layer needs from main.
type Dependencies struct {
	JWTSecret   string
	AuthService service.AuthService
	WorkoutRepo repository.WorkoutRepository
	Sessions    *session.Manager
	Metrics     *metrics.Manager
	Gatherer    prometheus.Gatherer // nil disables /metrics
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions)
	workoutHandler := NewWorkoutHandler(deps.WorkoutRepo)
	syncHandler := NewSyncHandler()
	scheduleHandler := NewScheduleHandler()
	photoHandler := NewPhotoHandler()

	authMiddleware := AuthMiddleware(deps.JWTSecret)
	sessionMiddleware := SessionMiddleware(deps.Sessions)

	router.Use(RequestMetrics(deps.Metrics))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			// Logout only needs the token; it must not open a session it is about to end.
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware, sessionMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr})
		})

		// --- Workout Routes ---
		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.GetWorkouts)
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.DELETE("/:id", workoutHandler.DeleteWorkout)
			workoutGroup.POST("/:id/complete", workoutHandler.CompleteWorkout)
		}

		// --- Dashboard Routes ---
		protected.GET("/dashboard", syncHandler.GetDashboard)
		protected.POST("/dashboard/refresh", syncHandler.RefreshDashboard)

		// --- Schedule Routes ---
		scheduleGroup := protected.Group("/schedules")
		{
			scheduleGroup.GET("", scheduleHandler.GetSchedules)
			scheduleGroup.POST("", scheduleHandler.ScheduleWorkout)
			scheduleGroup.POST("/conflicts", scheduleHandler.CheckConflicts)
			scheduleGroup.PATCH("/:id", scheduleHandler.Reschedule)
			scheduleGroup.POST("/:id/check-in", scheduleHandler.CheckIn)
			scheduleGroup.DELETE("/:id", scheduleHandler.Cancel)
		}

		// --- Progress Photo Routes ---
		photoGroup := protected.Group("/photos")
		{
			photoGroup.POST("/upload-url", photoHandler.RequestUploadURL)
			photoGroup.GET("", photoHandler.GetPhotos)
			photoGroup.POST("", photoHandler.ConfirmUpload)
			photoGroup.GET("/:id/url", photoHandler.GetDownloadURL)
			photoGroup.DELETE("/:id", photoHandler.DeletePhoto)
		}

		// --- Sync Routes ---
		protected.GET("/sync/status", syncHandler.GetStatus)
		protected.POST("/sync/catch-up", syncHandler.CatchUp)
		protected.GET("/events", syncHandler.Events)
	}
}
