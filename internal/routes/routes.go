package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pulmocare-server/internal/config"
	"pulmocare-server/internal/handlers"
	"pulmocare-server/internal/middleware"
	"pulmocare-server/internal/models"
	"pulmocare-server/internal/scheduling"
	"pulmocare-server/internal/services"
	"pulmocare-server/internal/ws"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log zerolog.Logger) {
	// Wire the consultation engine
	consultationStore := services.NewGormConsultationStore(db)
	userStore := services.NewGormUserStore(db)
	consultationSvc := services.NewConsultationService(
		consultationStore, userStore, cfg.Scheduling, scheduling.SystemClock{}, log)

	hub := ws.NewHub(log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db, consultationSvc)
	consultationHandler := handlers.NewConsultationHandler(consultationSvc, hub)
	chatHandler := handlers.NewChatHandler(db, hub)
	analysisHandler := handlers.NewAnalysisHandler(db)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		// Auth related (e.g., profile, logout if it needs auth)
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// User management routes (typically admin-only)
		userRoutes := private.Group("/users")
		{
			// Doctor discovery - accessible by all authenticated users
			userRoutes.GET("/doctors", userHandler.GetDoctors)

			// Patient listing - accessible by doctors and admins
			userRoutes.GET("/doctor-patients", userHandler.GetDoctorPatients)

			// Admin-only routes
			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin)) // Only Admins
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Consultation routes
		consultationRoutes := private.Group("/consultations")
		{
			// Slot availability for one doctor on one day
			consultationRoutes.GET("/availability/:doctorId", consultationHandler.GetAvailability)

			// Booking; patients book for themselves, doctors/admins on behalf
			consultationRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleDoctor, models.RoleAdmin), consultationHandler.CreateConsultation)

			// All authenticated users see their own consultations
			consultationRoutes.GET("", consultationHandler.GetConsultationsForUser)

			// Specific consultation access (parties or admin; checked in service)
			consultationRoutes.GET("/:id", consultationHandler.GetConsultationByID)

			// Explicit status transitions; patient may only cancel
			consultationRoutes.PUT("/:id/status", consultationHandler.UpdateConsultationStatus)

			// Video session lifecycle
			consultationRoutes.POST("/:id/start-video", consultationHandler.StartVideoSession)
			consultationRoutes.POST("/:id/end-video", consultationHandler.EndVideoSession)

			// Clinical notes; doctor on record only (checked in service)
			consultationRoutes.PUT("/:id/notes", middleware.RoleAuthMiddleware(models.RoleDoctor), consultationHandler.UpdateConsultationNotes)
		}

		// Chat routes
		chatRoutes := private.Group("/chat")
		{
			chatRoutes.POST("/threads", chatHandler.CreateThread)
			chatRoutes.GET("/threads", chatHandler.GetThreads)
			chatRoutes.GET("/threads/:id/messages", chatHandler.GetThreadMessages)
			chatRoutes.POST("/threads/:id/messages", chatHandler.SendMessage)
			chatRoutes.PATCH("/threads/:id/read", chatHandler.MarkThreadRead)
		}

		// X-ray analysis routes
		analysisRoutes := private.Group("/analyses")
		{
			// Doctors create analysis records
			analysisRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), analysisHandler.CreateAnalysis)

			analysisRoutes.GET("", analysisHandler.GetAnalyses)
			analysisRoutes.GET("/:id", analysisHandler.GetAnalysisByID)
			analysisRoutes.GET("/:id/image", analysisHandler.GetAnalysisImage)
		}

		// Realtime notifications
		private.GET("/ws", hub.Handler)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
