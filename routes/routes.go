package routes

import (
	"net/http"
	"solar-workflow-api/controllers"
	"solar-workflow-api/middleware"
	"solar-workflow-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, h *controllers.Handler) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", h.Login)
			public.GET("/health", h.Health)

			// Signed downloads for locally stored files
			public.GET("/files/*key", h.DownloadFile)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(h.Users))
		{
			// User profile
			protected.GET("/profile", h.GetProfile)
			protected.PUT("/change-password", h.ChangePassword)

			// User management (admin only)
			users := protected.Group("/users", middleware.RequireRole(models.RoleAdmin))
			{
				users.GET("", h.ListUsers)
				users.POST("", h.CreateUser)
				users.GET("/:id", h.GetUser)
				users.PUT("/:id", h.UpdateUser)
				users.DELETE("/:id", h.DeleteUser)
			}

			if h.Monitor != nil {
				h.Monitor.Register(protected.Group("/monitor", middleware.RequireRole(models.RoleAdmin)))
			}

			protected.GET("/step-templates", h.GetStepTemplates)

			// Clients
			clients := protected.Group("/clients")
			{
				clients.GET("", h.ListClients)
				clients.POST("", h.CreateClient)
				clients.GET("/:id", h.GetClient)
				clients.PUT("/:id", h.UpdateClient)
				clients.DELETE("/:id", h.DeleteClient)

				clients.GET("/:id/steps", h.ListSteps)
				clients.GET("/:id/step-data/:step", h.GetStepData)
				clients.PUT("/:id/step-data/:step", h.SaveStepData)

				clients.GET("/:id/documents/:step", h.GetStepDocuments)
				clients.POST("/:id/documents/:step", h.UploadStepDocuments)

				clients.GET("/:id/gps-categories", h.GetGpsCategories)
				clients.GET("/:id/gps-images", h.ListGpsImages)
				clients.POST("/:id/gps-images", h.UploadGpsImage)

				clients.GET("/:id/payment-logs", h.ListPayments)
				clients.POST("/:id/payment-logs", h.CreatePayment)
				clients.GET("/:id/expenses", h.ListExpenses)
				clients.POST("/:id/expenses", h.CreateExpense)
				clients.GET("/:id/financial-overview", h.GetFinancialOverview)

				clients.GET("/:id/follow-ups", h.ListFollowUps)
				clients.POST("/:id/follow-ups", h.CreateFollowUp)
			}

			// Workflow steps
			protected.PUT("/client-steps/:id", h.UpdateStep)
			protected.POST("/client-steps/:id/sub-steps", h.CreateSubStep)
			protected.PUT("/client-sub-steps/:id", h.UpdateSubStep)
			protected.DELETE("/client-sub-steps/:id", h.DeleteSubStep)

			// Documents
			protected.DELETE("/documents/:id", h.DeleteDocument)
			protected.GET("/documents/:id/url", h.GetDocumentURL)
			protected.DELETE("/gps-images/:id", h.DeleteGpsImage)
			protected.GET("/gps-images/:id/url", h.GetGpsImageURL)

			// Finance
			protected.PUT("/payment-logs/:id", h.UpdatePayment)
			protected.DELETE("/payment-logs/:id", h.DeletePayment)
			protected.PUT("/expenses/:id", h.UpdateExpense)
			protected.DELETE("/expenses/:id", h.DeleteExpense)
			protected.POST("/expenses/:id/documents", h.AttachExpenseDocument)
			protected.GET("/financial-overviews", h.ListFinancialOverviews)
			protected.GET("/financial-overviews/export", h.ExportFinancialOverviews)

			// Follow-ups
			protected.GET("/follow-ups/due", h.ListDueFollowUps)
			protected.PUT("/follow-ups/:id", h.UpdateFollowUp)
			protected.DELETE("/follow-ups/:id", h.DeleteFollowUp)
			protected.POST("/follow-ups/send-reminders", middleware.RequireRole(models.RoleAdmin), h.SendReminders)

			// Phone numbers
			phones := protected.Group("/phone-numbers")
			{
				phones.GET("", h.ListPhoneNumbers)
				phones.POST("/import", middleware.RequireRole(models.RoleAdmin), h.ImportPhoneNumbers)
				phones.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), h.DeletePhoneNumber)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
}
