package http

import (
	"github.com/bazasystems/madaris/internal/auth"
	"github.com/bazasystems/madaris/internal/mail"
	"github.com/bazasystems/madaris/internal/syncqueue"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register wires every route onto the engine. Public auth endpoints come
// first; everything else sits behind the session middleware, with
// capability or role gates on top.
func Register(engine *gin.Engine, conn *gorm.DB, authSvc *auth.Service, syncSvc *syncqueue.Service, mailer mail.Sender) {
	authHandler := NewAuthHandler(authSvc)
	userHandler := NewUserHandler(conn, authSvc, mailer)
	syncHandler := NewSyncHandler(syncSvc, conn)
	settingsHandler := NewSettingsHandler(conn)
	studentHandler := NewStudentHandler(conn)

	public := engine.Group("/auth")
	{
		public.POST("/login", authHandler.Login)
		public.POST("/2fa/login", authHandler.LoginTOTP)
		public.POST("/verify", authHandler.Verify)
		public.POST("/logout", authHandler.Logout)
		public.POST("/forgot_password", authHandler.ForgotPassword)
	}

	session := engine.Group("/", sessionMiddleware(conn))
	{
		session.POST("auth/password", authHandler.ChangePassword)
		session.POST("auth/2fa/setup", requireDirector(), authHandler.SetupTOTP)
		session.POST("auth/2fa/confirm", requireDirector(), authHandler.ConfirmTOTP)
		session.POST("auth/2fa/disable", requireDirector(), authHandler.DisableTOTP)

		session.POST("api/sync", syncHandler.Submit)

		students := session.Group("api/students", requirePermission(auth.PermManageStudents))
		{
			students.GET("", studentHandler.List)
			students.POST("", studentHandler.Create)
			students.GET("/:id", studentHandler.Get)
			students.PUT("/:id", studentHandler.Update)
			students.DELETE("/:id", studentHandler.Delete)
			students.POST("/bulk_delete", studentHandler.BulkDelete)
		}

		admin := session.Group("api", requirePermission(auth.PermManageUsers))
		{
			admin.GET("/users", userHandler.List)
			admin.POST("/users", userHandler.Create)
			admin.PUT("/users/:id/credentials", userHandler.UpdateCreds)
			admin.DELETE("/users/:id", userHandler.Delete)
			admin.POST("/users/:id/unlock", userHandler.Unlock)
			admin.POST("/users/:id/lock", userHandler.Lock)
			admin.POST("/users/:id/reset_session", userHandler.ResetSession)
			admin.POST("/users/:id/activate_device", userHandler.ActivateDevice)
			admin.POST("/users/:id/reset_device", userHandler.ResetDevice)
			admin.PUT("/users/:id/permissions", userHandler.SetPermissions)

			admin.GET("/pending", syncHandler.List)
			admin.GET("/pending/count", syncHandler.Count)
			admin.POST("/pending/:id/approve", syncHandler.Approve)
			admin.POST("/pending/approve_all", syncHandler.ApproveAll)
			admin.POST("/pending/:id/reject", syncHandler.Reject)
			admin.POST("/pending/reject_all", syncHandler.RejectAll)
		}

		director := session.Group("api/settings", requireDirector())
		{
			director.GET("", settingsHandler.Get)
			director.PUT("", settingsHandler.Update)
		}
	}
}
