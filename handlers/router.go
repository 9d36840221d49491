package handlers

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine with every route mounted at the root and again
// under /api, plus the frontend fallback for everything else.
func NewRouter(h *APIHandler, staticDir string) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), h.RequestLogger())

	h.registerRoutes(router)
	h.registerRoutes(router.Group("/api"))

	router.NoRoute(SPAFallback(staticDir))
	return router
}

func (h *APIHandler) registerRoutes(r gin.IRouter) {
	r.GET("/ping", h.PingHandler)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.GET("/me", h.RequireUser, h.Me)
		authGroup.PUT("/profile", h.RequireUser, h.UpdateProfile)
		authGroup.PUT("/change-password", h.RequireUser, h.ChangePassword)
	}

	users := r.Group("/users", h.RequireUser, h.RequireAdmin)
	{
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
		users.PUT("/:id/reset-password", h.ResetPassword)
	}

	classes := r.Group("/classes", h.RequireUser)
	{
		classes.GET("", h.GetAllClasses)
		classes.POST("", h.AddClass)
		classes.PUT("/:id", h.UpdateClass)
		classes.DELETE("/:id", h.DeleteClass)
		classes.GET("/:id/groups", h.GetGroupsByClass)
	}

	groups := r.Group("/groups", h.RequireUser)
	{
		groups.POST("", h.AddGroup)
		groups.PUT("/:id", h.UpdateGroup)
		groups.DELETE("/:id", h.DeleteGroup)
		groups.GET("/:id/students", h.GetStudentsByGroup)
		groups.POST("/:id/students/import", h.ImportStudents)
	}

	students := r.Group("/students", h.RequireUser)
	{
		students.POST("", h.AddStudent)
		students.PUT("/:id", h.UpdateStudent)
		students.DELETE("/:id", h.DeleteStudent)
	}

	rollCall := r.Group("/roll-call", h.RequireUser)
	{
		rollCall.POST("", h.RecordRollCall)
		rollCall.GET("/history", h.GetRollCallHistory)
		rollCall.GET("/history/export", h.ExportRollCallHistory)
	}
}
