package main

import (
	"net/http"

	"recruit-platform/internal/auth"
	"recruit-platform/internal/httpapi"
	"recruit-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, h httpapi.Handlers, m *auth.Manager) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1", auth.RequireAccessToken(m), rbac.RequireWorkspace())

	write := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleRecruiter, rbac.RoleCoordinator)
	read := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleRecruiter, rbac.RoleCoordinator, rbac.RoleComplianceAuditor)

	p := v1.Group("/pipeline")
	{
		p.POST("", write, h.CreateEntry)
		p.GET("/:entry_id", read, h.GetEntry)
		p.GET("/:entry_id/next-statuses", read, h.ListNextStatuses)
		p.POST("/:entry_id/transition", write, h.RequestTransition)
		p.POST("/:entry_id/match", write, h.AttachMatch)
		p.POST("/:entry_id/cancel", write, h.CancelEntry)
	}

	cg := v1.Group("/calls")
	{
		cg.POST("", write, h.ScheduleCall)
		cg.GET("/due", read, h.ListDueCalls)
		cg.GET("/:call_id/logs", read, h.ListCallLogs)
		cg.POST("/:call_id/outcome", write, h.RecordCallOutcome)
	}
}
