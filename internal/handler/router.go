package handler

import (
	"github.com/gin-gonic/gin"

	internalmiddleware "github.com/noah-isme/studycenter-api/internal/middleware"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Metrics     *MetricsHandler
	Offerings   *OfferingHandler
	Grading     *GradingHandler
	Enrollments *EnrollmentHandler
	Attendance  *AttendanceHandler
	Maintenance *MaintenanceHandler
}

// RegisterRoutes mounts health and metrics at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(internalmiddleware.WithResponseMeta())

	offerings := api.Group("/offerings")
	offerings.GET("", h.Offerings.List)
	offerings.POST("", h.Offerings.Create)
	offerings.POST("/check", h.Offerings.Check)
	offerings.GET("/:id", h.Offerings.Get)
	offerings.PUT("/:id/schedule", h.Offerings.Reschedule)
	offerings.DELETE("/:id", h.Offerings.Delete)
	offerings.POST("/:id/finalize", h.Offerings.Finalize)
	offerings.POST("/:id/recompute", h.Offerings.Recompute)
	offerings.GET("/:id/sessions", h.Offerings.Sessions)
	offerings.GET("/:id/graded-items", h.Grading.ListItems)
	offerings.POST("/:id/graded-items", h.Grading.CreateItem)
	offerings.GET("/:id/enrollments", h.Enrollments.List)
	offerings.POST("/:id/enrollments", h.Enrollments.Create)
	offerings.GET("/:id/learners/:learnerId/standing", h.Enrollments.Standing)
	offerings.GET("/:id/attendance", h.Attendance.List)
	offerings.POST("/:id/attendance", h.Attendance.Record)
	offerings.GET("/:id/absence-rates", h.Attendance.AbsenceRates)
	offerings.GET("/:id/learners/:learnerId/absences", h.Attendance.LearnerAbsences)

	items := api.Group("/graded-items")
	items.PUT("/:id", h.Grading.UpdateItem)
	items.DELETE("/:id", h.Grading.DeleteItem)
	items.PUT("/:id/achievements", h.Grading.RecordAchievement)
	items.POST("/:id/submissions", h.Grading.SubmitQuiz)

	api.POST("/enrollments/:id/drop", h.Enrollments.Drop)

	maintenance := api.Group("/maintenance")
	maintenance.POST("/recompute", h.Maintenance.RecomputeAll)
	maintenance.GET("/queue", h.Maintenance.Stats)
}
