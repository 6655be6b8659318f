package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/clock"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/metrics"
	"campusattend/internal/otp"
	"campusattend/internal/schedule"
	"campusattend/internal/user"
)

// Server holds the handler dependencies.
type Server struct {
	Users     *user.Service
	OTP       *otp.Authenticator
	Recorder  *attendance.Recorder
	Scheduler *schedule.Scheduler
	Signer    *auth.Signer
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Log       *zap.Logger

	// OTPLimiter throttles code requests per email. Nil disables it.
	OTPLimiter httpmiddleware.Limiter
}

// Register mounts the /v1 routes on r.
func (s *Server) Register(r gin.IRouter) {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	v1 := r.Group("/v1")

	a := v1.Group("/auth")
	a.POST("/signup", s.signup)
	a.POST("/login", s.login)
	a.POST("/otp", s.requestOTP)
	a.POST("/otp/verify", s.verifyOTP)
	a.POST("/refresh", s.refresh)

	v1.GET("/periods/current", s.currentPeriod)

	student := v1.Group("", auth.Bearer(s.Signer), auth.RequireRole(user.RoleStudent))
	student.POST("/attendance", s.markAttendance)
	student.GET("/attendance/me", s.myAttendance)

	admin := v1.Group("/admin", auth.Bearer(s.Signer), auth.RequireRole(user.RoleAdmin))
	admin.GET("/attendance", s.listAttendance)
	admin.POST("/users/reset-password", s.resetPassword)
}
