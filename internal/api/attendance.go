package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/schedule"
)

func (s *Server) currentPeriod(c *gin.Context) {
	now := s.Clock.Now()
	resp := gin.H{
		"current_time":  schedule.TimeOfDayOf(now),
		"date":          schedule.DateOf(now).Format(time.DateOnly),
		"table_version": s.Scheduler.Version(),
		"periods":       s.Scheduler.Periods(),
		"current":       nil,
	}
	if p, ok := s.Scheduler.ResolveCurrentPeriod(now); ok {
		resp["current"] = p
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) markAttendance(c *gin.Context) {
	var req struct {
		Period  *int   `json:"period_number" binding:"required"`
		Subject string `json:"subject"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	rec, err := s.Recorder.Mark(c.Request.Context(), claims.Subject, *req.Period, req.Subject)
	if s.Metrics != nil {
		outcome := "ok"
		if err != nil {
			_, outcome = classify(err)
		}
		s.Metrics.AttendanceMarks.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}

func (s *Server) myAttendance(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	ctx := c.Request.Context()
	stats, err := s.Recorder.Stats(ctx, claims.Subject)
	if err != nil {
		fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	recent, err := s.Recorder.Recent(ctx, claims.Subject, limit)
	if err != nil {
		fail(c, err)
		return
	}
	if recent == nil {
		recent = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "recent": recent})
}

func (s *Server) listAttendance(c *gin.Context) {
	f := attendance.Filter{StudentID: c.Query("student_id")}
	if v := c.Query("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		f.Date = d
	}
	for key, dst := range map[string]*int{"period": &f.Period, "limit": &f.Limit, "offset": &f.Offset} {
		if v := c.Query(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(c, key+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}
	records, err := s.Recorder.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req struct {
		CollegeID string `json:"college_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	password, err := s.Users.ResetPassword(c.Request.Context(), req.CollegeID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"college_id": req.CollegeID, "new_password": password})
}
