package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the portal's collectors.
type Metrics struct {
	AttendanceMarks *prometheus.CounterVec
	OTPIssued       prometheus.Counter
	OTPDelivery     *prometheus.CounterVec
	OTPVerify       *prometheus.CounterVec
	MailJobs        *prometheus.CounterVec
	OTPPurged       prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AttendanceMarks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_attendance_marks_total",
			Help: "Attendance mark attempts by outcome.",
		}, []string{"outcome"}),
		OTPIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "campusattend_otp_issued_total",
			Help: "OTP challenges persisted.",
		}),
		OTPDelivery: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_otp_delivery_total",
			Help: "OTP hand-offs to the mailer by result.",
		}, []string{"result"}),
		OTPVerify: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_otp_verify_total",
			Help: "OTP verification attempts by result.",
		}, []string{"result"}),
		MailJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_mail_jobs_total",
			Help: "Queued OTP mails processed by the worker.",
		}, []string{"result"}),
		OTPPurged: f.NewCounter(prometheus.CounterOpts{
			Name: "campusattend_otp_purged_total",
			Help: "Expired or used OTP challenges removed.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusattend_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Result maps an error to a "ok"/"error" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Gin records request counts and latency per matched route.
func (m *Metrics) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
