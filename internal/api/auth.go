package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusattend/internal/auth"
	"campusattend/internal/metrics"
	"campusattend/internal/otp"
	"campusattend/internal/user"
)

type signupRequest struct {
	CollegeID string `json:"college_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required"`
	ClassName string `json:"class_name"`
	Semester  string `json:"semester"`
	Password  string `json:"password" binding:"required"`
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	u, err := s.Users.Register(c.Request.Context(), user.Registration{
		CollegeID: req.CollegeID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		ClassName: req.ClassName,
		Semester:  req.Semester,
		Password:  req.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}
	s.Log.Info("student registered", zap.String("user_id", u.ID), zap.String("college_id", u.CollegeID))
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		CollegeID string `json:"college_id" binding:"required"`
		Password  string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.Users.Authenticate(c.Request.Context(), req.CollegeID, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	s.issueTokens(c, id)
}

func (s *Server) requestOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	email := otp.NormalizeEmail(req.Email)

	if s.OTPLimiter != nil {
		ok, err := s.OTPLimiter.Allow(ctx, email)
		if err != nil {
			s.Log.Warn("otp limiter unavailable", zap.Error(err))
		} else if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many OTP requests, try again later", "code": "rate_limited"})
			return
		}
	}

	if _, err := s.Users.IdentityByEmail(ctx, email); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no account found with this email", "code": "not_found"})
			return
		}
		fail(c, err)
		return
	}

	issued, err := s.OTP.Issue(ctx, email)
	if err != nil {
		fail(c, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.OTPIssued.Inc()
		s.Metrics.OTPDelivery.WithLabelValues(metrics.Result(issued.DeliveryErr)).Inc()
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message":    "OTP sent to your email",
		"expires_in": int(s.OTP.TTL().Seconds()),
		"delivered":  issued.DeliveryErr == nil,
	})
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	err := s.OTP.Verify(ctx, req.Email, req.Code)
	if s.Metrics != nil {
		_, code := classify(err)
		if err == nil {
			code = "ok"
		}
		s.Metrics.OTPVerify.WithLabelValues(code).Inc()
	}
	if err != nil {
		fail(c, err)
		return
	}
	id, err := s.Users.IdentityByEmail(ctx, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	s.issueTokens(c, id)
}

func (s *Server) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	claims, err := s.Signer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token", "code": "invalid_token"})
		return
	}
	u, err := s.Users.ByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token", "code": "invalid_token"})
			return
		}
		fail(c, err)
		return
	}
	s.issueTokens(c, u.Identity())
}

func (s *Server) issueTokens(c *gin.Context, id user.Identity) {
	pair, err := s.Signer.Issue(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": pair, "user": id})
}
