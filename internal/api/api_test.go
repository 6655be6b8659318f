package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/clock"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/metrics"
	"campusattend/internal/otp"
	"campusattend/internal/schedule"
	"campusattend/internal/store"
	"campusattend/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var ist = time.FixedZone("IST", 5*3600+1800)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) Send(_ context.Context, email, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[email] = code
	return nil
}

func (i *inbox) last(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[email]
}

type harness struct {
	router  *gin.Engine
	clk     *clock.Manual
	inbox   *inbox
	users   *user.Service
	metrics *metrics.Metrics
}

type options struct {
	attendanceStore attendance.Store
	otpLimiter      httpmiddleware.Limiter
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 9, 2, 10, 0, 0, 0, ist))
	sched, err := schedule.New(schedule.DefaultTable())
	require.NoError(t, err)

	if opts.attendanceStore == nil {
		opts.attendanceStore = attendance.NewMemoryStore()
	}
	box := &inbox{codes: map[string]string{}}
	users := user.NewService(user.NewMemoryStore(), clk).WithHashCost(bcrypt.MinCost)
	m := metrics.New(prometheus.NewRegistry())

	srv := &Server{
		Users:      users,
		OTP:        otp.NewAuthenticator(otp.NewMemoryStore(), box, clk),
		Recorder:   attendance.NewRecorder(opts.attendanceStore, sched, clk, nil),
		Scheduler:  sched,
		Signer:     auth.NewSigner("campusattend", "api-test-key", 15*time.Minute, time.Hour),
		Clock:      clk,
		Metrics:    m,
		OTPLimiter: opts.otpLimiter,
	}
	r := gin.New()
	srv.Register(r)
	return &harness{router: r, clk: clk, inbox: box, users: users, metrics: m}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (h *harness) signup(t *testing.T) {
	t.Helper()
	code, body := h.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"college_id": "22b41a0501",
		"name":       "Jane Smith",
		"email":      "jane@kcea.edu",
		"phone":      "9876543210",
		"class_name": "B4",
		"semester":   "5",
		"password":   "student123",
	})
	require.Equal(t, http.StatusCreated, code, body)
}

func (h *harness) login(t *testing.T, collegeID, password string) string {
	t.Helper()
	code, body := h.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"college_id": collegeID, "password": password})
	require.Equal(t, http.StatusOK, code, body)
	return body["tokens"].(map[string]any)["access_token"].(string)
}

func TestOTPLoginThenMarkAttendance(t *testing.T) {
	h := newHarness(t, options{})
	h.signup(t)

	code, body := h.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "Jane@KCEA.edu"})
	require.Equal(t, http.StatusAccepted, code, body)
	assert.Equal(t, true, body["delivered"])
	assert.Equal(t, float64(300), body["expires_in"])
	otpCode := h.inbox.last("jane@kcea.edu")
	require.Len(t, otpCode, 6)

	code, body = h.do(t, http.MethodPost, "/v1/auth/otp/verify", "", map[string]string{"email": "jane@kcea.edu", "otp": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_or_expired_otp", body["code"])

	h.clk.Advance(time.Minute)
	code, body = h.do(t, http.MethodPost, "/v1/auth/otp/verify", "", map[string]string{"email": "jane@kcea.edu", "otp": otpCode})
	require.Equal(t, http.StatusOK, code, body)
	token := body["tokens"].(map[string]any)["access_token"].(string)
	assert.Equal(t, "22B41A0501", body["user"].(map[string]any)["college_id"])

	code, _ = h.do(t, http.MethodPost, "/v1/auth/otp/verify", "", map[string]string{"email": "jane@kcea.edu", "otp": otpCode})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = h.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{"period_number": 1, "subject": "Maths"})
	require.Equal(t, http.StatusCreated, code, body)
	rec := body["record"].(map[string]any)
	assert.Equal(t, float64(1), rec["period"])
	assert.Equal(t, "present", rec["status"])

	code, body = h.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{"period_number": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_for_period", body["code"])

	code, body = h.do(t, http.MethodGet, "/v1/attendance/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["present"])
	assert.Equal(t, float64(1), stats["total"])
	assert.Equal(t, float64(100), stats["percentage"])
	assert.Len(t, body["recent"], 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AttendanceMarks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AttendanceMarks.WithLabelValues("duplicate_for_period")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OTPIssued))
}

func TestOTPExpiresAfterFiveMinutes(t *testing.T) {
	h := newHarness(t, options{})
	h.signup(t)

	code, _ := h.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "jane@kcea.edu"})
	require.Equal(t, http.StatusAccepted, code)
	h.clk.Advance(5*time.Minute + time.Second)

	code, body := h.do(t, http.MethodPost, "/v1/auth/otp/verify", "", map[string]string{"email": "jane@kcea.edu", "otp": h.inbox.last("jane@kcea.edu")})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_or_expired_otp", body["code"])
}

func TestRequestOTP_UnknownEmailAndThrottle(t *testing.T) {
	h := newHarness(t, options{otpLimiter: httpmiddleware.NewTokenBucket(1, 1, time.Hour)})
	h.signup(t)

	code, body := h.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "ghost@kcea.edu"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["code"])

	code, _ = h.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "jane@kcea.edu"})
	assert.Equal(t, http.StatusAccepted, code)
	code, body = h.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "JANE@kcea.edu"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", body["code"])

	code, _ = h.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMarkAttendance_ScheduleErrors(t *testing.T) {
	h := newHarness(t, options{})
	h.signup(t)
	token := h.login(t, "22B41A0501", "student123")

	cases := []struct {
		at     [2]int
		period int
		code   string
	}{
		{[2]int{9, 59}, 1, "not_yet_open"},
		{[2]int{11, 1}, 1, "already_closed"},
		{[2]int{13, 10}, 4, "lunch_break"},
		{[2]int{10, 0}, 9, "unknown_period"},
		{[2]int{10, 0}, 0, "unknown_period"},
	}
	for _, tc := range cases {
		h.clk.Set(time.Date(2024, 9, 2, tc.at[0], tc.at[1], 0, 0, ist))
		code, body := h.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{"period_number": tc.period})
		assert.Equal(t, http.StatusBadRequest, code, "period %d at %v", tc.period, tc.at)
		assert.Equal(t, tc.code, body["code"], "period %d at %v", tc.period, tc.at)
	}

	code, _ := h.do(t, http.MethodPost, "/v1/attendance", "", map[string]any{"period_number": 1})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginAndRefresh(t *testing.T) {
	h := newHarness(t, options{})
	h.signup(t)

	code, body := h.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"college_id": "22B41A0501", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", body["code"])

	code, body = h.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"college_id": "22b41a0501", "password": "student123"})
	require.Equal(t, http.StatusOK, code)
	tokens := body["tokens"].(map[string]any)

	code, body = h.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": tokens["refresh_token"].(string)})
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["tokens"].(map[string]any)["access_token"])

	code, _ = h.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": tokens["access_token"].(string)})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignup_Rejections(t *testing.T) {
	h := newHarness(t, options{})
	h.signup(t)

	code, body := h.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"college_id": "22B41A0502", "name": "Other", "email": "jane@kcea.edu", "phone": "9876543210", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_exists", body["code"])

	code, body = h.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"college_id": "22B41A0503", "name": "Other", "email": "other@kcea.edu", "phone": "12345", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_registration", body["code"])
}

func TestCurrentPeriod(t *testing.T) {
	h := newHarness(t, options{})

	h.clk.Set(time.Date(2024, 9, 2, 11, 0, 45, 0, ist))
	code, body := h.do(t, http.MethodGet, "/v1/periods/current", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "11:00", body["current_time"])
	assert.Equal(t, "2024-09-02", body["date"])
	assert.Equal(t, "v1", body["table_version"])
	assert.Equal(t, float64(1), body["current"].(map[string]any)["period_number"])
	assert.Len(t, body["periods"], 7)

	h.clk.Set(time.Date(2024, 9, 2, 13, 15, 0, 0, ist))
	_, body = h.do(t, http.MethodGet, "/v1/periods/current", "", nil)
	assert.Equal(t, true, body["current"].(map[string]any)["is_lunch"])

	h.clk.Set(time.Date(2024, 9, 2, 18, 0, 0, 0, ist))
	_, body = h.do(t, http.MethodGet, "/v1/periods/current", "", nil)
	assert.Nil(t, body["current"])
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t, options{})
	h.signup(t)
	_, err := h.users.EnsureAdmin(context.Background(), "ADMIN001", "Administrator", "admin@kcea.edu", "admin123")
	require.NoError(t, err)

	studentToken := h.login(t, "22B41A0501", "student123")
	adminToken := h.login(t, "ADMIN001", "admin123")

	code, _ := h.do(t, http.MethodPost, "/v1/attendance", studentToken, map[string]any{"period_number": 1})
	require.Equal(t, http.StatusCreated, code)

	code, _ = h.do(t, http.MethodGet, "/v1/admin/attendance", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(t, http.MethodPost, "/v1/attendance", adminToken, map[string]any{"period_number": 1})
	assert.Equal(t, http.StatusForbidden, code)

	code, body := h.do(t, http.MethodGet, "/v1/admin/attendance?date=2024-09-02&period=1", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["records"], 1)

	_, body = h.do(t, http.MethodGet, "/v1/admin/attendance?date=2024-09-03", adminToken, nil)
	assert.Len(t, body["records"], 0)

	code, _ = h.do(t, http.MethodGet, "/v1/admin/attendance?date=02-09-2024", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(t, http.MethodGet, "/v1/admin/attendance?limit=-1", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(t, http.MethodPost, "/v1/admin/users/reset-password", adminToken, map[string]string{"college_id": "22b41a0501"})
	require.Equal(t, http.StatusOK, code)
	newPassword := body["new_password"].(string)
	assert.Len(t, newPassword, 8)
	h.login(t, "22B41A0501", newPassword)

	code, _ = h.do(t, http.MethodPost, "/v1/admin/users/reset-password", adminToken, map[string]string{"college_id": "missing"})
	assert.Equal(t, http.StatusNotFound, code)
}

type brokenAttendance struct{ *attendance.MemoryStore }

func (brokenAttendance) Insert(context.Context, attendance.Record) (attendance.Record, error) {
	return attendance.Record{}, store.Wrap("insert attendance", errors.New("connection reset by peer"))
}

func TestStorageFailureIsServiceUnavailable(t *testing.T) {
	h := newHarness(t, options{attendanceStore: brokenAttendance{attendance.NewMemoryStore()}})
	h.signup(t)
	token := h.login(t, "22B41A0501", "student123")

	code, body := h.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{"period_number": 1})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "storage_unavailable", body["code"])
	assert.NotContains(t, body["error"], "connection reset")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AttendanceMarks.WithLabelValues("storage_unavailable")))
}
