package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/sse"
)

const (
	handlerTestSecret     = "test-secret-key-for-jwt"
	handlerTestCronSecret = "cron-secret"
)

// stubService records the requests it receives. Unset methods panic through the nil interface.
type stubService struct {
	attendance.AttendanceService

	mu         sync.Mutex
	err        error
	checkIn    *attendance.CheckInRequest
	checkOut   *attendance.CheckOutRequest
	todayUser  string
	listFilter *attendance.ListFilter
	override   *attendance.OverrideRequest
	sweep      *attendance.SweepRequest
}

func (s *stubService) CheckIn(_ context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkIn = &req
	if s.err != nil {
		return attendance.AttendanceResponse{}, s.err
	}
	return attendance.AttendanceResponse{UserID: req.UserID, Status: "PRESENT", WorkMode: string(req.Mode())}, nil
}

func (s *stubService) CheckOut(_ context.Context, req attendance.CheckOutRequest) (attendance.CheckOutResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkOut = &req
	if s.err != nil {
		return attendance.CheckOutResponse{}, s.err
	}
	return attendance.CheckOutResponse{}, nil
}

func (s *stubService) GetToday(_ context.Context, userID string) (attendance.TodayResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todayUser = userID
	return attendance.TodayResponse{Date: "2024-01-15", State: "NONE", CanCheckIn: true}, s.err
}

func (s *stubService) ListRange(_ context.Context, filter attendance.ListFilter) (attendance.ListAttendanceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := filter
	s.listFilter = &recorded
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}
	return attendance.ListAttendanceResponse{Page: 1, Limit: 20, Showing: "0 of 0"}, s.err
}

func (s *stubService) SetOverride(_ context.Context, req attendance.OverrideRequest) (attendance.AttendanceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &req
	return attendance.AttendanceResponse{UserID: req.UserID, Status: req.Status}, s.err
}

func (s *stubService) RunAbsenceSweep(_ context.Context, req attendance.SweepRequest) (attendance.SweepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep = &req
	return attendance.SweepResponse{Date: "2024-01-14", CreatedAbsent: 2}, s.err
}

type stubDirectory struct {
	employee.Directory
	profiles map[string]employee.Profile
}

func (d stubDirectory) GetProfile(_ context.Context, userID string) (employee.Profile, error) {
	p, ok := d.profiles[userID]
	if !ok {
		return employee.Profile{}, employee.ErrEmployeeNotFound
	}
	return p, nil
}

type testEnv struct {
	router http.Handler
	svc    *stubService
	hub    *sse.Hub
	jwt    jwt.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dept := "dept-eng"
	dir := stubDirectory{profiles: map[string]employee.Profile{
		"mgr-1": {UserID: "mgr-1", Role: user.RoleManager, DepartmentID: &dept},
		"mgr-2": {UserID: "mgr-2", Role: user.RoleManager},
	}}
	svc := &stubService{}
	hub := sse.NewHub()
	jwtService := jwt.NewJWTService(handlerTestSecret, "1h")
	h := NewAttendanceHandler(svc, dir, hub)
	router := NewRouter(jwtService, h, RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		CronSecret:     handlerTestCronSecret,
	})
	return &testEnv{router: router, svc: svc, hub: hub, jwt: jwtService}
}

func (e *testEnv) token(t *testing.T, userID string, role user.Role) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestCheckIn_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/attendance/check-in", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, env.svc.checkIn)
}

func TestCheckIn_RejectsNonAccessToken(t *testing.T) {
	env := newTestEnv(t)
	_, token, err := env.jwt.JWTAuth().Encode(map[string]interface{}{
		"user_id": "emp-1",
		"role":    "EMPLOYEE",
		"type":    "refresh",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckIn_UsesCallerIdentity(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "emp-1", user.RoleEmployee)

	rec := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, `{"work_mode":"remote","user_id":"someone-else"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, env.svc.checkIn)
	assert.Equal(t, "emp-1", env.svc.checkIn.UserID)
	assert.Equal(t, "remote", env.svc.checkIn.WorkMode)
	assert.True(t, decodeBody(t, rec).Success)
}

func TestCheckIn_EmptyBodyAllowed(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "emp-1", user.RoleEmployee)

	rec := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, env.svc.checkIn)
	assert.Equal(t, attendance.WorkModeOffice, env.svc.checkIn.Mode())
}

func TestCheckIn_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "emp-1", user.RoleEmployee)

	rec := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, `{"work_mode":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.svc.checkIn)
}

func TestCheckOut_ConflictCarriesStatus(t *testing.T) {
	env := newTestEnv(t)
	env.svc.err = &attendance.StateError{Err: attendance.ErrAlreadyCheckedOut, Status: attendance.StatusPresent, Date: "2024-01-15"}
	token := env.token(t, "emp-1", user.RoleEmployee)

	rec := env.do(t, http.MethodPost, "/api/v1/attendance/check-out", token, "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PRESENT", resp.Error.Details["status"])
	require.NotNil(t, env.svc.checkOut)
	assert.Equal(t, "emp-1", env.svc.checkOut.UserID)
	assert.Nil(t, env.svc.checkOut.WorkMode)
}

func TestToday(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "emp-1", user.RoleEmployee)

	rec := env.do(t, http.MethodGet, "/api/v1/attendance/today", token, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "emp-1", env.svc.todayUser)
}

func TestGetMyAttendance_ScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "emp-1", user.RoleEmployee)

	rec := env.do(t, http.MethodGet, "/api/v1/attendance/my?from=2024-01-01&to=2024-01-31&q=bob&page=2&page_size=5", token, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.svc.listFilter)
	f := env.svc.listFilter
	assert.Equal(t, []string{"emp-1"}, f.UserIDs)
	assert.Empty(t, f.Query)
	assert.Equal(t, "2024-01-01", f.From)
	assert.Equal(t, "2024-01-31", f.To)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 5, f.PageSize)
}

func TestGetMyAttendance_PageSizeAliases(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"page_size=5", 5},
		{"pageSize=7", 7},
		{"limit=9", 9},
		{"page_size=5&pageSize=7&limit=9", 5},
		{"pageSize=7&limit=9", 7},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			env := newTestEnv(t)
			token := env.token(t, "emp-1", user.RoleEmployee)

			rec := env.do(t, http.MethodGet, "/api/v1/attendance/my?"+tt.query, token, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, env.svc.listFilter)
			assert.Equal(t, tt.want, env.svc.listFilter.PageSize)
		})
	}
}

func TestAdminList_UserIDFilter(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "hr-1", user.RoleHR)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/attendance?user_id=not-a-uuid", token, "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "user_id must be a valid UUID", resp.Error.Details["user_id"])

	id := "0192f0c4-7a1e-7c3b-9d2e-4f5a6b7c8d9e"
	rec = env.do(t, http.MethodGet, "/api/v1/admin/attendance?user_id="+id, token, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, env.svc.listFilter.UserID)
}

func TestAdminList_Permissions(t *testing.T) {
	tests := []struct {
		role user.Role
		code int
	}{
		{user.RoleEmployee, http.StatusForbidden},
		{user.RoleAdmin, http.StatusOK},
		{user.RoleHR, http.StatusOK},
		{user.RoleFinance, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			env := newTestEnv(t)
			token := env.token(t, "caller", tt.role)

			rec := env.do(t, http.MethodGet, "/api/v1/admin/attendance?status=absent&q=ann", token, "")

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				require.NotNil(t, env.svc.listFilter)
				assert.Equal(t, "absent", env.svc.listFilter.Status)
				assert.Equal(t, "ann", env.svc.listFilter.Query)
				assert.Nil(t, env.svc.listFilter.DepartmentID)
			}
		})
	}
}

func TestAdminList_ManagerScopedToDepartment(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "mgr-1", user.RoleManager)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/attendance", token, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.svc.listFilter)
	require.NotNil(t, env.svc.listFilter.DepartmentID)
	assert.Equal(t, "dept-eng", *env.svc.listFilter.DepartmentID)
}

func TestAdminList_ManagerWithoutDepartment(t *testing.T) {
	for _, managerID := range []string{"mgr-2", "mgr-unknown"} {
		env := newTestEnv(t)
		token := env.token(t, managerID, user.RoleManager)

		rec := env.do(t, http.MethodGet, "/api/v1/admin/attendance", token, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code, managerID)
		resp := decodeBody(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Manager department not set", resp.Error.Message)
		assert.Nil(t, env.svc.listFilter)
	}
}

func TestOverride_Permissions(t *testing.T) {
	body := `{"user_id":"emp-1","date":"2024-01-15","status":"LEAVE"}`

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/admin/attendance/override", env.token(t, "fin", user.RoleFinance), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, env.svc.override)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/attendance/override", env.token(t, "hr", user.RoleHR), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.svc.override)
	assert.Equal(t, "emp-1", env.svc.override.UserID)
	assert.Equal(t, "LEAVE", env.svc.override.Status)
}

func TestMarkAbsent_CronSecret(t *testing.T) {
	tests := []struct {
		name   string
		target string
		bearer string
		code   int
	}{
		{"missing secret", "/api/v1/attendance/cron/mark-absent", "", http.StatusUnauthorized},
		{"wrong secret", "/api/v1/attendance/cron/mark-absent?secret=nope", "", http.StatusUnauthorized},
		{"query secret", "/api/v1/attendance/cron/mark-absent?secret=" + handlerTestCronSecret, "", http.StatusOK},
		{"bearer secret", "/api/v1/attendance/cron/mark-absent", handlerTestCronSecret, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodGet, tt.target, tt.bearer, "")
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				require.NotNil(t, env.svc.sweep)
				assert.Nil(t, env.svc.sweep.Date)
			} else {
				assert.Nil(t, env.svc.sweep)
			}
		})
	}
}

func TestMarkAbsent_DateOverride(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/attendance/cron/mark-absent?date=2024-01-12", handlerTestCronSecret, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.svc.sweep)
	require.NotNil(t, env.svc.sweep.Date)
	assert.Equal(t, "2024-01-12", *env.svc.sweep.Date)
}

func TestMarkAbsent_SweepInProgress(t *testing.T) {
	env := newTestEnv(t)
	env.svc.err = attendance.ErrSweepInProgress

	rec := env.do(t, http.MethodGet, "/api/v1/attendance/cron/mark-absent", handlerTestCronSecret, "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStream_AcceptsQueryToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/attendance/stream", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A verified query token for a role without stream access is refused by permission, not authentication.
	rec = env.do(t, http.MethodGet, "/api/v1/admin/attendance/stream?jwt="+env.token(t, "emp-1", user.RoleEmployee), "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func readSSEEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream_DeliversAttendanceEvents(t *testing.T) {
	hub := sse.NewHub()
	h := NewAttendanceHandler(&stubService{}, stubDirectory{}, hub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithIdentity(r.Context(), auth.Identity{UserID: "hr-1", Role: user.RoleHR})
		h.Stream(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := readSSEEvent(t, reader)
	assert.Equal(t, "connected", event)
	assert.Contains(t, data, `"user_id":"hr-1"`)

	sse.NewAttendancePublisher(hub).Publish(attendance.Event{
		Type:   attendance.EventCheckedIn,
		UserID: "emp-1",
		Date:   "2024-01-15",
	})

	event, data = readSSEEvent(t, reader)
	assert.Equal(t, string(attendance.EventCheckedIn), event)

	var payload attendance.Event
	require.NoError(t, json.Unmarshal([]byte(data), &payload))
	assert.Equal(t, "emp-1", payload.UserID)
	assert.Equal(t, "2024-01-15", payload.Date)
}

func TestStreamMine_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/attendance/stream", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamMine_DeliversOnlyCallerEvents(t *testing.T) {
	hub := sse.NewHub()
	h := NewAttendanceHandler(&stubService{}, stubDirectory{}, hub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithIdentity(r.Context(), auth.Identity{UserID: "emp-1", Role: user.RoleEmployee})
		h.StreamMine(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	event, _ := readSSEEvent(t, reader)
	assert.Equal(t, "connected", event)

	publisher := sse.NewAttendancePublisher(hub)
	publisher.Publish(attendance.Event{Type: attendance.EventCheckedIn, UserID: "emp-2", Date: "2024-01-15"})
	publisher.Publish(attendance.Event{Type: attendance.EventCheckedOut, UserID: "emp-1", Date: "2024-01-15"})

	event, data := readSSEEvent(t, reader)
	assert.Equal(t, string(attendance.EventCheckedOut), event)

	var payload attendance.Event
	require.NoError(t, json.Unmarshal([]byte(data), &payload))
	assert.Equal(t, "emp-1", payload.UserID)
}
