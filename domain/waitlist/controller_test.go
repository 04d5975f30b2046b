package waitlist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type WaitlistControllerTestSuite struct {
	suite.Suite
	rs   *router.RouterService
	repo *FileRepository
	now  time.Time
}

func (s *WaitlistControllerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	logger := log.NewDiscardLogger()
	repo, _ := newTestFileRepo(s.T())
	s.repo = repo
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	svc := NewWaitlistService(logger, repo, nil, 0, nil).(*waitlistService)
	svc.now = func() time.Time { return s.now }

	s.rs = router.CreateRouterService(logger, nil, &router.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
	})
	s.rs.MountController(NewWaitlistController(svc, logger))
}

func (s *WaitlistControllerTestSuite) do(method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.rs.GetEngine().ServeHTTP(w, req)

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (s *WaitlistControllerTestSuite) signup(email string) SignupResponse {
	w, env := s.do(http.MethodPost, "/api/waitlist", map[string]string{"email": email})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp SignupResponse
	s.Require().NoError(json.Unmarshal(env.Data, &resp))
	return resp
}

func (s *WaitlistControllerTestSuite) TestSignupAssignsSequentialPositions() {
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		resp := s.signup(email)
		s.Equal(int64(i+1), resp.Position)
		s.Equal(int64(i+1), resp.Total)
		s.Equal(int64(1), resp.JoinedToday)
	}
}

func (s *WaitlistControllerTestSuite) TestDuplicateSignup() {
	first := s.signup("dup@example.com")
	s.signup("other@example.com")

	again := s.signup("DUP@example.com")
	s.Equal(first.Position, again.Position)
	s.Equal(int64(2), again.Total)
	s.Equal(int64(0), again.JoinedToday)
}

func (s *WaitlistControllerTestSuite) TestInvalidEmailsRejected() {
	for _, email := range []string{"no-at-sign", "no-domain@", "trailing@dot."} {
		w, env := s.do(http.MethodPost, "/api/waitlist", map[string]string{"email": email})
		s.Equal(http.StatusBadRequest, w.Code, email)
		s.Equal("Invalid email format", env.Message, email)
	}

	total, err := s.repo.Count(context.Background())
	s.Require().NoError(err)
	s.Zero(total, "rejected signups leave no trace")
}

func (s *WaitlistControllerTestSuite) TestMissingEmail() {
	w, env := s.do(http.MethodPost, "/api/waitlist", map[string]string{"name": "Ada"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Email is required", env.Message)

	w, _ = s.do(http.MethodPost, "/api/waitlist", map[string]any{"email": 42})
	s.Equal(http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPost, "/api/waitlist", "not json")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Invalid request body", env.Message)
}

func (s *WaitlistControllerTestSuite) TestPositionQuery() {
	s.signup("a@example.com")
	s.signup("b@example.com")

	for _, target := range []string{"/api/waitlist?email=b%40example.com", "/api/waitlist/position?email=B%40Example.com"} {
		w, env := s.do(http.MethodGet, target, nil)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp PositionResponse
		s.Require().NoError(json.Unmarshal(env.Data, &resp))
		s.Equal(int64(2), resp.Position, target)
	}

	w, env := s.do(http.MethodGet, "/api/waitlist?email=unknown%40example.com", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"position":0}`, string(env.Data))
}

func (s *WaitlistControllerTestSuite) TestStatsQuery() {
	yesterday := s.now.Add(-24 * time.Hour).UTC()
	_, err := s.repo.Join(context.Background(), &models.WaitlistEntry{Email: "old@example.com", Source: "website", CreatedAt: yesterday})
	s.Require().NoError(err)

	s.signup("a@example.com")
	s.signup("b@example.com")

	for _, target := range []string{"/api/waitlist", "/api/waitlist?email=", "/api/waitlist/stats"} {
		w, env := s.do(http.MethodGet, target, nil)
		s.Require().Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"total":3,"joinedToday":2}`, string(env.Data), target)
	}
}

func (s *WaitlistControllerTestSuite) TestSignupRateLimited() {
	var last *httptest.ResponseRecorder
	for i := 0; i < 31; i++ {
		last, _ = s.do(http.MethodPost, "/api/waitlist", map[string]string{"email": "same@example.com"})
	}
	s.Equal(http.StatusTooManyRequests, last.Code)

	w, _ := s.do(http.MethodGet, "/api/waitlist", nil)
	s.Equal(http.StatusOK, w.Code, "reads are not limited by the signup limiter")
}

func TestWaitlistControllerTestSuite(t *testing.T) {
	suite.Run(t, new(WaitlistControllerTestSuite))
}

type failingService struct{ WaitlistService }

func (failingService) Join(context.Context, *JoinWaitlistRequest) (*SignupResponse, error) {
	return nil, apperrors.NewInternalServerError("failed to join waitlist", assert.AnError)
}

func TestJoinHandler_UnexpectedFailureIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := log.NewDiscardLogger()

	rs := router.CreateRouterService(logger, nil, &router.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
	})
	rs.MountController(NewWaitlistController(failingService{}, logger))

	req := httptest.NewRequest(http.MethodPost, "/api/waitlist", bytes.NewReader([]byte(`{"email":"a@example.com"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.Contains(t, w.Body.String(), "An unexpected error occurred")
}
