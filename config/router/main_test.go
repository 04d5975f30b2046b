package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/akeren/waitlist-api/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *string         `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp))
	return resp
}

func mountTestController(rs *RouterService, postLimiter ratelimit.RateLimiter) {
	ctrl := NewRESTController("TestController", "/", func(rs *RouterService, c *RESTController) {
		rs.AddGetHandler(c, nil, "ip", func(ctx *RequestContext) *ServiceResult {
			return OKResult(ctx.ClientIP(), "ok")
		})

		rs.AddPostHandler(c, postLimiter, "echo", func(ctx *RequestContext) *ServiceResult {
			var payload map[string]any
			if err := ctx.ShouldBindJSON(&payload); err != nil {
				return BadRequestResult("bad", nil)
			}
			return OKResult(payload, "ok")
		})

		rs.AddGetHandler(c, nil, "boom", func(ctx *RequestContext) *ServiceResult {
			return ResultFromError(apperrors.NewDatabaseError("insert failed", assert.AnError))
		})

		rs.AddGetHandler(c, nil, "nil", func(ctx *RequestContext) *ServiceResult {
			return nil
		})
	})

	rs.MountController(ctrl)
}

func newTestRouterService(t *testing.T) *RouterService {
	t.Helper()

	return CreateRouterService(log.NewDiscardLogger(), nil, &RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
	})
}

func serve(rs *RouterService, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, req)
	return w
}

func TestTrustedProxies_DisabledByDefault(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")

	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")

	w := serve(rs, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `"10.0.0.2"`, string(decodeEnvelope(t, w).Data))
}

func TestTrustedProxies_StarTrustsForwardedFor(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "*")

	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")

	w := serve(rs, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `"1.1.1.1"`, string(decodeEnvelope(t, w).Data))
}

func TestMaxBodySize_Returns413(t *testing.T) {
	t.Setenv("MAX_REQUEST_BODY_BYTES", "10")

	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(bytes.Repeat([]byte{'a'}, 50)))
	req.Header.Set("Content-Type", "application/json")

	w := serve(rs, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandlerRateLimitOverride(t *testing.T) {
	rs := newTestRouterService(t)
	mountTestController(rs, ratelimit.NewInMemoryRateLimiter(1, time.Minute))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader([]byte(`{"a":1}`)))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.9:1234"
		return serve(rs, req)
	}

	first := post()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := post()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// GET routes keep the default limiter.
	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	w := serve(rs, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", w.Header().Get("X-RateLimit-Limit"))
}

func TestResultFromError_HidesInternalDetail(t *testing.T) {
	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeEnvelope(t, w)
	assert.Equal(t, "An unexpected error occurred", resp.Message)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Message, *resp.Error)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestSuccessEnvelopeHasNoErrorField(t *testing.T) {
	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/ip", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeEnvelope(t, w).Error)
}

func TestNilHandlerResult(t *testing.T) {
	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/nil", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnknownRoute_Returns404Envelope(t *testing.T) {
	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, decodeEnvelope(t, w).Code)
}

func TestCorrelationIDEchoed(t *testing.T) {
	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")

	w := serve(rs, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Correlation-ID"))
}

func TestCORS(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGIN", "https://site.example, https://www.site.example")

	rs := newTestRouterService(t)
	mountTestController(rs, nil)

	req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
	req.Header.Set("Origin", "https://www.site.example")
	w := serve(rs, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://www.site.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(rs, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpointExposesDomainCollectors(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")

	rs := newTestRouterService(t)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	rs.MetricsRegisterer().MustRegister(counter)
	counter.Inc()

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "router_test_total 1")
}

func TestDuplicateHandlerRegistrationPanics(t *testing.T) {
	rs := newTestRouterService(t)

	assert.Panics(t, func() {
		rs.MountController(NewRESTController("Dup", "/dup", func(rs *RouterService, c *RESTController) {
			handler := func(ctx *RequestContext) *ServiceResult { return OKResult(nil, "ok") }
			rs.AddGetHandler(c, nil, "", handler)
			rs.AddGetHandler(c, nil, "", handler)
		}))
	})
}

func TestNormalizePath(t *testing.T) {
	root := NewRESTController("root", "/", nil)
	api := NewRESTController("api", "api/waitlist", nil)
	versioned := NewVersionedRESTController("v", "v1", "waitlist", nil)

	assert.Equal(t, "/", normalizePath(root, ""))
	assert.Equal(t, "/health", normalizePath(root, "health"))
	assert.Equal(t, "/api/waitlist", normalizePath(api, ""))
	assert.Equal(t, "/api/waitlist/stats", normalizePath(api, "/stats/"))
	assert.Equal(t, "/v1/waitlist", normalizePath(versioned, ""))
}
