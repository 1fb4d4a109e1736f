package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/auth"
	"github.com/riverside-fc/backend/internal/ratelimit"
)

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	req.RemoteAddr = "198.51.100.7:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	convey.Convey("Given a router limited to 2 requests per minute", t, func() {
		policy := ratelimit.Policy{Name: "test", MaxAttempts: 2, Window: time.Minute, BlockDuration: 5 * time.Minute}
		r := gin.New()
		r.Use(RateLimit(ratelimit.New(nil), policy, nil))
		r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/static/app.js", func(c *gin.Context) { c.Status(http.StatusOK) })

		convey.Convey("Allowed requests carry the limit headers", func() {
			w := serve(r, http.MethodGet, "/events", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("X-RateLimit-Limit"), convey.ShouldEqual, "2")
			convey.So(w.Header().Get("X-RateLimit-Remaining"), convey.ShouldEqual, "1")
		})

		convey.Convey("The third request is rejected with Retry-After", func() {
			serve(r, http.MethodGet, "/events", nil)
			serve(r, http.MethodGet, "/events", nil)
			w := serve(r, http.MethodGet, "/events", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusTooManyRequests)
			convey.So(w.Header().Get("Retry-After"), convey.ShouldEqual, "300")
			convey.So(w.Header().Get("X-RateLimit-Remaining"), convey.ShouldEqual, "0")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "5 minutes")
		})

		convey.Convey("Static assets are never limited", func() {
			for i := 0; i < 5; i++ {
				w := serve(r, http.MethodGet, "/static/app.js", nil)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)

	convey.Convey("Given a JWT-protected route", t, func() {
		svc := auth.NewJWTService("secret", 1)
		r := gin.New()
		r.Use(Logger(zap.NewNop()))
		r.GET("/me", JWT(svc), func(c *gin.Context) {
			c.String(http.StatusOK, c.MustGet(auth.ContextAdminID).(uuid.UUID).String())
		})

		convey.Convey("Requests without a token are rejected", func() {
			w := serve(r, http.MethodGet, "/me", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
		})

		convey.Convey("A valid token exposes the admin id", func() {
			id := uuid.New()
			token, err := svc.Generate(id, "coach@club.test")
			convey.So(err, convey.ShouldBeNil)
			w := serve(r, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer " + token}})
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldEqual, id.String())
		})

		convey.Convey("A token signed with another secret is rejected", func() {
			token, _ := auth.NewJWTService("other", 1).Generate(uuid.New(), "x@club.test")
			w := serve(r, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer " + token}})
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	convey.Convey("Given an origin allow-list", t, func() {
		r := gin.New()
		r.Use(CORS("https://club.test"))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		convey.Convey("Known origins are echoed", func() {
			w := serve(r, http.MethodGet, "/x", http.Header{"Origin": {"https://club.test"}})
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://club.test")
		})

		convey.Convey("Unknown origins get no CORS headers", func() {
			w := serve(r, http.MethodGet, "/x", http.Header{"Origin": {"https://evil.test"}})
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldBeEmpty)
		})

		convey.Convey("Preflight requests end with 204", func() {
			w := serve(r, http.MethodOptions, "/x", http.Header{"Origin": {"https://club.test"}})
			convey.So(w.Code, convey.ShouldEqual, http.StatusNoContent)
		})
	})
}
