package auth

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
	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"

	"github.com/riverside-fc/backend/internal/loginguard"
	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/internal/ratelimit"
	"github.com/riverside-fc/backend/pkg/utils"
)

type memAdmins struct {
	admins map[string]*models.Admin
}

func (m *memAdmins) GetByID(_ context.Context, id uuid.UUID) (*models.Admin, error) {
	for _, a := range m.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memAdmins) GetByEmail(_ context.Context, email string) (*models.Admin, error) {
	if a, ok := m.admins[email]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

type stubBackend struct {
	mu       sync.Mutex
	status   loginguard.Status
	err      error
	attempts []bool
}

func (b *stubBackend) CheckLoginRateLimit(context.Context, string, time.Duration, int) (loginguard.Status, error) {
	return b.status, b.err
}

func (b *stubBackend) RecordAttempt(_ context.Context, _ string, success bool, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = append(b.attempts, success)
	return nil
}

type syncSink struct {
	backend *stubBackend
}

func (s syncSink) LogLoginAttempt(identifier string, success bool) {
	_ = s.backend.RecordAttempt(context.Background(), identifier, success, time.Now())
}

type failingIssuer struct{}

func (failingIssuer) Generate(uuid.UUID, string) (string, error) {
	return "", errors.New("signing key unavailable")
}

func postLogin(r http.Handler, email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	convey.Convey("Given an admin account", t, func() {
		hash, err := utils.HashAdminPassword("correct horse")
		convey.So(err, convey.ShouldBeNil)
		admin := &models.Admin{ID: uuid.New(), Email: "coach@club.test", Password: hash, FullName: "Coach"}
		store := &memAdmins{admins: map[string]*models.Admin{admin.Email: admin}}
		backend := &stubBackend{status: loginguard.Status{Allowed: true}}
		guard := loginguard.NewGuard(backend, loginguard.WithSink(syncSink{backend}))
		jwtSvc := NewJWTService("secret", 1)
		h := NewHandler(store, jwtSvc, ratelimit.New(nil), guard, nil)
		r := gin.New()
		r.POST("/auth/login", h.Login)

		convey.Convey("The right password returns a token and logs a success", func() {
			w := postLogin(r, "Coach@Club.test", "correct horse")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var out struct {
				Data TokenResponse `json:"data"`
			}
			convey.So(json.Unmarshal(w.Body.Bytes(), &out), convey.ShouldBeNil)
			claims, err := jwtSvc.Validate(out.Data.Token)
			convey.So(err, convey.ShouldBeNil)
			convey.So(claims.AdminID, convey.ShouldEqual, admin.ID)
			convey.So(backend.attempts, convey.ShouldResemble, []bool{true})
		})

		convey.Convey("A wrong password is rejected and logged as a failure", func() {
			w := postLogin(r, "coach@club.test", "nope")
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
			convey.So(backend.attempts, convey.ShouldResemble, []bool{false})
		})

		convey.Convey("The sixth attempt is blocked locally for 30 minutes", func() {
			for i := 0; i < ratelimit.PresetLogin.MaxAttempts; i++ {
				convey.So(postLogin(r, "coach@club.test", "nope").Code, convey.ShouldEqual, http.StatusUnauthorized)
			}
			w := postLogin(r, "coach@club.test", "correct horse")
			convey.So(w.Code, convey.ShouldEqual, http.StatusTooManyRequests)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "30 minutes")
		})

		convey.Convey("A shared-limit denial is returned as 429 with its message", func() {
			backend.status = loginguard.Status{Allowed: false, AttemptsCount: 5, TimeUntilReset: 2 * time.Minute, Message: "Too many failed login attempts."}
			w := postLogin(r, "coach@club.test", "correct horse")
			convey.So(w.Code, convey.ShouldEqual, http.StatusTooManyRequests)
			convey.So(w.Header().Get("Retry-After"), convey.ShouldEqual, "120")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Too many failed login attempts.")
		})

		convey.Convey("A failing shared backend does not block sign-in", func() {
			backend.status = loginguard.Status{}
			backend.err = errors.New("db down")
			w := postLogin(r, "coach@club.test", "correct horse")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("A token failure after the right password is still logged as a success", func() {
			failing := NewHandler(store, failingIssuer{}, ratelimit.New(nil), guard, nil)
			fr := gin.New()
			fr.POST("/auth/login", failing.Login)
			w := postLogin(fr, "coach@club.test", "correct horse")
			convey.So(w.Code, convey.ShouldEqual, http.StatusInternalServerError)
			convey.So(backend.attempts, convey.ShouldResemble, []bool{true})
		})
	})
}
