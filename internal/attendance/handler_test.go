package attendance

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smartystreets/goconvey/convey"

	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/pkg/response"
)

func newTestRouter(env *testEnv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(env.svc, nil).Register(r)
	return r
}

func doJSON(r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Body) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHandler(t *testing.T) {
	convey.Convey("Given the public check-in routes", t, func() {
		training := trainingEvent("tok")
		expired := trainingEvent("old")
		cup := trainingEvent("cup")
		cup.EventType = models.EventTypeTournament
		env := newTestEnv(true, training, expired, cup)
		past := env.now.Add(-time.Hour)
		expired.TokenExpiresAt = &past
		r := newTestRouter(env)

		convey.Convey("GET with a valid token returns the form data", func() {
			w, body := doJSON(r, http.MethodGet, "/attendance?token=tok", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(body.Success, convey.ShouldBeTrue)
			data := body.Data.(map[string]any)
			convey.So(data["require_age_bracket"], convey.ShouldEqual, true)
			convey.So(data["event"].(map[string]any)["start_date"], convey.ShouldEqual, "2026-01-17")
		})

		convey.Convey("Each unavailable cause has its own status", func() {
			w, body := doJSON(r, http.MethodGet, "/attendance", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(body.Error, convey.ShouldEqual, "Invalid link")

			w, _ = doJSON(r, http.MethodGet, "/attendance/unknown", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)

			w, _ = doJSON(r, http.MethodGet, "/attendance/old", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusGone)

			w, _ = doJSON(r, http.MethodGet, "/attendance/cup", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnprocessableEntity)
		})

		convey.Convey("POST stores a check-in", func() {
			w, body := doJSON(r, http.MethodPost, "/attendance/tok", CheckInRequest{AttendeeName: " Ana ", AgeBracket: "U5"})
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(body.Data.(map[string]any)["attendee_name"], convey.ShouldEqual, "Ana")
			convey.So(env.records.records, convey.ShouldHaveLength, 1)
		})

		convey.Convey("POST without a name is a validation error", func() {
			w, body := doJSON(r, http.MethodPost, "/attendance?token=tok", CheckInRequest{AgeBracket: "U5"})
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(body.Error, convey.ShouldEqual, "Please enter your name")
		})

		convey.Convey("The fourth POST from one client is rate limited", func() {
			req := CheckInRequest{AttendeeName: "Ana", AgeBracket: "U5"}
			for i := 0; i < 3; i++ {
				w, _ := doJSON(r, http.MethodPost, "/attendance/tok", req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			}
			w, _ := doJSON(r, http.MethodPost, "/attendance/tok", req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusTooManyRequests)
			convey.So(w.Header().Get("Retry-After"), convey.ShouldEqual, "600")
		})

		convey.Convey("The roster groups check-ins by bracket", func() {
			doJSON(r, http.MethodPost, "/attendance/tok", CheckInRequest{AttendeeName: "Ana", AgeBracket: "U5"})
			w, body := doJSON(r, http.MethodGet, "/events/"+training.ID.String()+"/attendance", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			report := body.Data.(map[string]any)["report"].(map[string]any)
			convey.So(report["total"], convey.ShouldEqual, float64(1))
			convey.So(report["groups"], convey.ShouldHaveLength, 4)
		})
	})
}
