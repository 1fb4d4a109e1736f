package attendance

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/pkg/response"
)

// CheckInRequest is the body for POST /attendance.
type CheckInRequest struct {
	AttendeeName string `json:"attendee_name"`
	AgeBracket   string `json:"age_bracket"`
}

// FormResponse is what the check-in page needs to render its form.
type FormResponse struct {
	Event             models.PublicEvent  `json:"event"`
	AgeBrackets       []models.AgeBracket `json:"age_brackets"`
	RequireAgeBracket bool                `json:"require_age_bracket"`
}

// Handler serves the public check-in endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/attendance", h.Show)
	r.GET("/attendance/:token", h.Show)
	r.POST("/attendance", h.CheckIn)
	r.POST("/attendance/:token", h.CheckIn)
	r.GET("/events/:id/attendance", h.Roster)
}

func tokenParam(c *gin.Context) string {
	if t := c.Param("token"); t != "" {
		return t
	}
	return c.Query("token")
}

// Show handles GET /attendance?token= and GET /attendance/:token.
func (h *Handler) Show(c *gin.Context) {
	event, err := h.svc.Resolve(c.Request.Context(), tokenParam(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, FormResponse{
		Event:             event.ToPublic(),
		AgeBrackets:       models.AgeBrackets,
		RequireAgeBracket: h.svc.RequireAgeBracket(),
	})
}

// CheckIn handles POST /attendance?token= and POST /attendance/:token.
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rec, err := h.svc.CheckIn(c.Request.Context(), c.ClientIP(), tokenParam(c), req.AttendeeName, req.AgeBracket)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, rec)
}

// Roster handles GET /events/:id/attendance, the public bracket view of a
// training's check-ins.
func (h *Handler) Roster(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, records, err := h.svc.Report(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("load roster failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to load attendance")
		return
	}
	if !event.AcceptsAttendance() {
		response.UnprocessableEntity(c, Message(ErrUnsupportedEventType))
		return
	}
	response.OK(c, gin.H{"event": event.ToPublic(), "report": Aggregate(records)})
}

// writeError maps service errors to the response envelope.
func (h *Handler) writeError(c *gin.Context, err error) {
	var le *LimitError
	switch {
	case errors.As(err, &le):
		response.TooManyRequests(c, le.Remaining, Message(err))
	case errors.Is(err, ErrInvalidLink),
		errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrAgeBracketRequired),
		errors.Is(err, ErrInvalidAgeBracket):
		response.BadRequest(c, Message(err))
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(c, Message(err))
	case errors.Is(err, ErrLinkExpired):
		response.Gone(c, Message(err))
	case errors.Is(err, ErrUnsupportedEventType):
		response.UnprocessableEntity(c, Message(err))
	default:
		h.logger.Error("attendance request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Fail(c, http.StatusInternalServerError, Message(err))
	}
}
