package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/attendance"
	"github.com/riverside-fc/backend/internal/auth"
	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/internal/ratelimit"
	"github.com/riverside-fc/backend/pkg/response"
	"github.com/riverside-fc/backend/pkg/storage"
)

// Store is the event persistence used by the handler.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, eventType models.EventType) ([]models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// ImageStore keeps uploaded event images.
type ImageStore interface {
	UploadImage(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	DeleteImageByURL(ctx context.Context, url string) error
}

// EventRequest is the body for POST and PUT /admin/events.
type EventRequest struct {
	Title     string           `json:"title"`
	EventType models.EventType `json:"event_type" binding:"required"`
	Location  string           `json:"location"`
	StartDate string           `json:"start_date" binding:"required"` // 2006-01-02
	StartTime string           `json:"start_time"`                    // 15:04
	Coaches   []string         `json:"coaches"`
	KitColor  *string          `json:"kit_color"`
	ImageURL  string           `json:"image_url"`
}

// apply validates req and copies it onto e.
func (req *EventRequest) apply(e *models.Event) error {
	if !req.EventType.Valid() {
		return errors.New("event_type must be tournament or training")
	}
	date, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return errors.New("start_date must be YYYY-MM-DD")
	}
	startTime := strings.TrimSpace(req.StartTime)
	if startTime != "" {
		if _, err := time.Parse("15:04", startTime); err != nil {
			return errors.New("start_time must be HH:MM")
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle(req.EventType, date)
	}
	if title == "" {
		return errors.New("title is required")
	}
	e.Title = title
	e.EventType = req.EventType
	e.Location = strings.TrimSpace(req.Location)
	e.StartDate = date
	e.StartTime = startTime
	e.Coach = joinCoaches(req.Coaches)
	e.KitColor = optional(req.KitColor)
	e.ImageURL = strings.TrimSpace(req.ImageURL)
	return nil
}

// Handler serves the admin event endpoints.
type Handler struct {
	repo       Store
	attendance *attendance.Service
	images     ImageStore
	logger     *zap.Logger
}

// NewHandler creates an events handler. images may be nil when uploads are disabled.
func NewHandler(repo Store, svc *attendance.Service, images ImageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, attendance: svc, images: images, logger: logger}
}

// Register mounts the admin routes; rg must already require a JWT.
func (h *Handler) Register(rg gin.IRoutes) {
	rg.GET("/events", h.List)
	rg.POST("/events", h.Create)
	rg.POST("/events/images", h.UploadImage)
	rg.GET("/events/:id", h.GetByID)
	rg.PUT("/events/:id", h.Update)
	rg.DELETE("/events/:id", h.Delete)
	rg.POST("/events/:id/attendance-link", h.IssueLink)
	rg.GET("/events/:id/attendance", h.Attendance)
	rg.GET("/events/:id/attendance/export.txt", h.ExportText)
	rg.GET("/events/:id/attendance/export.csv", h.ExportCSV)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /admin/events. Query ?type= filters by event type.
func (h *Handler) List(c *gin.Context) {
	eventType := models.EventType(c.Query("type"))
	if eventType != "" && !eventType.Valid() {
		response.BadRequest(c, "invalid type")
		return
	}
	list, err := h.repo.List(c.Request.Context(), eventType)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /admin/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, e)
}

// Create handles POST /admin/events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := &models.Event{}
	if err := req.apply(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Update handles PUT /admin/events/:id. A replaced image is removed from storage.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	e, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	oldImage := e.ImageURL
	if err := req.apply(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Update(ctx, e); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	if oldImage != "" && oldImage != e.ImageURL {
		h.deleteImage(ctx, oldImage)
	}
	response.OK(c, e)
}

// Delete handles DELETE /admin/events/:id. Attendance records go with the
// event; the image is removed from storage afterwards.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	if e.ImageURL != "" {
		h.deleteImage(c.Request.Context(), e.ImageURL)
	}
	response.NoContent(c)
}

func (h *Handler) deleteImage(ctx context.Context, url string) {
	if h.images == nil {
		return
	}
	if err := h.images.DeleteImageByURL(ctx, url); err != nil {
		h.logger.Warn("delete event image failed", zap.String("url", url), zap.Error(err))
	}
}

// UploadImage handles POST /admin/events/images (multipart field "file",
// optional form field "event_id"). Returns the public URL.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.Fail(c, http.StatusServiceUnavailable, "image uploads are not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxImageSize {
		response.BadRequest(c, fmt.Sprintf("image must be at most %d MB", storage.MaxImageSize>>20))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType, fh.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	if _, known := storage.AllowedImageTypes[strings.ToLower(contentType)]; !known {
		contentType = storage.ContentTypeForFilename(fh.Filename)
	}
	eventID := c.PostForm("event_id")
	if eventID != "" {
		if _, err := uuid.Parse(eventID); err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	url, err := h.images.UploadImage(c.Request.Context(), storage.ImageKey(eventID, fh.Filename), contentType, f, fh.Size)
	if err != nil {
		h.logger.Error("upload event image failed", zap.Error(err))
		response.Internal(c, "failed to upload image")
		return
	}
	response.Created(c, gin.H{"url": url})
}

// IssueLink handles POST /admin/events/:id/attendance-link.
func (h *Handler) IssueLink(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	adminID := c.MustGet(auth.ContextAdminID).(uuid.UUID)
	link, err := h.attendance.IssueToken(c.Request.Context(), adminID.String(), id)
	var le *attendance.LimitError
	switch {
	case err == nil:
		response.Created(c, link)
	case errors.As(err, &le):
		response.TooManyRequests(c, le.Remaining, ratelimit.WaitMessage("link requests", le.Remaining))
	case errors.Is(err, attendance.ErrUnsupportedEventType):
		response.UnprocessableEntity(c, attendance.Message(err))
	default:
		h.notFoundOrInternal(c, err)
	}
}

// Attendance handles GET /admin/events/:id/attendance.
func (h *Handler) Attendance(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, records, err := h.attendance.Report(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	var link string
	if e.AttendanceToken != nil {
		link = h.attendance.ShareURL(*e.AttendanceToken)
	}
	response.OK(c, gin.H{
		"event":           e,
		"attendance_link": link,
		"report":          attendance.Aggregate(records),
	})
}

// ExportText handles GET /admin/events/:id/attendance/export.txt.
func (h *Handler) ExportText(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, records, err := h.attendance.Report(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(attendance.ClipboardText(e, records)))
}

// ExportCSV handles GET /admin/events/:id/attendance/export.csv.
func (h *Handler) ExportCSV(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, records, err := h.attendance.Report(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	data, err := attendance.CSV(records, h.attendance.Location())
	if err != nil {
		h.logger.Error("render csv failed", zap.Error(err))
		response.Internal(c, "failed to export attendance")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attendance.CSVFilename(e.Title)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	h.logger.Error("event request failed", zap.Error(err), zap.String("path", c.FullPath()))
	response.Internal(c, "internal error")
}
