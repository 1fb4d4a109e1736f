// Package response writes the JSON envelope shared by every API route.
package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail sends an error envelope with the given status.
func Fail(c *gin.Context, status int, err string) {
	c.JSON(status, Body{Success: false, Error: err})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	Fail(c, http.StatusBadRequest, err)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	Fail(c, http.StatusUnauthorized, err)
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	Fail(c, http.StatusNotFound, err)
}

// Gone sends 410; used for expired attendance links.
func Gone(c *gin.Context, err string) {
	Fail(c, http.StatusGone, err)
}

// UnprocessableEntity sends 422.
func UnprocessableEntity(c *gin.Context, err string) {
	Fail(c, http.StatusUnprocessableEntity, err)
}

// TooManyRequests sends 429 with a Retry-After header rounded up to whole seconds.
func TooManyRequests(c *gin.Context, retryAfter time.Duration, err string) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	Fail(c, http.StatusTooManyRequests, err)
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	Fail(c, http.StatusInternalServerError, err)
}
