// Package response writes the {success, data, error} envelope every endpoint returns.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the API response envelope. Data may accompany an error when the
// client needs structured detail, e.g. a closed voting window's boundary.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends 200 with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail sends an error status with a message and optional detail.
func Fail(c *gin.Context, status int, err string, data interface{}) {
	c.JSON(status, Body{Success: false, Data: data, Error: err})
}

// BadRequest sends 400 with an error message.
func BadRequest(c *gin.Context, err string) { Fail(c, http.StatusBadRequest, err, nil) }

// Unauthorized sends 401 with an error message.
func Unauthorized(c *gin.Context, err string) { Fail(c, http.StatusUnauthorized, err, nil) }

// Forbidden sends 403 with an error message.
func Forbidden(c *gin.Context, err string) { Fail(c, http.StatusForbidden, err, nil) }

// NotFound sends 404 with an error message.
func NotFound(c *gin.Context, err string) { Fail(c, http.StatusNotFound, err, nil) }

// Conflict sends 409 with an error message.
func Conflict(c *gin.Context, err string) { Fail(c, http.StatusConflict, err, nil) }

// ServiceUnavailable sends 503 with an error message.
func ServiceUnavailable(c *gin.Context, err string) { Fail(c, http.StatusServiceUnavailable, err, nil) }

// Internal sends 500 with an error message.
func Internal(c *gin.Context, err string) { Fail(c, http.StatusInternalServerError, err, nil) }
