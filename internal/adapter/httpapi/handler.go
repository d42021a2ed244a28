// Package httpapi exposes the registration use case over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobrelay/internal/adapter/curl"
	"jobrelay/internal/adapter/scheduler"
	"jobrelay/internal/domain/job"
	"jobrelay/internal/shared"
	"jobrelay/internal/usecase/registration"
)

// Service is the use case surface served by the API.
type Service interface {
	Register(ctx context.Context, reg registration.Registration) (registration.Result, error)
	Cancel(jobID string) error
	Logs(jobID string) []job.Entry
	Jobs() []scheduler.JobInfo
	History(ctx context.Context, jobID string, limit int) ([]job.ArchivedEntry, error)
}

type requestDTO struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Cookies string            `json:"cookies"`
	Data    *string           `json:"data"`
	Title   string            `json:"title" binding:"max=200"`
	Curl    string            `json:"curl"`
}

type registerDTO struct {
	Requests      []requestDTO `json:"requests" binding:"required,min=1,dive"`
	ScheduledTime *string      `json:"scheduledTime"`
	RetryInterval *int         `json:"retryInterval" binding:"omitempty,gte=0,lte=9223372036"`
	RetryCount    *int         `json:"retryCount" binding:"omitempty,gte=0"`
}

// toRequest builds a job request; a curl command, when present, supplies the
// base fields and explicit fields override it. Without curl the body must be
// present, though it may be empty.
func (d requestDTO) toRequest(i int) (job.Request, error) {
	if d.Curl == "" {
		if d.Data == nil {
			return job.Request{}, shared.Wrapf(shared.ErrValidation, "requests[%d].data: is required", i)
		}
		return job.Request{URL: d.URL, Headers: d.Headers, Cookies: d.Cookies, Body: *d.Data, Title: d.Title}, nil
	}
	parsed, err := curl.Parse(d.Curl)
	if err != nil {
		return job.Request{}, shared.Wrapf(err, "requests[%d]", i)
	}
	if d.URL != "" {
		parsed.URL = d.URL
	}
	maps.Copy(parsed.Headers, d.Headers)
	if d.Cookies != "" {
		parsed.Cookies = d.Cookies
	}
	if d.Data != nil && *d.Data != "" {
		parsed.Body = *d.Data
	}
	parsed.Title = d.Title
	return parsed, nil
}

// Handler serves the job API.
type Handler struct {
	svc Service
	log *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log.With("component", "httpapi")}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	api := r.Group("/api")
	{
		api.POST("/register", h.Register)
		api.DELETE("/register", h.Cancel)
		api.GET("/logs", h.Logs)
		api.GET("/jobs", h.Jobs)
		api.GET("/history", h.History)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := shared.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var in registerDTO
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	reg := registration.Registration{RetryInterval: in.RetryInterval, RetryCount: in.RetryCount}
	if in.ScheduledTime != nil {
		reg.ScheduledTime = *in.ScheduledTime
	}
	for i, d := range in.Requests {
		req, err := d.toRequest(i)
		if err != nil {
			h.fail(c, err)
			return
		}
		reg.Requests = append(reg.Requests, req)
	}

	res, err := h.svc.Register(c.Request.Context(), reg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /api/register?requestId=.
func (h *Handler) Cancel(c *gin.Context) {
	id := c.Query("requestId")
	if err := h.svc.Cancel(id); err != nil {
		if shared.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No job found for this requestId"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Scheduled job stopped successfully"})
}

// Logs handles GET /api/logs[?requestId=].
func (h *Handler) Logs(c *gin.Context) {
	logs := h.svc.Logs(c.Query("requestId"))
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs, "count": len(logs)})
}

// Jobs handles GET /api/jobs.
func (h *Handler) Jobs(c *gin.Context) {
	jobs := h.svc.Jobs()
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": jobs, "count": len(jobs)})
}

// History handles GET /api/history?requestId=&limit=.
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.fail(c, shared.Wrap(shared.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	rows, err := h.svc.History(c.Request.Context(), c.Query("requestId"), limit)
	if err != nil {
		if errors.Is(err, shared.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "history archive is not configured"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "entries": rows, "count": len(rows)})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
