package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semmidev/keepsake/internal/adapter/source"
	"github.com/semmidev/keepsake/internal/config"
	"github.com/semmidev/keepsake/internal/domain"
	"github.com/semmidev/keepsake/internal/usecase"
)

// SourceHTTP marks records of backups created through the API.
const SourceHTTP = "http"

// Backups is the service contract the API needs.
type Backups interface {
	Backup(ctx context.Context, source string, data any) (id, name string, err error)
	Restore(ctx context.Context, name string) (restored string, data any, err error)
	Delete(ctx context.Context, name string) error
	Artifacts(ctx context.Context, filter string) ([]domain.Artifact, error)
	Record(ctx context.Context, id string) (domain.Record, error)
	Records(ctx context.Context) ([]domain.Record, error)
	RegisterSchedule(expr string, src domain.Source) (int, error)
	CancelSchedule(id int) error
	Schedules() []usecase.Registration
}

// SourceFactory builds a payload source from its config description.
type SourceFactory func(ctx context.Context, cfg config.SourceConfig) (domain.Source, error)

type handler struct {
	backups Backups
	sources SourceFactory
	logger  usecase.Logger
	started time.Time
}

func NewRouter(backups Backups, registry *prometheus.Registry, logger usecase.Logger, sources SourceFactory) *gin.Engine {
	h := &handler{
		backups: backups,
		sources: sources,
		logger:  logger,
		started: time.Now(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.POST("/backups", h.createBackup)
	r.GET("/backups", h.listBackups)
	r.DELETE("/backups/:name", h.deleteBackup)
	r.POST("/backups/:name/restore", h.restoreBackup)

	r.POST("/backup", h.legacyBackup)
	r.POST("/restore", h.legacyRestore)

	r.GET("/schedules", h.listSchedules)
	r.POST("/schedules", h.createSchedule)
	r.DELETE("/schedules/:id", h.cancelSchedule)

	r.GET("/records", h.listRecords)
	r.GET("/records/:id", h.getRecord)

	return r
}

func (h *handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

type artifactResponse struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *handler) createBackup(c *gin.Context) {
	data, ok := h.readJSON(c)
	if !ok {
		return
	}

	id, name, err := h.backups.Backup(c.Request.Context(), SourceHTTP, data)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": id, "name": name})
	case errors.Is(err, domain.ErrCleanup):
		c.JSON(http.StatusCreated, gin.H{"id": id, "name": name, "warning": err.Error()})
	default:
		h.fail(c, err)
	}
}

func (h *handler) listBackups(c *gin.Context) {
	artifacts, err := h.backups.Artifacts(c.Request.Context(), c.Query("filter"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]artifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, artifactResponse{
			Name:       a.Name,
			Size:       a.Size,
			Compressed: a.Compressed,
			CreatedAt:  a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"backups": resp})
}

func (h *handler) deleteBackup(c *gin.Context) {
	if err := h.backups.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) restoreBackup(c *gin.Context) {
	restored, data, err := h.backups.Restore(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored, "data": data})
}

func (h *handler) legacyBackup(c *gin.Context) {
	data, ok := h.readJSON(c)
	if !ok {
		return
	}

	_, name, err := h.backups.Backup(c.Request.Context(), SourceHTTP, data)
	if err != nil && !errors.Is(err, domain.ErrCleanup) {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Backup created successfully", "filename": name})
}

func (h *handler) legacyRestore(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(readBody(c), &req); err != nil || req.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Filename is required"})
		return
	}

	_, data, err := h.backups.Restore(c.Request.Context(), req.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Data restored successfully", "data": data})
}

func (h *handler) listSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"schedules": h.backups.Schedules()})
}

type scheduleRequest struct {
	Cron   string               `json:"cron"`
	Data   any                  `json:"data"`
	Source *config.SourceConfig `json:"source"`
}

func (h *handler) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := usecase.DecodeJSON(bytes.NewReader(readBody(c)), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Cron == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cron is required"})
		return
	}

	var src domain.Source
	switch {
	case req.Source != nil:
		if h.sources == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload sources are not available"})
			return
		}
		s, err := h.sources(c.Request.Context(), *req.Source)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src = s
	case req.Data != nil:
		src = source.NewInline(req.Data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either data or source is required"})
		return
	}

	id, err := h.backups.RegisterSchedule(req.Cron, src)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handler) cancelSchedule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}
	if err := h.backups.CancelSchedule(id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listRecords(c *gin.Context) {
	records, err := h.backups.Records(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *handler) getRecord(c *gin.Context) {
	rec, err := h.backups.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// readJSON decodes the request body, keeping numbers as sent.
func (h *handler) readJSON(c *gin.Context) (any, bool) {
	raw := readBody(c)
	if len(bytes.TrimSpace(raw)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body is required"})
		return nil, false
	}

	var data any
	if err := usecase.DecodeJSON(bytes.NewReader(raw), &data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return nil, false
	}
	return data, true
}

func readBody(c *gin.Context) []byte {
	raw, err := c.GetRawData()
	if err != nil {
		return nil
	}
	return raw
}

func (h *handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(domain.KindOf(err))})
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
