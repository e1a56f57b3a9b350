package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propure/server/config"
	"propure/server/internal/database"
	"propure/server/internal/geometry"
	"propure/server/internal/models"
	"propure/server/internal/scheduler"
)

type Store interface {
	ListSuburbMetrics(ctx context.Context) ([]models.SuburbMetrics, error)
	GetSuburbMetrics(ctx context.Context, postcode string) (*models.SuburbMetrics, error)
	ListLocations(ctx context.Context) ([]models.ScrapeLocation, error)
	UpsertLocation(ctx context.Context, loc models.ScrapeLocation) (*models.ScrapeLocation, error)
}

// Runner executes workflow runs. The scheduler implements it so triggered
// and scheduled runs never overlap.
type Runner interface {
	RunListingSync(ctx context.Context) (*models.SyncRunResult, error)
	RunSuburbMetrics(ctx context.Context, locations []models.ScrapeLocation) (*models.SuburbRunResult, error)
	RunDemographicsSync(ctx context.Context) (*models.DemographicsRunResult, error)
}

type MessageSender interface {
	Enabled() bool
	SendMessage(ctx context.Context, message string) error
}

type Handler struct {
	store    Store
	runner   Runner
	jobs     *JobRegistry
	notifier MessageSender
	logger   *logrus.Logger
}

type SuburbMetricsRequest struct {
	Locations []models.ScrapeLocation `json:"locations"`
}

func NewHandler(store Store, runner Runner, jobs *JobRegistry, notifier MessageSender, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	if jobs == nil {
		jobs = NewJobRegistry(logger)
	}
	return &Handler{
		store:    store,
		runner:   runner,
		jobs:     jobs,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListSuburbMetrics returns all stored metrics, optionally filtered by ?state=.
func (h *Handler) ListSuburbMetrics(c *gin.Context) {
	metrics, err := h.filteredMetrics(c)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get suburb metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suburb metrics"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *Handler) GetSuburbMetrics(c *gin.Context) {
	postcode := c.Param("postcode")
	metrics, err := h.store.GetSuburbMetrics(c.Request.Context(), postcode)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No metrics for postcode " + postcode})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("postcode", postcode).Error("Failed to get suburb metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suburb metrics"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetSuburbGeoJSON renders stored metrics as a GeoJSON feature collection.
func (h *Handler) GetSuburbGeoJSON(c *gin.Context) {
	metrics, err := h.filteredMetrics(c)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get suburb metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suburb metrics"})
		return
	}
	c.JSON(http.StatusOK, geometry.FeatureCollection(metrics))
}

func (h *Handler) filteredMetrics(c *gin.Context) ([]models.SuburbMetrics, error) {
	metrics, err := h.store.ListSuburbMetrics(c.Request.Context())
	if err != nil {
		return nil, err
	}
	state := c.Query("state")
	if state == "" {
		return metrics, nil
	}
	state = config.NormalizeState(state)
	filtered := make([]models.SuburbMetrics, 0, len(metrics))
	for _, m := range metrics {
		if config.NormalizeState(m.State) == state {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

func (h *Handler) ListStates(c *gin.Context) {
	c.JSON(http.StatusOK, config.SupportedStates)
}

func (h *Handler) ListLocations(c *gin.Context) {
	locations, err := h.store.ListLocations(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get locations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get locations"})
		return
	}
	c.JSON(http.StatusOK, locations)
}

func (h *Handler) CreateLocation(c *gin.Context) {
	var loc models.ScrapeLocation
	if err := c.ShouldBindJSON(&loc); err != nil {
		h.logger.WithError(err).Error("Failed to parse location")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}
	loc.Suburb = strings.TrimSpace(loc.Suburb)
	loc.State = config.NormalizeState(loc.State)
	loc.Postcode = strings.TrimSpace(loc.Postcode)
	loc.Status = ""
	if config.GetStateByCode(loc.State) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown state " + loc.State})
		return
	}

	stored, err := h.store.UpsertLocation(c.Request.Context(), loc)
	if err != nil {
		h.logger.WithError(err).Error("Failed to save location")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save location"})
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// RunSuburbMetrics starts a metrics run in the background. Without a body it
// covers every stored location.
func (h *Handler) RunSuburbMetrics(c *gin.Context) {
	var req SuburbMetricsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.WithError(err).Error("Failed to parse suburb metrics request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
			return
		}
	}
	for _, loc := range req.Locations {
		if loc.Suburb == "" || loc.State == "" || loc.Postcode == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Every location needs suburb, state and postcode"})
			return
		}
	}

	job := h.jobs.Start(scheduler.JobTypeSuburbMetrics.String(), func(ctx context.Context) (interface{}, error) {
		return h.runner.RunSuburbMetrics(ctx, req.Locations)
	})
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) RunListingSync(c *gin.Context) {
	job := h.jobs.Start(scheduler.JobTypeListingSync.String(), func(ctx context.Context) (interface{}, error) {
		return h.runner.RunListingSync(ctx)
	})
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) RunDemographicsSync(c *gin.Context) {
	job := h.jobs.Start(scheduler.JobTypeDemographicsSync.String(), func(ctx context.Context) (interface{}, error) {
		return h.runner.RunDemographicsSync(ctx)
	})
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// TestNotification sends a test message through the configured notifier.
func (h *Handler) TestNotification(c *gin.Context) {
	if h.notifier == nil || !h.notifier.Enabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Telegram is not configured"})
		return
	}

	testMessage := "🔔 Test notification from Propure\n\nIf you see this message, your Telegram configuration is working correctly!"
	if err := h.notifier.SendMessage(c.Request.Context(), testMessage); err != nil {
		h.logger.WithError(err).Error("Failed to send test notification")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent successfully"})
}
