package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-orchestrator/internal/api/dto"
	"github.com/cuongbtq/content-orchestrator/internal/api/httperr"
	"github.com/cuongbtq/content-orchestrator/internal/distribution"
)

// DistributionHandler handles scheduling requests and post lookups
type DistributionHandler struct {
	logger       *slog.Logger
	distribution DistributionService
	peakHours    PeakHoursService
}

// NewDistributionHandler creates a new DistributionHandler instance
func NewDistributionHandler(deps *Dependencies) *DistributionHandler {
	return &DistributionHandler{
		logger:       deps.Logger,
		distribution: deps.Distribution,
		peakHours:    deps.PeakHours,
	}
}

// Schedule handles POST /api/v1/distributions
func (h *DistributionHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request body", nil)
		return
	}

	posts, err := h.distribution.Schedule(c.Request.Context(), distribution.ScheduleRequest{
		ContentID: req.ContentID,
		UserID:    req.UserID,
		Platforms: req.Platforms,
		Regions:   req.Regions,
	})
	if err != nil {
		httperr.Abort(c, err, "Failed to schedule posts")
		return
	}

	out, err := dto.FromPosts(posts)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to encode posts", nil)
		return
	}
	c.JSON(http.StatusCreated, dto.PostsResponse{ContentID: req.ContentID, Posts: out})
}

// ListPosts handles GET /api/v1/distributions/:content_id/posts
func (h *DistributionHandler) ListPosts(c *gin.Context) {
	contentID := c.Param("content_id")

	posts, err := h.distribution.Posts(c.Request.Context(), contentID)
	if err != nil {
		httperr.Abort(c, err, "Failed to list posts")
		return
	}

	out, err := dto.FromPosts(posts)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to encode posts", nil)
		return
	}
	c.JSON(http.StatusOK, dto.PostsResponse{ContentID: contentID, Posts: out})
}

// PeakHours handles GET /api/v1/peak-hours/:region/:platform
func (h *DistributionHandler) PeakHours(c *gin.Context) {
	region, platform := c.Param("region"), c.Param("platform")

	slots, err := h.peakHours.Analyze(c.Request.Context(), region, platform)
	if err != nil {
		httperr.Abort(c, err, "Failed to analyze peak hours")
		return
	}

	resp, err := dto.FromSlots(region, platform, slots)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to encode slots", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}
