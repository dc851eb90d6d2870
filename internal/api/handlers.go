package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/config"
	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/ingest"
	"github.com/RishiKendai/matchcode/internal/matching"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxScanBytes bounds a match request body.
const maxScanBytes = 256 << 20

// IndexQueue accepts index requests for asynchronous processing.
type IndexQueue interface {
	Enqueue(ctx context.Context, req *models.IndexRequest) (string, error)
}

// StatusStore records and reports indexing steps.
type StatusStore interface {
	UpdateStatus(ctx context.Context, packageID string, step models.Step) error
	GetStatus(ctx context.Context, packageID string) (models.Step, error)
}

// Handler holds dependencies for handlers
type Handler struct {
	cfg        *config.Config
	registry   *index.Registry
	workerPool *matching.WorkerPool
	queue      IndexQueue
	status     StatusStore
}

// NewHandler creates a new handler
func NewHandler(
	cfg *config.Config,
	registry *index.Registry,
	workerPool *matching.WorkerPool,
	queue IndexQueue,
	status StatusStore,
) *Handler {
	return &Handler{
		cfg:        cfg,
		registry:   registry,
		workerPool: workerPool,
		queue:      queue,
		status:     status,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Match annotates the posted scan with matching packages. The optional
// tiers query parameter is a comma separated list of match types; origin
// names the package the scan belongs to.
func (h *Handler) Match(c *gin.Context) {
	opts, err := matchOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TIER",
		})
		return
	}

	cb, err := codebase.Load(http.MaxBytesReader(c.Writer, c.Request.Body, maxScanBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_SCAN",
		})
		return
	}

	ctx := c.Request.Context()
	results, err := matching.NewMatcher(h.registry, h.workerPool, opts...).Match(ctx, cb)
	if errors.Is(err, fingerprint.ErrMalformed) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "MALFORMED_FINGERPRINT",
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Int("resources", cb.Len()).Msg("Failed to match codebase")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to match codebase",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, models.MatchResponse{
		Results: results.Resources(cb),
	})
}

func matchOptions(c *gin.Context) ([]matching.Option, error) {
	var opts []matching.Option
	if raw := c.Query("tiers"); raw != "" {
		var kinds []models.IndexKind
		for _, name := range strings.Split(raw, ",") {
			kind, ok := models.KindByMatchType(strings.TrimSpace(name))
			if !ok {
				return nil, fmt.Errorf("unknown tier %q", name)
			}
			kinds = append(kinds, kind)
		}
		opts = append(opts, matching.WithTiers(kinds...))
	}
	if origin := c.Query("origin"); origin != "" {
		opts = append(opts, matching.WithOrigin(origin))
	}
	return opts, nil
}

// Index queues a package for indexing and returns 202 Accepted.
func (h *Handler) Index(c *gin.Context) {
	var req models.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := ingest.Prepare(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx := c.Request.Context()
	if err := h.status.UpdateStatus(ctx, req.Package.ID, models.StepQueued); err != nil {
		log.Warn().Err(err).Str("package_id", req.Package.ID).Msg("Failed to update queued status")
	}
	messageID, err := h.queue.Enqueue(ctx, &req)
	if err != nil {
		log.Error().Err(err).Str("package_id", req.Package.ID).Msg("Failed to enqueue index request")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to enqueue index request",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	log.Debug().
		Str("package_id", req.Package.ID).
		Str("message_id", messageID).
		Msg("Index request queued")

	c.JSON(http.StatusAccepted, models.IndexResponse{
		Step:      models.StepQueued,
		PackageID: req.Package.ID,
	})
}

func (h *Handler) IndexStatus(c *gin.Context) {
	id := c.Param("id")
	step, err := h.status.GetStatus(c.Request.Context(), id)
	if errors.Is(err, ingest.ErrStatusNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "No index request found for package",
			Code:  "STATUS_NOT_FOUND",
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("package_id", id).Msg("Failed to read index status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to read index status",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, models.IndexStatusResponse{PackageID: id, Step: step})
}

func (h *Handler) GetPackage(c *gin.Context) {
	id := c.Param("id")
	pkg, err := h.registry.Store().GetPackage(c.Request.Context(), id)
	if errors.Is(err, index.ErrPackageNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Package not found",
			Code:  "PACKAGE_NOT_FOUND",
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("package_id", id).Msg("Failed to load package")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load package",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"package": pkg,
		"purl":    pkg.PackageURL(),
	})
}

// DeletePackage removes a package and every index entry it owns.
func (h *Handler) DeletePackage(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.registry.Store().DeletePackage(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("package_id", id).Msg("Failed to delete package")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to delete package",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Package not found",
			Code:  "PACKAGE_NOT_FOUND",
		})
		return
	}
	c.Status(http.StatusNoContent)
}
