package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/etl"
	"github.com/marketlens/backend/internal/storage/sqlite"
	"github.com/marketlens/backend/pkg/logger"
)

type AnalyzeHandler struct {
	orchestrator *etl.Orchestrator
	store        *sqlite.Client
}

func NewAnalyzeHandler(orchestrator *etl.Orchestrator, store *sqlite.Client) *AnalyzeHandler {
	return &AnalyzeHandler{
		orchestrator: orchestrator,
		store:        store,
	}
}

func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req etl.Request

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Description == "" && len(req.Keywords) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Description or keywords are required",
		})
	}

	out, err := h.orchestrator.Analyze(c.Context(), req)
	if err != nil {
		logger.Error("Analysis failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run analysis",
		})
	}

	return c.JSON(out)
}

func (h *AnalyzeHandler) ListAnalyses(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "History storage not configured",
		})
	}

	limit := c.QueryInt("limit", 20)
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		logger.Error("Failed to list analyses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list analyses",
		})
	}

	return c.JSON(fiber.Map{
		"analyses": runs,
		"count":    len(runs),
	})
}

func (h *AnalyzeHandler) GetAnalysis(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "History storage not configured",
		})
	}

	id := c.Params("id")
	run, err := h.store.GetRun(id)
	if err != nil {
		logger.Warn("Analysis run not found", zap.String("run_id", id), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Analysis not found",
		})
	}

	var output json.RawMessage
	if run.Output != "" {
		output = json.RawMessage(run.Output)
	}

	return c.JSON(fiber.Map{
		"id":              run.ID,
		"description":     run.Description,
		"keywords":        run.Keywords,
		"location":        run.Location,
		"status":          run.Status,
		"segment_count":   run.SegmentCount,
		"article_count":   run.ArticleCount,
		"processing_time": run.ProcessingTime,
		"created_at":      run.CreatedAt.Unix(),
		"output":          output,
	})
}
