package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/marketlens/backend/internal/trends"
)

// TrendsSuggester resolves keyword suggestions for a partial search term.
type TrendsSuggester interface {
	Suggestions(ctx context.Context, keyword string) *trends.Suggestions
}

type KeywordsHandler struct {
	trends TrendsSuggester
}

func NewKeywordsHandler(suggester TrendsSuggester) *KeywordsHandler {
	return &KeywordsHandler{trends: suggester}
}

func (h *KeywordsHandler) SuggestKeywords(c *fiber.Ctx) error {
	keyword := c.Query("q")
	if keyword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'q' is required",
		})
	}

	result := h.trends.Suggestions(c.Context(), keyword)
	if result.Status != trends.StatusOK {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Suggestion service unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"keyword":     keyword,
		"suggestions": result.Suggestions,
	})
}
