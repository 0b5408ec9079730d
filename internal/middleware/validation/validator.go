package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	// Word boundaries keep Portuguese words like "alteração" from matching.
	sqlInjectionPattern = regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop table|exec|script|javascript|onerror|onload)\b`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
)

type Config struct {
	MaxDescriptionLength int
	MaxKeywords          int
	AllowedContentTypes  []string
	Logger               *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxDescriptionLength == 0 {
		cfg.MaxDescriptionLength = 2000
	}
	if cfg.MaxKeywords == 0 {
		cfg.MaxKeywords = 10
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		if strings.Contains(c.Path(), "/api/v1/analyze") && c.Method() == "POST" {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			description, _ := req["description"].(string)
			if len(description) > cfg.MaxDescriptionLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Description exceeds maximum length",
				})
			}

			if containsSQLInjection(description) || containsXSS(description) {
				cfg.Logger.Warn("Rejected suspicious description",
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid description content",
				})
			}

			if keywords, ok := req["keywords"].([]interface{}); ok {
				if len(keywords) > cfg.MaxKeywords {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Too many keywords",
					})
				}
				for _, kw := range keywords {
					keyword, ok := kw.(string)
					if !ok {
						return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
							"error": "Keywords must be strings",
						})
					}
					if containsSQLInjection(keyword) || containsXSS(keyword) {
						cfg.Logger.Warn("Rejected suspicious keyword",
							zap.String("ip", c.IP()),
						)
						return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
							"error": "Invalid keyword content",
						})
					}
				}
			}
		}

		return c.Next()
	}
}

func containsSQLInjection(input string) bool {
	return sqlInjectionPattern.MatchString(input)
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}
