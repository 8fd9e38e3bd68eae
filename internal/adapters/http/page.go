package http

import (
	"bytes"
	"os"

	"github.com/gofiber/fiber/v2"
)

// APIKeyPlaceholder is replaced with the maps browser key when the page is served.
const APIKeyPlaceholder = "API_KEY_PLACEHOLDER"

// IndexHandler serves the map page with the maps API key injected.
func IndexHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := os.ReadFile(deps.IndexPath)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("read index page", "path", deps.IndexPath, "error", err)
			return errInternal(c, "map page not available")
		}

		page = bytes.ReplaceAll(page, []byte(APIKeyPlaceholder), []byte(deps.MapsAPIKey))

		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(page)
	}
}
