package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitlive/pkg/gtfsrt"
	"github.com/travigo/transitlive/pkg/simulator"
)

func GTFSRealtimeRouter(router fiber.Router, engine *simulator.Engine, feedCache *gtfsrt.FeedCache) {
	router.Get("/:feed", getGTFSRealtimeFeed(engine, feedCache))
}

func getGTFSRealtimeFeed(engine *simulator.Engine, feedCache *gtfsrt.FeedCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		feed := gtfsrt.Feed(c.Params("feed"))
		asJSON := c.Query("format") == "json"
		ctx := c.UserContext()

		body, err := feedCache.GetOrRender(ctx, feed, asJSON, func() ([]byte, error) {
			snapshot, err := engine.Snapshot(ctx)
			if err != nil {
				return nil, err
			}

			message, err := gtfsrt.Build(feed, snapshot)
			if err != nil {
				return nil, err
			}

			return gtfsrt.Render(message, asJSON)
		})
		if errors.Is(err, gtfsrt.ErrUnknownFeed) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		} else if err != nil {
			return sendError(c, err)
		}

		if asJSON {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		} else {
			c.Set(fiber.HeaderContentType, "application/x-protobuf")
		}

		return c.Send(body)
	}
}
