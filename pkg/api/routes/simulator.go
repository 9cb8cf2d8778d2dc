package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitlive/pkg/simulator"
)

func SimulatorRouter(router fiber.Router, engine *simulator.Engine) {
	router.Post("/reinitialize", reinitializeSimulator(engine))
}

func reinitializeSimulator(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := engine.Reinitialize(c.UserContext()); err != nil {
			c.SendStatus(fiber.StatusServiceUnavailable)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		snapshot, err := engine.Snapshot(c.UserContext())
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(fiber.Map{
			"routes":      len(snapshot.Routes),
			"vehicles":    len(snapshot.Vehicles),
			"predictions": len(snapshot.Predictions),
		})
	}
}
