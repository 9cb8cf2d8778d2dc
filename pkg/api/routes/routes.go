package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitlive/pkg/simulator"
)

func RoutesRouter(router fiber.Router, engine *simulator.Engine) {
	router.Get("/:identifier/vehicle", getRouteVehicle(engine))
}

func getRouteVehicle(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		position, err := engine.VehicleForRoute(c.UserContext(), identifier)
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, position)
	}
}
