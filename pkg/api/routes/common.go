package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/travigo/transitlive/pkg/simulator"
)

// responseGroups picks the sheriff groups for a request, ?detail=true adds the detailed fields
func responseGroups(c *fiber.Ctx) []string {
	if c.QueryBool("detail", false) {
		return []string{"basic", "detailed"}
	}
	return []string{"basic"}
}

func reduce(c *fiber.Ctx, value interface{}) (interface{}, error) {
	return sheriff.Marshal(&sheriff.Options{
		Groups: responseGroups(c),
	}, value)
}

func sendReduced(c *fiber.Ctx, value interface{}) error {
	reduced, err := reduce(c, value)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sheriff could not reduce response",
		})
	}

	return c.JSON(reduced)
}

func sendError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, simulator.ErrAlertNotFound),
		errors.Is(err, simulator.ErrRouteNotFound),
		errors.Is(err, simulator.ErrStopNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, simulator.ErrActiveAlertExists):
		status = fiber.StatusConflict
	case errors.Is(err, simulator.ErrInvalidAlert):
		status = fiber.StatusBadRequest
	case errors.Is(err, simulator.ErrEngineStopped),
		errors.Is(err, catalog.ErrEmptyCatalog):
		status = fiber.StatusServiceUnavailable
	}

	c.SendStatus(status)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}
