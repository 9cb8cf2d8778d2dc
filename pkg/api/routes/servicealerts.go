package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/simulator"
)

type serviceAlertRequest struct {
	Title          *string
	Text           *string
	AlertType      *ctdf.ServiceAlertType
	Severity       *ctdf.ServiceAlertSeverity
	AffectedRoutes []string
	AffectedStops  []string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	// Removes the end time of an existing alert
	ClearValidUntil bool
	Active          *bool
}

func ServiceAlertRouter(router fiber.Router, engine *simulator.Engine) {
	router.Get("/", listServiceAlerts(engine))
	router.Post("/", createServiceAlert(engine))
	router.Get("/:identifier", getServiceAlert(engine))
	router.Put("/:identifier", updateServiceAlert(engine))
	router.Delete("/:identifier", deleteServiceAlert(engine))
	router.Post("/:identifier/deactivate", deactivateServiceAlert(engine))
}

func listServiceAlerts(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := simulator.AlertFilter{
			Severity: ctdf.ServiceAlertSeverity(c.Query("severity")),
			Type:     ctdf.ServiceAlertType(c.Query("type")),
		}
		if active := c.Query("active"); active != "" {
			isActive := c.QueryBool("active", true)
			filter.Active = &isActive
		}

		serviceAlerts, err := engine.ListServiceAlerts(c.UserContext(), filter)
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, serviceAlerts)
	}
}

func getServiceAlert(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		serviceAlert, err := engine.GetServiceAlert(c.UserContext(), c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, serviceAlert)
	}
}

func createServiceAlert(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var request serviceAlertRequest
		if err := c.BodyParser(&request); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse service alert",
			})
		}

		input := &ctdf.ServiceAlert{
			AffectedRoutes: request.AffectedRoutes,
			AffectedStops:  request.AffectedStops,
			ValidUntil:     request.ValidUntil,
			CreatedBy:      "api",
		}
		if request.Title != nil {
			input.Title = *request.Title
		}
		if request.Text != nil {
			input.Text = *request.Text
		}
		if request.AlertType != nil {
			input.AlertType = *request.AlertType
		}
		if request.Severity != nil {
			input.Severity = *request.Severity
		}
		if request.ValidFrom != nil {
			input.ValidFrom = *request.ValidFrom
		}

		serviceAlert, err := engine.CreateServiceAlert(c.UserContext(), input)
		if err != nil {
			return sendError(c, err)
		}

		c.Status(fiber.StatusCreated)
		return sendReduced(c, serviceAlert)
	}
}

func updateServiceAlert(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var request serviceAlertRequest
		if err := c.BodyParser(&request); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse service alert",
			})
		}

		serviceAlert, err := engine.UpdateServiceAlert(c.UserContext(), c.Params("identifier"), simulator.AlertUpdate{
			Title:          request.Title,
			Text:           request.Text,
			AlertType:      request.AlertType,
			Severity:       request.Severity,
			AffectedRoutes: request.AffectedRoutes,
			AffectedStops:  request.AffectedStops,
			ValidFrom:      request.ValidFrom,
			ValidUntil:     request.ValidUntil,
			ClearUntil:     request.ClearValidUntil,
			Active:         request.Active,
		})
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, serviceAlert)
	}
}

func deactivateServiceAlert(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		serviceAlert, err := engine.DeactivateServiceAlert(c.UserContext(), c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, serviceAlert)
	}
}

func deleteServiceAlert(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := engine.DeleteServiceAlert(c.UserContext(), c.Params("identifier")); err != nil {
			return sendError(c, err)
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
