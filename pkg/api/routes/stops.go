package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitlive/pkg/simulator"
)

func StopsRouter(router fiber.Router, engine *simulator.Engine) {
	router.Get("/:identifier/predictions", getStopPredictions(engine))
}

func getStopPredictions(engine *simulator.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		stopPredictions, err := engine.PredictionsForStop(c.UserContext(), identifier)
		if err != nil {
			return sendError(c, err)
		}

		predictions := []interface{}{}
		for _, prediction := range stopPredictions.Predictions {
			reduced, err := reduce(c, prediction)
			if err != nil {
				c.SendStatus(fiber.StatusInternalServerError)
				return c.JSON(fiber.Map{
					"error": "Sheriff could not reduce Prediction",
				})
			}

			predictionMap := reduced.(map[string]interface{})
			if seconds, ok := prediction.SecondsUntilArrival(stopPredictions.Timestamp); ok {
				predictionMap["SecondsUntilArrival"] = seconds
			} else {
				predictionMap["SecondsUntilArrival"] = nil
			}

			predictions = append(predictions, predictionMap)
		}

		response := fiber.Map{
			"StopRef":     identifier,
			"Timestamp":   stopPredictions.Timestamp,
			"Predictions": predictions,
		}
		if stopPredictions.Stop != nil {
			stop, err := reduce(c, stopPredictions.Stop)
			if err == nil {
				response["Stop"] = stop
			}
		}

		return c.JSON(response)
	}
}
