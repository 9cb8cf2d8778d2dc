package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitlive/pkg/api/routes"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/database"
	"github.com/travigo/transitlive/pkg/gtfsrt"
	"github.com/travigo/transitlive/pkg/redis_client"
	"github.com/travigo/transitlive/pkg/simulator"
)

type Server struct {
	Engine    *simulator.Engine
	Hub       *broadcast.Hub
	FeedCache *gtfsrt.FeedCache
}

func (s *Server) App() *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)
	group.Get("health", s.health)

	routes.RoutesRouter(group.Group("/routes"), s.Engine)
	routes.StopsRouter(group.Group("/stops"), s.Engine)
	routes.ServiceAlertRouter(group.Group("/service_alerts"), s.Engine)
	routes.SimulatorRouter(group.Group("/simulator"), s.Engine)
	routes.GTFSRealtimeRouter(group.Group("/gtfs-rt"), s.Engine, s.FeedCache)

	RealtimeRouter(group.Group("/realtime"), s.Hub)

	return webApp
}

func (s *Server) health(c *fiber.Ctx) error {
	snapshot, err := s.Engine.Snapshot(c.UserContext())
	if err != nil {
		c.SendStatus(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{
			"status": "stopped",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":      "ok",
		"initialised": snapshot.Initialised,
		"clients":     s.Hub.ConsumerCount(),
		"database":    database.Connected(),
		"redis":       redis_client.Connected(),
	})
}
