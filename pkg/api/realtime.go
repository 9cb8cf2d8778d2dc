package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/ctdf"
)

const (
	actionSubscribeStop   = "subscribe_stop"
	actionUnsubscribeStop = "unsubscribe_stop"
)

type realtimeClientMessage struct {
	Action string `json:"action"`
	Stop   string `json:"stop"`
}

func RealtimeRouter(router fiber.Router, hub *broadcast.Hub) {
	router.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/", websocket.New(realtimeConnection(hub)))
}

func realtimeConnection(hub *broadcast.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		consumerID := uuid.NewString()
		subscription := hub.Connect(consumerID)

		log.Info().
			Str("consumer", consumerID).
			Int("clients", hub.ConsumerCount()).
			Msg("Realtime client connected")

		hub.Send(consumerID, &ctdf.Event{
			Type:      ctdf.EventTypeConnected,
			Timestamp: time.Now(),
			Body: fiber.Map{
				"ConsumerID": consumerID,
			},
		})

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)

			for event := range subscription.Events() {
				if err := conn.WriteJSON(event); err != nil {
					log.Debug().Err(err).Str("consumer", consumerID).Msg("Failed to write to realtime client")
					hub.Disconnect(consumerID)
					return
				}
			}
		}()

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var message realtimeClientMessage
			if err := json.Unmarshal(payload, &message); err != nil {
				log.Debug().Err(err).Str("consumer", consumerID).Msg("Ignoring malformed realtime message")
				continue
			}

			switch message.Action {
			case actionSubscribeStop:
				hub.Subscribe(consumerID, message.Stop)
			case actionUnsubscribeStop:
				hub.Unsubscribe(consumerID, message.Stop)
			default:
				log.Debug().Str("consumer", consumerID).Str("action", message.Action).Msg("Unknown realtime action")
			}
		}

		hub.Disconnect(consumerID)
		<-writerDone

		log.Info().
			Str("consumer", consumerID).
			Int("clients", hub.ConsumerCount()).
			Msg("Realtime client disconnected")
	}
}
