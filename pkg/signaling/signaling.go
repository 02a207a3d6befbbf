package signaling

import (
	"errors"
	"time"

	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/MikeDev101/roomlink/pkg/signaling/handlers"
	"github.com/MikeDev101/roomlink/pkg/signaling/origin"
	"github.com/MikeDev101/roomlink/pkg/signaling/session"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

var ErrUnknownEvent = errors.New("unknown event")

type Server structs.Server

func Initialize(cfg config.Server) *Server {
	s := &Server{
		AuthorizedOriginsStorage: origin.CompilePatterns(cfg.AllowedOrigins),
		Rooms:                    &structs.RoomStore{Rooms: make(map[string]*structs.Room)},
		Sessions:                 &structs.SessionStore{Sessions: make(map[string]*structs.Client)},
		PacketValidator:          validator.New(validator.WithRequiredStructEnabled()),
		OutboxSize:               cfg.OutboxSize,
	}

	log.Info().Strs("allowed_origins", cfg.AllowedOrigins).Int("outbox_size", cfg.OutboxSize).Msg("Signaling server initialized")
	return s
}

// Core returns the shared server state used by the manager and handlers.
func (srv *Server) Core() *structs.Server {
	return (*structs.Server)(srv)
}

// NewApp builds the fiber app: health routes and the websocket endpoint at /ws.
func (srv *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			// Websocket sessions log through zerolog for their whole lifetime.
			return c.Path() == "/ws"
		},
	}))

	health := func(c *fiber.Ctx) error {
		return c.SendString("ok")
	}
	app.Get("/", health)
	app.Get("/health", health)
	app.Get("/healthz", health)

	app.Use("/ws", srv.Upgrader)
	app.Get("/ws", websocket.New(srv.Handler))

	return app
}

// AuthorizedOrigins checks if the incoming request's origin is allowed to
// connect to the server. Requests without an Origin header come from
// non-browser clients such as the roomlink CLI and are always let through.
func (srv *Server) AuthorizedOrigins(r *fasthttp.Request) bool {
	requestOrigin := string(r.Header.Peek("Origin"))
	result := requestOrigin == "" || origin.IsAllowed(requestOrigin, srv.AuthorizedOriginsStorage)

	l := log.Debug()
	if !result {
		l = log.Warn()
	}
	l.Str("origin", requestOrigin).Str("host", string(r.Host())).Bool("permitted", result).Msg("Origin check")

	return result
}

// Upgrader rejects disallowed origins with ErrForbidden and plain HTTP
// requests with ErrUpgradeRequired.
func (srv *Server) Upgrader(c *fiber.Ctx) error {
	if !srv.AuthorizedOrigins(c.Request()) {
		return fiber.ErrForbidden
	}

	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}

	return fiber.ErrUpgradeRequired
}

// Handler runs one websocket connection. Frames are handled one at a time in
// arrival order, which keeps relay FIFO per sender. When the read loop ends
// for any reason the session is closed, which leaves every joined room.
func (srv *Server) Handler(conn *websocket.Conn) {
	s := srv.Core()

	client := session.Open(s, conn)
	defer session.Close(s, client)

	conn.SetReadLimit(session.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(session.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(session.PongWait))
	})

	for {
		_, rawpacket, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("client_id", client.ID).Msg("Websocket read error")
			}
			return
		}

		// Any frame proves the peer is alive.
		conn.SetReadDeadline(time.Now().Add(session.PongWait))

		if err := srv.Handle(client, rawpacket); err != nil {
			log.Debug().Err(err).Str("client_id", client.ID).Msg("Rejected frame")
		}
	}
}

// Handle decodes, validates and dispatches one frame from client. A rejected
// frame earns the client a "violation" event and is reported as an error; the
// connection is never closed for it.
func (srv *Server) Handle(client *structs.Client, rawpacket []byte) error {
	s := srv.Core()

	var packet structs.Packet
	if err := json.Unmarshal(rawpacket, &packet); err != nil {
		handlers.Violation(client, "Packet decoding error")
		return err
	}

	if err := s.PacketValidator.Struct(&packet); err != nil {
		handlers.Violation(client, err.Error())
		return err
	}

	return execute_packet(s, client, &packet)
}

func execute_packet(s *structs.Server, client *structs.Client, packet *structs.Packet) error {
	switch packet.Event {

	// Keep connection alive
	case structs.EventKeepalive:
		handlers.KEEPALIVE(s, client, packet)

	// Returns metadata about the server.
	case structs.EventMeta:
		handlers.META(s, client, packet)

	// Registers membership in a room.
	case structs.EventJoin:
		handlers.JOIN(s, client, packet)

	// Relays negotiation payloads to one connection.
	case structs.EventSignal:
		handlers.SIGNAL(s, client, packet)

	// Fans out positions to the room.
	case structs.EventPosUpdate:
		handlers.POS_UPDATE(s, client, packet)

	// Room-wide chat.
	case structs.EventChatMessage:
		handlers.CHAT_MESSAGE(s, client, packet)

	// Directed chat.
	case structs.EventPrivateMessage:
		handlers.PRIVATE_MESSAGE(s, client, packet)

	default:
		handlers.Violation(client, "Unknown event: "+packet.Event)
		return ErrUnknownEvent
	}
	return nil
}
