package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/AzielCF/az-desk/infrastructure/valkey"
	"github.com/AzielCF/az-desk/ticketing/application"
	"github.com/AzielCF/az-desk/ticketing/domain"
)

type client struct {
	tenantID string
	userID   string
}

// BroadcastMessage es el sobre que reciben las bandejas conectadas.
type BroadcastMessage struct {
	TenantID string `json:"tenant_id"`
	Kind     string `json:"kind"`
	Action   string `json:"action"`
	Payload  any    `json:"payload"`
	SenderID string `json:"sender_id,omitempty"`
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan registration)
	Broadcast  = make(chan BroadcastMessage, 256)
	Unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
	localID  string
)

// Cada tenant publica en sus propios canales, uno por clase de evento, para
// que otros consumidores puedan suscribirse solo a lo que les interesa.
const wsChanPattern = "azdesk:tenant-*"

func tenantChannel(tenantID, kind string) string {
	return fmt.Sprintf("azdesk:tenant-%s-%s", tenantID, kind)
}

type registration struct {
	conn     *websocket.Conn
	tenantID string
	userID   string
}

// SetValkeyClient initializes the distributed broadcast system
func SetValkeyClient(c *valkey.Client, serverID string) {
	vkClient = c
	localID = serverID
}

func handleRegister(reg registration) {
	Clients[reg.conn] = client{tenantID: reg.tenantID, userID: reg.userID}
	logrus.Debugf("[WS] Connection registered for tenant %s", reg.tenantID)
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

// broadcastToLocal entrega el mensaje solo a las conexiones del tenant.
func broadcastToLocal(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn, cl := range Clients {
		if cl.tenantID != message.TenantID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func publishToValkey(message BroadcastMessage) {
	if vkClient == nil {
		return
	}

	// Attach local ID as sender
	message.SenderID = localID

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	channel := tenantChannel(message.TenantID, message.Kind)
	if err := vkClient.Publish(context.Background(), channel, string(data)); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey channel %s: %v", channel, err)
	}
}

func startValkeySubscriber() {
	if vkClient == nil {
		return
	}

	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := vkClient.PSubscribe(context.Background(), []string{wsChanPattern}, func(_, payload string) {
			var broadcastMsg BroadcastMessage
			if err := json.Unmarshal([]byte(payload), &broadcastMsg); err == nil {
				// Avoid loops: ignore messages sent by this same instance
				if broadcastMsg.SenderID == localID {
					return
				}
				broadcastToLocal(broadcastMsg)
			}
		})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

func RunHub() {
	if vkClient != nil {
		startValkeySubscriber()
	}

	for {
		select {
		case reg := <-Register:
			handleRegister(reg)

		case conn := <-Unregister:
			handleUnregister(conn)

		case message := <-Broadcast:
			// 1. Send to local clients immediately
			broadcastToLocal(message)

			// 2. If Valkey is active, propagate to other servers
			if vkClient != nil {
				publishToValkey(message)
			}
		}
	}
}

// Sink conecta el fanout del pipeline con el hub.
type Sink struct{}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Name() string { return "websocket" }

// Deliver encola el evento sin bloquear al worker del pipeline; si el hub va
// atrasado, el evento para las bandejas se pierde (la base ya lo tiene).
func (s *Sink) Deliver(ctx context.Context, ev application.Event) error {
	msg := BroadcastMessage{
		TenantID: ev.TenantID,
		Kind:     ev.Kind,
		Action:   ev.Action,
		Payload:  ev.Payload,
	}
	select {
	case Broadcast <- msg:
		return nil
	default:
		logrus.Warn("[WS] Broadcast queue full, dropping event")
		return nil
	}
}

type inboundFrame struct {
	Code string `json:"code"`
}

// RegisterRoutes expone /ws. Cada conexión declara su tenant y usuario por
// query param; los pings del cliente refrescan la presencia del agente.
func RegisterRoutes(app fiber.Router, presence domain.PresenceStore) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		tenantID := conn.Query("tenant_id")
		userID := conn.Query("user_id")
		if tenantID == "" {
			_ = conn.Close()
			return
		}

		defer func() {
			Unregister <- conn
			if userID != "" {
				_ = presence.SetOffline(context.Background(), tenantID, userID)
			}
			_ = conn.Close()
		}()

		Register <- registration{conn: conn, tenantID: tenantID, userID: userID}
		if userID != "" {
			_ = presence.SetOnline(context.Background(), tenantID, userID)
		}

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Println("read error:", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				continue
			}

			var frame inboundFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				continue
			}

			if frame.Code == "PING" && userID != "" {
				_ = presence.SetOnline(context.Background(), tenantID, userID)
			}
		}
	}))
}
