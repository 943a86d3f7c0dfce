package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

// Dispatcher receives the inbound events of every connection. Handle is
// called sequentially per connection, from its read goroutine.
type Dispatcher interface {
	Handle(ctx context.Context, connID string, env Envelope)
	Disconnected(ctx context.Context, connID string)
}

// Upgrade upgrades GET /ws, registers the connection with hub and pumps
// frames until the socket closes.
func Upgrade(hub *Hub, d Dispatcher, allowedOrigins []string, logger *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		client := NewClient(uuid.NewString(), sendBuffer)
		client.closeConn = conn.Close
		hub.Register(client)
		log := logger.With(zap.String("conn_id", client.ID))
		log.Debug("connected", zap.String("remote", c.ClientIP()))

		ctx := context.WithoutCancel(c.Request.Context())
		go writePump(client, conn)
		readPump(ctx, client, conn, d, log)

		client.Close()
		d.Disconnected(ctx, client.ID)
		log.Debug("disconnected")
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(ctx context.Context, c *Client, conn *websocket.Conn, d Dispatcher, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("read", zap.Error(err))
			}
			return
		}
		env, err := Decode(frame)
		if err != nil {
			log.Debug("dropped frame", zap.Error(err))
			continue
		}
		d.Handle(ctx, c.ID, env)
	}
}

// originChecker allows requests without an Origin header, any origin when
// the list contains "*", and otherwise only listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	_, wildcard := set["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
