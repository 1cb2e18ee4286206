package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/gui"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sketchgui/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session is the GUI session surface a viewer observes
type Session interface {
	Snapshot() gui.Snapshot
	Subscribe() <-chan gui.Snapshot
	Unsubscribe(ch <-chan gui.Snapshot)
	Reload(rawURL string) error
}

// Connector accepts control connection events
type Connector interface {
	HandleConnection(project *string)
}

// Config tunes connection keepalive
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the keepalive settings used in production
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512 * 1024,
	}
}

// Message is an outbound frame
type Message struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Viewer  string      `json:"viewer,omitempty"`
}

// Request is an inbound frame
type Request struct {
	Type        string  `json:"type"`
	ProjectName *string `json:"projectName,omitempty"`
	URL         string  `json:"url,omitempty"`
}

// Handler manages viewer WebSocket connections
type Handler struct {
	session   Session
	connector Connector
	cfg       Config
	upgrader  websocket.Upgrader
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(session Session, connector Connector, cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session:   session,
		connector: connector,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS middleware owns origin policy
			},
		},
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and streams snapshots until either
// side goes away
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	viewer := id.NewViewerID()
	log := h.logger.With(zap.String("viewer", viewer.String()))
	log.Info("Viewer connected")

	h.metrics.IncViewers()
	defer h.metrics.DecViewers()

	updates := h.session.Subscribe()
	defer h.session.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(c.Request.Context())
	replies := make(chan Message, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		h.writePump(ctx, conn, viewer, updates, replies, log)
	}()

	h.readPump(ctx, conn, replies, log)
	cancel()
	<-done
	conn.Close()
	log.Info("Viewer disconnected")
}

// writePump is the only writer on conn
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, viewer id.ViewerID, updates <-chan gui.Snapshot, replies <-chan Message, log *zap.Logger) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	// unblocks readPump when the writer gives up first
	defer conn.Close()

	if err := h.write(conn, Message{Type: "system", Message: "Connected to Bela GUI", Viewer: viewer.String()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.closeFrame(conn, websocket.CloseNormalClosure, "")
			return

		case snap, ok := <-updates:
			if !ok {
				h.closeFrame(conn, websocket.CloseGoingAway, "gui closed")
				return
			}
			if err := h.write(conn, Message{Type: "snapshot", Data: snap}); err != nil {
				log.Debug("Snapshot write failed", zap.Error(err))
				return
			}

		case msg := <-replies:
			if err := h.write(conn, msg); err != nil {
				log.Debug("Reply write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, replies chan<- Message, log *zap.Logger) {
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var req Request
		if err := sonic.Unmarshal(data, &req); err != nil {
			h.reply(ctx, replies, Message{Type: "error", Message: "invalid message"})
			continue
		}
		h.metrics.RecordViewerMessage(messageLabel(req.Type))

		switch req.Type {
		case "ping":
			h.reply(ctx, replies, Message{Type: "pong"})
		case "get_state":
			h.reply(ctx, replies, Message{Type: "snapshot", Data: h.session.Snapshot()})
		case "connect":
			h.connector.HandleConnection(req.ProjectName)
			h.reply(ctx, replies, Message{Type: "ack", Message: "connect"})
		case "reload":
			if err := h.session.Reload(req.URL); err != nil {
				h.reply(ctx, replies, Message{Type: "error", Message: err.Error()})
				continue
			}
			h.reply(ctx, replies, Message{Type: "ack", Message: "reload"})
		default:
			h.reply(ctx, replies, Message{Type: "error", Message: "unknown message type: " + req.Type})
		}
	}
}

// messageLabel bounds metric label values to known request types
func messageLabel(typ string) string {
	switch typ {
	case "ping", "get_state", "connect", "reload":
		return typ
	}
	return "unknown"
}

func (h *Handler) reply(ctx context.Context, replies chan<- Message, msg Message) {
	select {
	case replies <- msg:
	case <-ctx.Done():
	}
}

func (h *Handler) write(conn *websocket.Conn, msg Message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) closeFrame(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(h.cfg.WriteWait))
}
