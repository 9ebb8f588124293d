package server

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xhad/webqa/pkg/form"
)

//go:embed templates/*.html
var templates embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the websocket frame in both directions. Clients send
// {"type":"ask","content":question,"urls":[...]}.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	URLs    []string    `json:"urls,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	GinMode string
}

type Server struct {
	controller *form.Controller
	logger     *slog.Logger
	router     *gin.Engine
}

func New(controller *form.Controller, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &Server{controller: controller, logger: logger}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))

	router.GET("/", s.handleIndex)
	router.POST("/", s.handleSubmit)
	router.GET("/ws", s.handleWebSocket)
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.controller.Idle())
}

func (s *Server) handleSubmit(c *gin.Context) {
	view, _ := s.controller.Submit(c.Request.Context(), form.Submission{
		URLs:     c.PostForm("urls"),
		Question: c.PostForm("question"),
	}, nil)
	c.HTML(http.StatusOK, "index.html", view)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// One submission at a time per connection, so only this loop writes.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("invalid websocket message", "error", err)
			s.send(conn, "error", "invalid message")
			continue
		}

		s.handleMessage(c, conn, msg)
	}
}

func (s *Server) handleMessage(c *gin.Context, conn *websocket.Conn, msg Message) {
	if msg.Type != "ask" {
		s.send(conn, "error", "unknown message type: "+msg.Type)
		return
	}

	l := &wsListener{server: s, conn: conn}
	view, err := s.controller.Submit(c.Request.Context(), form.Submission{
		URLs:     strings.Join(msg.URLs, "\n"),
		Question: msg.Content,
	}, l)
	if err == nil {
		s.send(conn, "response", view.Answer)
	}
	s.send(conn, "done", view.State.String())
}

func (s *Server) send(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		s.logger.Warn("websocket write failed", "type", msgType, "error", err)
	}
}

type wsListener struct {
	server *Server
	conn   *websocket.Conn
}

func (l *wsListener) Status(msg string)  { l.server.send(l.conn, "status", msg) }
func (l *wsListener) Warning(msg string) { l.server.send(l.conn, "warning", msg) }
func (l *wsListener) Error(msg string)   { l.server.send(l.conn, "error", msg) }
func (l *wsListener) Token(chunk string) { l.server.send(l.conn, "stream", chunk) }
