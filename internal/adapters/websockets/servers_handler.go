package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dev.rubentxu.devops-platform/server-manager/internal/application/services"
	"dev.rubentxu.devops-platform/server-manager/internal/domain"
)

const (
	writeWait      = 30 * time.Second
	pongWait       = 120 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // En producción, restringir a orígenes válidos
	},
}

// WSMessage es el sobre de las acciones entrantes del cliente.
type WSMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsEnvelope es el sobre de todo lo que sale hacia el cliente: eventos
// del supervisor y respuestas a acciones.
type wsEnvelope struct {
	Type   string              `json:"type"`
	Action string              `json:"action,omitempty"`
	OK     bool                `json:"ok,omitempty"`
	Error  string              `json:"error,omitempty"`
	Event  *domain.ServerEvent `json:"event,omitempty"`
	Data   any                 `json:"data,omitempty"`
}

type startRequest struct {
	ServerID string `json:"server_id"`
	// ConfirmPortInUse autoriza el arranque aunque el puerto efectivo
	// parezca ocupado.
	ConfirmPortInUse bool `json:"confirm_port_in_use,omitempty"`
}

type serverIDRequest struct {
	ServerID string `json:"server_id"`
}

// WSHandler expone el supervisor por WebSocket: acciones por mensaje y
// el stream de eventos (estado, log, métricas) de vuelta.
type WSHandler struct {
	manager *services.ServerManager
}

func NewWSHandler(manager *services.ServerManager) *WSHandler {
	return &WSHandler{manager: manager}
}

func (h *WSHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	events, unsubscribe := h.manager.Subscribe()
	defer unsubscribe()

	// Un único escritor por conexión: eventos y respuestas convergen aquí.
	outbound := make(chan wsEnvelope, 64)
	go h.writeLoop(ctx, cancel, conn, outbound, events)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		h.dispatch(ctx, msg, outbound)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan wsEnvelope, events <-chan domain.ServerEvent) {
	defer cancel()
	defer conn.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// El supervisor se está apagando.
				h.closeConnection(conn, websocket.CloseGoingAway, "server manager shutting down")
				return
			}
			if err := h.write(conn, wsEnvelope{Type: "event", Event: &ev}); err != nil {
				return
			}
		case env := <-outbound:
			if err := h.write(conn, env); err != nil {
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

func (h *WSHandler) write(conn *websocket.Conn, env wsEnvelope) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

func (h *WSHandler) dispatch(ctx context.Context, msg WSMessage, outbound chan<- wsEnvelope) {
	switch msg.Action {
	case "list_servers":
		h.respond(ctx, outbound, msg.Action, h.manager.Snapshots(), nil)
	case "add_server":
		h.handleAddServer(ctx, msg, outbound)
	case "start_server":
		h.handleStartServer(ctx, msg, outbound)
	case "stop_server":
		h.handleStopServer(ctx, msg, outbound)
	case "delete_server":
		h.handleDeleteServer(ctx, msg, outbound)
	case "get_log":
		h.handleGetLog(ctx, msg, outbound)
	default:
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("unsupported action type"))
	}
}

func (h *WSHandler) handleAddServer(ctx context.Context, msg WSMessage, outbound chan<- wsEnvelope) {
	var cfg domain.ServerConfig
	if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("error decoding server config: %v", err))
		return
	}
	if cfg.Name == "" || cfg.EnginePath == "" {
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("name and engine_path are required fields"))
		return
	}
	id, err := h.manager.Add(cfg)
	h.respond(ctx, outbound, msg.Action, map[string]string{"server_id": id}, err)
}

func (h *WSHandler) handleStartServer(ctx context.Context, msg WSMessage, outbound chan<- wsEnvelope) {
	var req startRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("error decoding start request: %v", err))
		return
	}
	err := h.manager.Start(req.ServerID, func(port int) bool { return req.ConfirmPortInUse })
	if errors.Is(err, services.ErrStartDeclined) {
		// No es un fallo: el cliente debe reintentar con confirmación.
		h.respond(ctx, outbound, "port_in_use", map[string]string{"server_id": req.ServerID}, err)
		return
	}
	h.respond(ctx, outbound, msg.Action, map[string]string{"server_id": req.ServerID}, err)
}

func (h *WSHandler) handleStopServer(ctx context.Context, msg WSMessage, outbound chan<- wsEnvelope) {
	var req serverIDRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("error decoding stop request: %v", err))
		return
	}
	err := h.manager.Stop(req.ServerID, nil)
	h.respond(ctx, outbound, msg.Action, map[string]string{"server_id": req.ServerID}, err)
}

func (h *WSHandler) handleDeleteServer(ctx context.Context, msg WSMessage, outbound chan<- wsEnvelope) {
	var req serverIDRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("error decoding delete request: %v", err))
		return
	}
	err := h.manager.Delete(req.ServerID)
	h.respond(ctx, outbound, msg.Action, map[string]string{"server_id": req.ServerID}, err)
}

func (h *WSHandler) handleGetLog(ctx context.Context, msg WSMessage, outbound chan<- wsEnvelope) {
	var req serverIDRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		h.respond(ctx, outbound, msg.Action, nil, fmt.Errorf("error decoding log request: %v", err))
		return
	}
	lines, err := h.manager.Logs(req.ServerID)
	h.respond(ctx, outbound, msg.Action, lines, err)
}

func (h *WSHandler) respond(ctx context.Context, outbound chan<- wsEnvelope, action string, data any, err error) {
	env := wsEnvelope{Type: "response", Action: action, OK: err == nil, Data: data}
	if err != nil {
		env.Error = err.Error()
	}
	select {
	case outbound <- env:
	case <-ctx.Done():
	}
}

func (h *WSHandler) closeConnection(conn *websocket.Conn, closeCode int, message string) {
	msg := websocket.FormatCloseMessage(closeCode, message)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, msg)
}
