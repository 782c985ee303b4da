package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alofquist/slinkdash/internal/avr"
	"github.com/alofquist/slinkdash/internal/logger"
)

// Server coordinates receiver polling and broadcasts state to WebSocket
// clients, and exposes the command API the dashboard drives the
// receiver with.
type Server struct {
	cfg    *Config
	avr    avr.Controller
	webFS  fs.FS
	logger *logger.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	State  *avr.Snapshot  `json:"state,omitempty"`
	Config *DisplayConfig `json:"config,omitempty"`
	Stamp  int64          `json:"stamp"` // Unix ms
}

// Command is the JSON body accepted by /api/command.
type Command struct {
	Action string `json:"action"`
	Source string `json:"source,omitempty"` // for select_source
}

// New creates a new Server.
func New(cfg *Config, controller avr.Controller, webFS fs.FS) *Server {
	return &Server{
		cfg:   cfg,
		avr:   controller,
		webFS: webFS,
		logger: logger.New(logger.Config{
			Enabled: cfg.Logging.Enabled,
			Path:    cfg.Logging.Path,
		}),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the HTTP server and the polling loop.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	// Serve embedded web files
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWS)

	// Config API
	mux.HandleFunc("/api/config", s.handleConfig)

	// Receiver command API
	mux.HandleFunc("/api/command", s.handleCommand)

	go s.pollLoop(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", len(s.clients))

	// Send initial config + last known state
	snap := s.avr.Snapshot()
	cfgFrame := Frame{
		State:  &snap,
		Config: &s.cfg.Display,
		Stamp:  time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(cfgFrame); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (handle incoming messages / keep-alive)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", len(s.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		s.logger.SetEnabled(s.cfg.Logging.Enabled)
		// Broadcast updated config
		cfgFrame := Frame{Config: &s.cfg.Display, Stamp: time.Now().UnixMilli()}
		s.broadcast(cfgFrame)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

// handleCommand dispatches a dashboard action to the receiver and
// pushes the resulting state to all clients. Receiver commands update
// state synchronously from the device's own echoes, so the snapshot
// taken right after the call already reflects the action.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		http.Error(w, "bad request", 400)
		return
	}

	switch cmd.Action {
	case "power_on":
		err = s.avr.PowerOn()
	case "power_off":
		err = s.avr.PowerOff()
	case "mute":
		err = s.avr.SetMute(true)
	case "unmute":
		err = s.avr.SetMute(false)
	case "volume_up":
		err = s.avr.VolumeUp()
	case "volume_down":
		err = s.avr.VolumeDown()
	case "select_source":
		err = s.avr.SelectSource(cmd.Source)
	case "refresh":
		err = s.avr.Refresh()
	default:
		http.Error(w, "unknown action", 400)
		return
	}
	if err != nil {
		log.Printf("[server] %s failed: %v", cmd.Action, err)
		http.Error(w, err.Error(), 502)
		return
	}

	s.broadcastState()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// pollLoop periodically refreshes the receiver and broadcasts state.
// A poll failure is logged and retried on the next tick; the engine
// reopens its serial link by itself.
func (s *Server) pollLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.AVR.PollSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	// First poll right away so clients don't wait a full interval.
	s.poll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Close()
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Server) poll() {
	if err := s.avr.Refresh(); err != nil {
		log.Printf("[server] poll failed: %v", err)
		return
	}
	s.broadcastState()
}

func (s *Server) broadcastState() {
	snap := s.avr.Snapshot()
	s.logger.Record(snap)
	s.broadcast(Frame{State: &snap, Stamp: time.Now().UnixMilli()})
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
