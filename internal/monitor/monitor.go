// Package monitor serves a read-only view of the running device over HTTP:
// health, a websocket stream of frame snapshots and a websocket stream of
// diagnostics.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/cubeware/internal/device"
	diag "github.com/coreman2200/cubeware/internal/diagnostics"
	"github.com/coreman2200/cubeware/internal/layout"
)

const (
	writeWait = 200 * time.Millisecond
	diagQueue = 64
)

// State fans device snapshots and diagnostics out to websocket clients.
// Publish and PushDiag never block the caller; Run does the writing.
type State struct {
	cube   layout.Cube
	driver string

	mu          sync.RWMutex
	latest      *device.Snapshot
	frameID     uint64
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	dropped     uint64

	frameReady chan struct{}
	diags      chan diag.Diagnostic
}

func NewState(cube layout.Cube, driver string) *State {
	return &State{
		cube:        cube,
		driver:      driver,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		frameReady:  make(chan struct{}, 1),
		diags:       make(chan diag.Diagnostic, diagQueue),
	}
}

// Handler mounts /health, /ws and /diag. Everything is read-only.
func (s *State) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Get("/health", s.HandleHealth)
	r.Get("/ws", s.HandleFramesWS)
	r.Get("/diag", s.HandleDiagWS)
	return r
}

// Publish replaces the latest snapshot. Only the newest one is ever sent.
func (s *State) Publish(snap device.Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.frameID++
	s.mu.Unlock()
	select {
	case s.frameReady <- struct{}{}:
	default:
	}
}

// PushDiag queues a diagnostic, dropping it when the queue is full.
func (s *State) PushDiag(d diag.Diagnostic) {
	select {
	case s.diags <- d:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Run writes queued frames and diagnostics to clients until ctx is done.
func (s *State) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-s.frameReady:
			s.broadcastFrame()
		case d := <-s.diags:
			s.broadcastDiag(d)
		}
	}
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// Once registered, only Run writes to the conn.
	s.sendTopology(conn)
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	go s.readUntilClosed(conn, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go s.readUntilClosed(conn, s.diagClients)
}

// readUntilClosed discards client messages; the monitor takes no input.
func (s *State) readUntilClosed(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type health struct {
	FrameID      uint64                `json:"frame_id"`
	UptimeS      float64               `json:"uptime_s"`
	Side         int                   `json:"side"`
	Driver       string                `json:"driver"`
	Clients      int                   `json:"clients"`
	DiagClients  int                   `json:"diag_clients"`
	DroppedDiags uint64                `json:"dropped_diags"`
	Controls     *device.ControlValues `json:"controls,omitempty"`
	Stats        *device.Stats         `json:"stats,omitempty"`
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := health{
		FrameID:      s.frameID,
		UptimeS:      time.Since(s.startTime).Seconds(),
		Side:         s.cube.Side,
		Driver:       s.driver,
		Clients:      len(s.clients),
		DiagClients:  len(s.diagClients),
		DroppedDiags: s.dropped,
	}
	if s.latest != nil {
		c, st := s.latest.Controls, s.latest.Stats
		resp.Controls, resp.Stats = &c, &st
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) sendTopology(conn *websocket.Conn) {
	top := map[string]any{
		"side":        s.cube.Side,
		"chips":       s.cube.Chips(),
		"buffer_size": s.cube.BufferSize(),
		"driver":      s.driver,
	}
	b, _ := json.Marshal(top)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

type frameMsg struct {
	T        int64                `json:"t"`
	FrameID  uint64               `json:"frame_id"`
	Handle   int                  `json:"handle"`
	Frame    []byte               `json:"frame"`
	Controls device.ControlValues `json:"controls"`
}

func (s *State) broadcastFrame() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return
	}
	b, _ := json.Marshal(frameMsg{
		T:        s.latest.Time.UnixNano(),
		FrameID:  s.frameID,
		Handle:   s.latest.Handle,
		Frame:    s.latest.Frame,
		Controls: s.latest.Controls,
	})
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) broadcastDiag(d diag.Diagnostic) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, _ := json.Marshal(d)
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

func (s *State) closeAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.Close()
	}
	for c := range s.diagClients {
		c.Close()
	}
}
