package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"mathbattle/internal/analytics"
	"mathbattle/internal/battle"
	"mathbattle/internal/db"
	"mathbattle/internal/gamedata"
	"mathbattle/internal/players"
	"mathbattle/internal/rooms"
	"mathbattle/internal/session"
	"mathbattle/internal/wshub"
)

const (
	reasonInvalidCode = "Invalid room code"
	reasonBothIDs     = "Specify either name or device"

	maxMessageSize = 1_000_000
	qrSize         = 256
)

type Server struct {
	Registry  *rooms.Registry
	Intake    *session.Intake
	Game      gamedata.Config
	DB        *db.DB // nil if no database configured
	Metrics   http.Handler
	Origins   []string
	PublicURL string
	Log       zerolog.Logger
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/new_game", s.handleNewGame).Methods(http.MethodGet)
	r.HandleFunc("/game", s.handleGame)
	r.HandleFunc("/rooms/{code}", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/events", s.handleRoomEvents).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/qr", s.handleQR).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/analytics/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/analytics/rooms/{code}", s.handleRoomSummary).Methods(http.MethodGet)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Debug().Err(err).Msg("writing response")
	}
}

func roomCode(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["code"])
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	code, err := s.Registry.NewRoomCode()
	if err != nil {
		s.Log.Error().Err(err).Msg("minting room code")
		http.Error(w, "Failed to create room", http.StatusInternalServerError)
		return
	}
	s.Log.Info().Str("room", code).Msg("room code issued")
	s.writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// handleGame upgrades to a websocket and hands the connection to the intake
// queue. It returns once the connection's worker has closed its send queue.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		name = strings.TrimSpace(q.Get("user"))
	}
	device := strings.TrimSpace(q.Get("device"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.Origins,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.Log.Debug().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	var c *rooms.Conn
	switch {
	case code == "" || (name == "" && device == ""):
		conn.Close(websocket.StatusInternalError, reasonInvalidCode)
		return
	case name != "" && device != "":
		conn.Close(websocket.StatusInternalError, reasonBothIDs)
		return
	case name != "":
		c = rooms.NewPlayerConn(code, name, players.ParseType(q.Get("type")), battle.Mode(q.Get("mode")), s.Game.OutboundBuffer)
	default:
		c = rooms.NewDeviceConn(code, device, s.Game.OutboundBuffer)
	}

	client := wshub.NewClient(conn, c.Send)
	if err := s.Intake.Submit(session.Pending{Conn: c, Stream: client}); err != nil {
		client.Close(session.ShutdownReason)
		return
	}
	if err := client.WritePump(r.Context()); err != nil {
		s.Log.Debug().Err(err).Str("room", code).Str("name", c.Name()).Msg("write pump")
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Registry.Snapshot(roomCode(r))
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleRoomEvents streams a room's broadcasts as server-sent events, starting
// with a snapshot.
func (s *Server) handleRoomEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	snap, msgChan, cancel, ok := s.Registry.Watch(roomCode(r))
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	data, err := json.Marshal(snap)
	if err != nil {
		s.Log.Error().Err(err).Msg("encoding snapshot")
		return
	}
	writeEvent(w, "snapshot", string(data))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-msgChan:
			if !open {
				return
			}
			writeEvent(w, msg.Name, msg.Data)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

// validCode reports whether code is usable in a join URL. Codes are
// case-sensitive: "abcd" and "ABCD" are different rooms.
func validCode(code string) bool {
	if code == "" || len(code) > 16 {
		return false
	}
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			return false
		}
	}
	return true
}

// joinURL is where a scanned QR code sends a player.
func (s *Server) joinURL(r *http.Request, code string) string {
	base := s.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
			scheme = p
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?code=" + url.QueryEscape(code)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	if !validCode(code) {
		http.Error(w, reasonInvalidCode, http.StatusBadRequest)
		return
	}

	png, err := qrcode.Encode(s.joinURL(r, code), qrcode.Medium, qrSize)
	if err != nil {
		s.Log.Error().Err(err).Str("room", code).Msg("qr generation")
		http.Error(w, "QR generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Analytics requires a database connection", http.StatusServiceUnavailable)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := analytics.NewQueries(s.DB).GetLeaderboard(r.Context(), limit)
	if err != nil {
		s.Log.Error().Err(err).Msg("leaderboard")
		http.Error(w, "Error loading leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []analytics.PlayerStats{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRoomSummary(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Analytics requires a database connection", http.StatusServiceUnavailable)
		return
	}

	summary, err := analytics.NewQueries(s.DB).GetRoomSummary(r.Context(), roomCode(r))
	if errors.Is(err, analytics.ErrNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Msg("room summary")
		http.Error(w, "Error loading room summary", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
