package server

import (
	"errors"
	"net/http"
	"time"

	"tgstream/logger"
	"tgstream/model"
	"tgstream/repository"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type jobEvent struct {
	Type        string     `json:"type"`
	Job         *model.Job `json:"job"`
	PlaylistURL string     `json:"playlistUrl,omitempty"`
}

// JobEventsHandler pushes status updates of one job until it finishes.
func (s *Server) JobEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !model.IsJobID(id) {
		http.NotFound(w, r)
		return
	}

	// subscribe first so no update slips in between the lookup and the feed
	updates, unsubscribe := s.jobs.Broker().Subscribe(id)
	defer unsubscribe()

	current, err := s.jobs.Get(r.Context(), id)
	if errors.Is(err, repository.ErrJobNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// the client never sends anything useful, reading only detects close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.sendJob(conn, current); err != nil || current.Done() {
		s.closeFeed(conn)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case j, ok := <-updates:
			if !ok {
				return
			}
			if err := s.sendJob(conn, j); err != nil {
				logger.Warn("Failed to push job update", logger.String("jobId", id), logger.ErrorField(err))
				return
			}
			if j.Done() {
				s.closeFeed(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) sendJob(conn *websocket.Conn, j *model.Job) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(jobEvent{
		Type:        "status",
		Job:         j,
		PlaylistURL: s.jobs.PlaylistURL(j),
	})
}

func (s *Server) closeFeed(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(writeWait))
}
