package httpapi

import (
	"net/http"
	"time"

	"petcare_reminders/internal/domain/reminder"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// streamReminders upgrades to a websocket and pushes the full reminder list on every change.
// The first message is the current list.
func (s *Server) streamReminders(w http.ResponseWriter, r *http.Request) {
	scope := reminder.Scope{PetID: r.URL.Query().Get("petId"), OrderByFireAt: true}
	view, err := s.live.Observe(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer view.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	log := s.logger.WithField("remote", r.RemoteAddr)
	log.Debug("Live reminder stream opened")

	// Reads only detect the peer going away; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			log.Debug("Live reminder stream closed by client")
			return
		case list, ok := <-view.Updates():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toJSONList(list)); err != nil {
				log.WithError(err).Debug("Live reminder stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
