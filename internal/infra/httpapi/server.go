// Package httpapi exposes the reminder engine over REST and streams live reminder lists
// over websockets. The owner id comes from the X-Owner-ID header set by the gateway.
package httpapi

import (
	"net/http"
	"strings"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/reminder"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const ownerHeader = "X-Owner-ID"

type Server struct {
	reminders *app.ReminderService
	cascade   *app.CascadeService
	live      *app.LiveView
	store     reminder.Repository
	logger    *logrus.Entry
	upgrader  websocket.Upgrader
}

func NewServer(
	reminders *app.ReminderService,
	cascade *app.CascadeService,
	live *app.LiveView,
	store reminder.Repository,
	logger *logrus.Entry,
) *Server {
	return &Server{
		reminders: reminders,
		cascade:   cascade,
		live:      live,
		store:     store,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.ownerMiddleware)
	api.HandleFunc("/reminders", s.listReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders", s.createReminder).Methods(http.MethodPost)
	api.HandleFunc("/reminders/live", s.streamReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders/{id}", s.getReminder).Methods(http.MethodGet)
	api.HandleFunc("/reminders/{id}", s.updateReminder).Methods(http.MethodPatch)
	api.HandleFunc("/reminders/{id}", s.deleteReminder).Methods(http.MethodDelete)
	api.HandleFunc("/reminders/{id}/complete", s.completeReminder).Methods(http.MethodPost)
	api.HandleFunc("/pets/{id}", s.deletePet).Methods(http.MethodDelete)

	return corsMiddleware(router)
}

// ownerMiddleware places the gateway-authenticated owner on the request context.
func (s *Server) ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(ownerHeader))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + ownerHeader})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), owner)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+ownerHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
