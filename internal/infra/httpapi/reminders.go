package httpapi

import (
	"errors"
	"net/http"
	"sort"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/reminder"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := s.logger.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	body := errorBody{Error: err.Error()}
	var cascade *app.CascadeError
	if errors.As(err, &cascade) {
		body.FailedReminders = cascade.FailedReminderIDs()
	}
	writeJSON(w, status, body)
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFrom(r.Context())
	list, err := s.store.ListByOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if petID := r.URL.Query().Get("petId"); petID != "" {
		filtered := list[:0]
		for _, rem := range list {
			if rem.PetID == petID {
				filtered = append(filtered, rem)
			}
		}
		list = filtered
	}
	sort.Slice(list, func(i, j int) bool { return reminder.Less(list[i], list[j]) })
	writeJSON(w, http.StatusOK, toJSONList(list))
}

func (s *Server) getReminder(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFrom(r.Context())
	rem, err := s.store.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rem.OwnerID != owner {
		// Do not reveal other owners' ids.
		s.writeError(w, r, reminder.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rem))
}

func (s *Server) createReminder(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rem, err := s.reminders.CreateReminder(r.Context(), req.input())
	if err != nil {
		if rem != nil {
			writeJSON(w, http.StatusAccepted, scheduleFailure{Reminder: toJSON(rem), Error: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJSON(rem))
}

func (s *Server) updateReminder(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rem, err := s.reminders.UpdateReminder(r.Context(), mux.Vars(r)["id"], req.patch())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rem))
}

func (s *Server) deleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.reminders.DeleteReminder(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.reminders.CompleteReminder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rem))
}

func (s *Server) deletePet(w http.ResponseWriter, r *http.Request) {
	if err := s.cascade.CascadeDeletePet(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
