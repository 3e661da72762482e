package api

import (
	"net/http"

	"github.com/rflorenc/facility-workbench/internal/session"
)

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	sess, err := s.Session.Login(r.Context(), s.Auth, creds)
	if err != nil {
		status := statusFor(err)
		msg := "Invalid email or password."
		if status != http.StatusUnauthorized {
			msg = "Could not sign in. Please try again."
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Logout ends the session and closes every mounted screen.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Logout(r.Context(), s.Auth); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.Screens.CloseAll()
	w.WriteHeader(http.StatusNoContent)
}
