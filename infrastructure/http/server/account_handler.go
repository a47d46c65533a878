package server

import (
	"interest-chat/auth"
	"interest-chat/domain/account"
	"interest-chat/domain/chat"
	"net/http"

	"github.com/samber/lo"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createInterestRequest struct {
	Name string `json:"name"`
}

type joinInterestsRequest struct {
	Interests []string `json:"interests"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.accounts.Register(r.Context(), account.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "User registered successfully", session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Login successful", session)
}

func (s *Server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	interests, err := s.interests.ListInterests(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", interests)
}

func (s *Server) handleCreateInterest(w http.ResponseWriter, r *http.Request) {
	var req createInterestRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	interest, err := s.interests.CreateInterest(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Interest created successfully", interest)
}

func (s *Server) handleJoinInterests(w http.ResponseWriter, r *http.Request) {
	var req joinInterestsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	ids := lo.Map(req.Interests, func(id string, _ int) chat.InterestID { return chat.InterestID(id) })
	user, err := s.interests.JoinInterests(r.Context(), userID, ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Interests updated successfully", user)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := s.interests.Profile(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", user)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := s.interests.DeactivateAccount(r.Context(), userID); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Account deactivated successfully", nil)
}
